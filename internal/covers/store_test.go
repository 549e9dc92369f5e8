package covers

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readshelf/catalog-service/internal/domain"
)

func newTestStore(t *testing.T) (*Store, prometheus.Counter) {
	t.Helper()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_cover_removal_failures_total"})
	store, err := NewStore(t.TempDir(), 64, zerolog.Nop(), counter)
	require.NoError(t, err)
	return store, counter
}

func TestStore_Save(t *testing.T) {
	t.Run("stores content under a suffixed name with its hash", func(t *testing.T) {
		store, _ := newTestStore(t)
		content := []byte("fake png bytes")

		filename, mimeType, md5Hash, err := store.Save("My Cover.PNG", bytes.NewReader(content))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(filename, "my_cover_"))
		assert.True(t, strings.HasSuffix(filename, ".png"))
		assert.Equal(t, "image/png", mimeType)

		sum := md5.Sum(content)
		assert.Equal(t, hex.EncodeToString(sum[:]), md5Hash)

		stored, readErr := os.ReadFile(filepath.Join(store.Dir(), filename))
		require.NoError(t, readErr)
		assert.Equal(t, content, stored)
	})

	t.Run("two saves of the same name do not collide", func(t *testing.T) {
		store, _ := newTestStore(t)

		first, _, _, err := store.Save("dune.jpg", bytes.NewReader([]byte("a")))
		require.NoError(t, err)
		second, _, _, err := store.Save("dune.jpg", bytes.NewReader([]byte("b")))
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("rejects disallowed extensions", func(t *testing.T) {
		store, _ := newTestStore(t)

		for _, name := range []string{"cover.pdf", "cover.svg", "cover", "cover.png.exe"} {
			_, _, _, err := store.Save(name, bytes.NewReader([]byte("x")))
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "name %q", name)
		}
	})

	t.Run("rejects oversized uploads and leaves no file", func(t *testing.T) {
		store, _ := newTestStore(t)

		_, _, _, err := store.Save("big.png", bytes.NewReader(bytes.Repeat([]byte("x"), 65)))
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))

		entries, readErr := os.ReadDir(store.Dir())
		require.NoError(t, readErr)
		assert.Empty(t, entries)
	})
}

func TestStore_Remove(t *testing.T) {
	t.Run("removes an existing file", func(t *testing.T) {
		store, counter := newTestStore(t)
		path := filepath.Join(store.Dir(), "gone.png")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		store.Remove("gone.png")

		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
		assert.Equal(t, float64(0), testutil.ToFloat64(counter))
	})

	t.Run("a missing file is not a failure", func(t *testing.T) {
		store, counter := newTestStore(t)
		store.Remove("never-existed.png")
		assert.Equal(t, float64(0), testutil.ToFloat64(counter))
	})

	t.Run("refuses path traversal and counts it", func(t *testing.T) {
		store, counter := newTestStore(t)
		store.Remove("../../etc/passwd")
		assert.Equal(t, float64(1), testutil.ToFloat64(counter))
	})

	t.Run("empty filename is a no-op", func(t *testing.T) {
		store, counter := newTestStore(t)
		store.Remove("")
		assert.Equal(t, float64(0), testutil.ToFloat64(counter))
	})
}
