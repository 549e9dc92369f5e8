// Package covers stores book cover image files on disk.
//
// The database keeps one row per cover (filename, mime type, content hash);
// this package owns the files themselves. Writes happen before the owning
// database transaction commits, removals happen after, and removal is
// best-effort: a file that cannot be deleted is logged and counted, never
// surfaced to the caller.
package covers

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/readshelf/catalog-service/internal/domain"
)

// allowedExtensions is the accepted cover file extension set, mapped to the
// mime type recorded for each.
var allowedExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// suffixBytes is the length of the random filename suffix before hex encoding.
const suffixBytes = 8

// Store writes and removes cover files under a single directory.
type Store struct {
	dir             string
	maxBytes        int64
	logger          zerolog.Logger
	removalFailures prometheus.Counter
}

// NewStore creates a cover store rooted at dir, creating it if needed.
func NewStore(dir string, maxBytes int64, logger zerolog.Logger, removalFailures prometheus.Counter) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("covers directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create covers directory: %w", err)
	}

	return &Store{
		dir:             dir,
		maxBytes:        maxBytes,
		logger:          logger.With().Str("component", "covers").Logger(),
		removalFailures: removalFailures,
	}, nil
}

// Dir returns the directory cover files are stored in.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes an uploaded cover to disk under a collision-free name derived
// from the original filename. Returns the stored filename, recorded mime
// type, and the content's md5 hash.
func (s *Store) Save(originalFilename string, r io.Reader) (filename, mimeType, md5Hash string, err error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	mimeType, ok := allowedExtensions[ext]
	if !ok {
		return "", "", "", domain.NewValidationError("cover",
			fmt.Sprintf("unsupported cover file extension: %q", ext))
	}

	suffix := make([]byte, suffixBytes)
	if _, err := rand.Read(suffix); err != nil {
		return "", "", "", fmt.Errorf("failed to generate filename suffix: %w", err)
	}

	base := sanitizeBase(strings.TrimSuffix(filepath.Base(originalFilename), filepath.Ext(originalFilename)))
	filename = fmt.Sprintf("%s_%s%s", base, hex.EncodeToString(suffix), ext)
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to create cover file: %w", err)
	}

	hasher := md5.New()
	limited := io.LimitReader(r, s.maxBytes+1)
	written, err := io.Copy(io.MultiWriter(f, hasher), limited)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err == nil && written > s.maxBytes {
		err = domain.NewValidationError("cover",
			fmt.Sprintf("cover file exceeds the %d byte limit", s.maxBytes))
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			s.logger.Warn().Err(rmErr).Str("filename", filename).
				Msg("failed to remove partial cover file")
		}
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return "", "", "", err
		}
		return "", "", "", fmt.Errorf("failed to write cover file: %w", err)
	}

	return filename, mimeType, hex.EncodeToString(hasher.Sum(nil)), nil
}

// Remove deletes a stored cover file best-effort. A missing file is fine; any
// other failure is logged and counted but never returned.
func (s *Store) Remove(filename string) {
	if filename == "" {
		return
	}

	// Filenames come from our own database rows, but refuse path traversal
	// anyway.
	if filepath.Base(filename) != filename {
		s.logger.Warn().Str("filename", filename).Msg("refusing to remove cover outside store directory")
		s.removalFailures.Inc()
		return
	}

	path := filepath.Join(s.dir, filename)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return
		}
		s.logger.Warn().Err(err).Str("filename", filename).Msg("failed to remove cover file")
		s.removalFailures.Inc()
	}
}

// RemoveAll deletes a set of stored cover files best-effort.
func (s *Store) RemoveAll(filenames []string) {
	for _, fn := range filenames {
		s.Remove(fn)
	}
}

// sanitizeBase reduces an uploaded base name to a safe ascii slug.
func sanitizeBase(base string) string {
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "cover"
	}
	return b.String()
}
