package repository

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"

	"github.com/readshelf/catalog-service/internal/database"
)

// Book writes span several statements; they are atomic only when the DBTX
// handed to the repository can begin a transaction. Both things the wiring
// passes in production must qualify.
func TestTxBeginnerImplementations(t *testing.T) {
	var db interface{} = (*database.DB)(nil)
	_, ok := db.(txBeginner)
	assert.True(t, ok, "*database.DB must support Begin so book writes run in a transaction")

	var pool interface{} = (*pgxpool.Pool)(nil)
	_, ok = pool.(txBeginner)
	assert.True(t, ok, "*pgxpool.Pool must support Begin so book writes run in a transaction")
}
