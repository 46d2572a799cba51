package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteInMemory(t *testing.T) {
	database, err := Connect(DriverSQLite, "")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, database.Driver)
	require.NoError(t, database.DB.Exec("CREATE TABLE probe (id TEXT PRIMARY KEY)").Error)
	require.NoError(t, database.Close())
}

func TestConnectRejectsBadInput(t *testing.T) {
	_, err := Connect(DriverPostgres, " ")
	assert.EqualError(t, err, "postgres dsn is required")

	_, err = Connect("mysql", "dsn")
	assert.ErrorContains(t, err, "unsupported archive driver")

	var nilDatabase *Database
	assert.NoError(t, nilDatabase.Close())
}
