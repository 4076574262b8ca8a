package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyIni(t *testing.T) {

	var filename = filepath.Join(t.TempDir(), "datacat.ini")
	require.NoError(t, os.WriteFile(filename, []byte("[server]\nlisten = 0.0.0.0:80\ndb = mem:\nlog_level = debug\n"), 0600))

	var cfg = &config{}
	var fs = flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.register(fs, true)
	require.NoError(t, fs.Parse([]string{"-listen", "127.0.0.1:9000"}))

	require.NoError(t, cfg.applyIni(fs, filename))
	assert.Equal(t, "127.0.0.1:9000", cfg.listen) // flags win
	assert.Equal(t, "mem:", cfg.db)
	assert.Equal(t, "debug", cfg.logLevel)
	assert.Equal(t, "720h", cfg.sessionLifetime)
}

func TestOpenDB(t *testing.T) {

	catalog, store, closeDB, err := openDB("mem:")
	require.NoError(t, err)
	defer closeDB()
	assert.NotNil(t, store)
	require.NoError(t, catalog.Init())

	var dsn = "sqlite3:" + filepath.Join(t.TempDir(), "test.sqlite3")
	catalog, store, closeDB, err = openDB(dsn)
	require.NoError(t, err)
	defer closeDB()
	assert.NotNil(t, store)
	require.NoError(t, catalog.Init())

	_, _, _, err = openDB("postgres://localhost/datacat")
	assert.Error(t, err)
}
