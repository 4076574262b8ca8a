package util

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIni(t *testing.T) {

	var filename = filepath.Join(t.TempDir(), "datacat.ini")
	require.NoError(t, os.WriteFile(filename, []byte("[server]\nlisten = 127.0.0.1:9000\ndb = mem:\n"), 0600))

	values, err := Ini(filename, "server")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"listen": "127.0.0.1:9000", "db": "mem:"}, values)

	_, err = Ini(filepath.Join(t.TempDir(), "missing.ini"), "server")
	assert.Error(t, err)
}

func TestHandlePrefix(t *testing.T) {

	var mux = http.NewServeMux()
	HandlePrefix(mux, "/catalog/", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/group"+req.URL.Path, http.StatusFound)
	}))

	var rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/david", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/catalog/group/david", rec.Header().Get("Location"))
}

func TestHandlePrefixBare(t *testing.T) {

	var mux = http.NewServeMux()
	HandlePrefix(mux, "/catalog", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "//elsewhere.example/", http.StatusFound)
	}))

	var rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "/catalog/", rec.Header().Get("Location"))

	// protocol-relative locations are left alone
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/x", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "//elsewhere.example/", rec.Header().Get("Location"))
}
