package util

import (
	"net/http"
	"strings"
)

// prefixWriter prepends the prefix to absolute redirect locations.
type prefixWriter struct {
	http.ResponseWriter
	prefix string
}

func (w prefixWriter) WriteHeader(statusCode int) {
	if statusCode >= 300 && statusCode < 400 {
		if location := w.Header().Get("Location"); strings.HasPrefix(location, "/") && !strings.HasPrefix(location, "//") {
			w.Header().Set("Location", w.prefix+location)
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// HandlePrefix mounts handler below prefix. The handler sees paths without the prefix, and its redirects get the prefix back.
// A request for the bare prefix is redirected to prefix + "/".
//
// A reverse proxy in front of it must not strip the prefix.
func HandlePrefix(mux *http.ServeMux, prefix string, handler http.Handler) {

	prefix = strings.TrimSuffix(prefix, "/")

	var stripped = http.StripPrefix(prefix, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if prefix != "" {
			w = prefixWriter{w, prefix}
		}
		handler.ServeHTTP(w, req)
	}))

	mux.Handle(prefix+"/", stripped) // ServeMux matches subtrees by trailing slash only

	if prefix != "" {
		mux.Handle(prefix, http.RedirectHandler(prefix+"/", http.StatusMovedPermanently))
	}
}
