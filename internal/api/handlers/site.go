package handlers

import (
	_ "embed"
	"net/http"
)

//go:embed static/marketing.html
var marketingPage []byte

// Marketing serves the public landing page at GET /.
func Marketing(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(marketingPage) //nolint:errcheck
}
