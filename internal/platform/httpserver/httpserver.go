package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults. Registration calls are
// synchronous and short; the write timeout doubles as the outer bound on any
// lock wait inside a request.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
