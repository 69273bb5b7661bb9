package plot

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPServer defines the interface for an HTTP server that Chart will use
type HTTPServer interface {
	// RegisterHandler registers a handler for a specific route
	RegisterHandler(path string, handler http.HandlerFunc)

	// RegisterFileServer registers a handler to serve static files
	RegisterFileServer(path string, fs http.FileSystem)

	// Start starts the HTTP server on the specified port
	Start(port int) error
}

// StandardHTTPServer implements the HTTPServer interface using the standard http package
type StandardHTTPServer struct {
	mux          *http.ServeMux
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewStandardHTTPServer creates a new instance of StandardHTTPServer
func NewStandardHTTPServer(readTimeout, writeTimeout time.Duration) *StandardHTTPServer {
	return &StandardHTTPServer{
		mux:          http.NewServeMux(),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// RegisterHandler registers a handler for a specific route
func (s *StandardHTTPServer) RegisterHandler(path string, handler http.HandlerFunc) {
	s.mux.HandleFunc(path, handler)
}

// RegisterFileServer registers a handler to serve static files
func (s *StandardHTTPServer) RegisterFileServer(path string, fs http.FileSystem) {
	s.mux.Handle(path, http.FileServer(fs))
}

// Start starts the HTTP server on the specified port
func (s *StandardHTTPServer) Start(port int) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.mux,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}
	return server.ListenAndServe()
}
