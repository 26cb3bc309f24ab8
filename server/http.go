package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/toupcam/toupcam-go/tracelog"
)

// Diagnostics HTTP server: a status page with the camera state and
// frame counters, and the detailed protocol trace as a gzip download.
// Bound to loopback; it is an operator tool, not an API.

const defaultAddr = "127.0.0.1:21327"

// Status is the snapshot the daemon exposes.
type Status struct {
	Version   string
	Device    string
	Streaming bool
	Mode      string
	Depth     string
	Frames    uint64
	Dropped   uint64
	LastTook  string
}

// StatusFunc supplies a fresh snapshot per request.
type StatusFunc func() Status

type Server struct {
	https  *http.Server
	writer io.Writer
}

func New(addr string, st StatusFunc, long *tracelog.MemoryWriter, logWriter io.Writer) (*Server, error) {
	if addr == "" {
		addr = defaultAddr
	}
	https := &http.Server{
		Addr: addr,
	}
	s := &Server{
		https:  https,
		writer: logWriter,
	}

	r := mux.NewRouter()
	statusRouter := r.PathPrefix("/status").Subrouter()
	serveStatus(statusRouter, st, long)

	r.Methods("GET").Path("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/status/", http.StatusMovedPermanently)
	})

	var h http.Handler = r
	// Log after the request is done, in the Apache format.
	h = handlers.LoggingHandler(logWriter, h)
	// Log when the request is received.
	h = s.logRequest(h)

	https.Handler = h

	return s, nil
}

func (s *Server) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		text := fmt.Sprintf("%s %s\n", r.Method, r.URL)
		if _, err := s.writer.Write([]byte(text)); err != nil {
			fmt.Println(err)
		}
		handler.ServeHTTP(w, r)
	})
}

func (s *Server) Run() error {
	return s.https.ListenAndServe()
}
