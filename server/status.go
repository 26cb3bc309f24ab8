package server

import (
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"

	"github.com/toupcam/toupcam-go/tracelog"
)

// Serves the status page on /status/ and the detailed protocol trace
// at /status/log.gz.

const csrfkey = "x1f6q09dh22wirz5khrnyd73p48j30vm"

type status struct {
	statusFn StatusFunc
	long     *tracelog.MemoryWriter
}

func serveStatus(r *mux.Router, st StatusFunc, long *tracelog.MemoryWriter) {
	status := &status{
		statusFn: st,
		long:     long,
	}
	r.Methods("GET").Path("/").HandlerFunc(status.statusPage)
	r.Methods("POST").Path("/log.gz").HandlerFunc(status.statusGzip)

	r.Use(csrf.Protect([]byte(csrfkey), csrf.Secure(false)))
}

func (s *status) statusGzip(w http.ResponseWriter, r *http.Request) {
	gz, err := s.long.Gzip("toupcamd protocol trace\n")
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="trace.txt.gz"`)
	_, _ = w.Write(gz)
}

func (s *status) statusPage(w http.ResponseWriter, r *http.Request) {
	data := &statusTemplateData{
		Status:    s.statusFn(),
		CSRFField: csrf.TemplateField(r),
	}
	if err := statusTemplate.Execute(w, data); err != nil {
		respondError(w, err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}
