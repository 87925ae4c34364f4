package gemini

import (
	"context"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusServer exposes an operator-facing /healthz and /metrics surface
// for a Manager. It is optional: a Manager never constructs one itself,
// and starts and closes one only when it is attached with
// WithStatusServer.
type StatusServer struct {
	addr   string
	srv    *http.Server
	health func() bool
}

// NewStatusServer builds a status server bound to addr. health reports
// whether the Manager's connections are currently up.
func NewStatusServer(addr string, reg *prometheus.Registry, health func() bool) *StatusServer {
	s := &StatusServer{addr: addr, health: health}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *StatusServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil || s.health() {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	w.Write([]byte("not connected"))
}

// Start begins serving in a background goroutine. Listen errors after
// startup (other than a clean Shutdown) are not surfaced; callers that
// need that should run their own listener and mux.
func (s *StatusServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	go s.srv.Serve(ln)
	return nil
}

// Close shuts the server down gracefully.
func (s *StatusServer) Close(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
