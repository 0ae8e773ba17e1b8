package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"threatdash/internal/stream"
	"threatdash/internal/synth"
	"threatdash/internal/threat"
)

const (
	Version = "2.0"

	previewSize     = 10
	shutdownTimeout = 10 * time.Second
	healthPrefix    = "threatdash."
)

// Server exposes the feed caches and event stream over HTTP and gRPC health.
type Server struct {
	cfg     *Config
	vulns   *threat.Feed[threat.VulnerabilityRecord]
	hosts   *threat.Feed[threat.BlacklistedHost]
	synth   *synth.Synthesizer
	stream  *stream.Publisher
	router  *mux.Router
	health  *health.Server
	grpcSrv *grpc.Server
}

func New(cfg *Config, vulns *threat.Feed[threat.VulnerabilityRecord], hosts *threat.Feed[threat.BlacklistedHost], s *synth.Synthesizer, pub *stream.Publisher) *Server {
	srv := &Server{
		cfg:     cfg,
		vulns:   vulns,
		hosts:   hosts,
		synth:   s,
		stream:  pub,
		router:  mux.NewRouter(),
		health:  health.NewServer(),
		grpcSrv: grpc.NewServer(),
	}
	healthpb.RegisterHealthServer(srv.grpcSrv, srv.health)
	srv.ObserveRefresh(vulns.Name(), vulns.Len(), nil)
	srv.ObserveRefresh(hosts.Name(), hosts.Len(), nil)
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/cves", s.handleCVEs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/malicious-ips", s.handleMaliciousIPs).Methods(http.MethodGet)
	s.router.HandleFunc("/api/threats/sample", s.handleSample).Methods(http.MethodGet)
	s.router.Handle("/ws/threats", s.stream).Methods(http.MethodGet)
}

// Router returns the HTTP handler with CORS applied.
func (s *Server) Router() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodHead, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		handlers.AllowCredentials(),
	)
	return cors(s.router)
}

// ObserveRefresh keeps the per-feed gRPC health status in step with the
// cache. It matches threat.RefreshFunc.
func (s *Server) ObserveRefresh(name string, records int, _ error) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if records > 0 {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(healthPrefix+name, status)
}

// Run serves HTTP, metrics and gRPC until ctx is cancelled, then shuts all
// of them down.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{Addr: s.cfg.HTTPAddr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{Addr: s.cfg.MetricsAddr, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", s.cfg.HTTPAddr)
		return ignoreClosed(httpSrv.ListenAndServe())
	})
	g.Go(func() error {
		slog.Info("metrics listening", "addr", s.cfg.MetricsAddr)
		return ignoreClosed(metricsSrv.ListenAndServe())
	})
	g.Go(func() error {
		return s.StartGRPC(s.cfg.GRPCAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.health.Shutdown()
		s.stream.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown", "err", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics shutdown", "err", err)
		}
		s.grpcSrv.GracefulStop()
		return nil
	})
	return g.Wait()
}

// StartGRPC serves the gRPC health service on addr until the server stops.
func (s *Server) StartGRPC(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("grpc listening", "addr", addr)
	if err := s.grpcSrv.Serve(ln); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

type dataSources struct {
	CVEsLoaded         int `json:"cves_loaded"`
	MaliciousIPsLoaded int `json:"malicious_ips_loaded"`
}

type statusResponse struct {
	Status      string      `json:"status"`
	Version     string      `json:"version"`
	Services    []string    `json:"services"`
	DataSources dataSources `json:"data_sources"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:   "Online",
		Version:  Version,
		Services: []string{"WebSocket", "REST", "gRPC"},
		DataSources: dataSources{
			CVEsLoaded:         s.vulns.Len(),
			MaliciousIPsLoaded: s.hosts.Len(),
		},
	})
}

func (s *Server) handleCVEs(w http.ResponseWriter, r *http.Request) {
	lazyPopulate(r.Context(), s.vulns)
	cache := s.vulns.Cache()
	writeJSON(w, http.StatusOK, struct {
		Count int                          `json:"count"`
		CVEs  []threat.VulnerabilityRecord `json:"cves"`
	}{cache.Len(), cache.Head(previewSize)})
}

func (s *Server) handleMaliciousIPs(w http.ResponseWriter, r *http.Request) {
	lazyPopulate(r.Context(), s.hosts)
	cache := s.hosts.Cache()
	writeJSON(w, http.StatusOK, struct {
		Count int                      `json:"count"`
		IPs   []threat.BlacklistedHost `json:"ips"`
	}{cache.Len(), cache.Head(previewSize)})
}

func (s *Server) handleSample(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DemoMode {
		writeJSON(w, http.StatusOK, s.synth.Fabricate())
		return
	}
	lazyPopulate(r.Context(), s.vulns)
	lazyPopulate(r.Context(), s.hosts)
	writeJSON(w, http.StatusOK, s.synth.Synthesize())
}

func lazyPopulate(ctx context.Context, f stream.Populator) {
	err := f.EnsurePopulated(ctx)
	if err != nil && !errors.Is(err, threat.ErrNoCredential) {
		slog.Warn("lazy feed fetch failed", "source", f.Name(), "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
