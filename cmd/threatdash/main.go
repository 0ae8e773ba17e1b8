package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"threatdash/internal/server"
	"threatdash/internal/stream"
	"threatdash/internal/synth"
	"threatdash/internal/threat"
)

func main() {
	cfg := server.LoadConfig()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	vulns := threat.NewFeed[threat.VulnerabilityRecord](threat.NewNVDClient(cfg.NVDURL, cfg.NVDAPIKey), threat.VulnerabilityWindow)
	hosts := threat.NewFeed[threat.BlacklistedHost](threat.NewAbuseIPDBClient(cfg.AbuseIPDBURL, cfg.AbuseIPDBAPIKey), threat.BlacklistWindow)
	if cfg.AbuseIPDBAPIKey == "" {
		slog.Warn("ABUSEIPDB_API_KEY not set, blacklist feed disabled")
	}

	syn := synth.New(vulns.Cache(), hosts.Cache(), nil)
	pub := stream.New(syn, stream.Config{Demo: cfg.DemoMode, AllowedOrigins: cfg.AllowedOrigins}, vulns, hosts)
	srv := server.New(cfg, vulns, hosts, syn, pub)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.DemoMode {
		sched := threat.NewScheduler(threat.RefreshInterval)
		sched.Register(vulns)
		sched.Register(hosts)
		sched.OnRefresh(srv.ObserveRefresh)
		go sched.Run(ctx)
	} else {
		slog.Info("demo mode, feeds disabled")
	}

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
	slog.Info("shutdown complete")
}
