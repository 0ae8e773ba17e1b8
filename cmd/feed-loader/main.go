package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"threatdash/internal/server"
	"threatdash/internal/threat"
)

func main() {
	cfg := server.LoadConfig()
	vulns := threat.NewFeed[threat.VulnerabilityRecord](threat.NewNVDClient(cfg.NVDURL, cfg.NVDAPIKey), threat.VulnerabilityWindow)
	hosts := threat.NewFeed[threat.BlacklistedHost](threat.NewAbuseIPDBClient(cfg.AbuseIPDBURL, cfg.AbuseIPDBAPIKey), threat.BlacklistWindow)

	sched := threat.NewScheduler(threat.RefreshInterval)
	sched.Register(vulns)
	sched.Register(hosts)

	var failed atomic.Bool
	sched.OnRefresh(func(name string, records int, err error) {
		if err != nil && !errors.Is(err, threat.ErrNoCredential) {
			failed.Store(true)
		}
		slog.Info("feed loaded", "source", name, "records", records)
	})

	ctx, cancel := context.WithTimeout(context.Background(), threat.FetchTimeout+5*time.Second)
	defer cancel()

	sched.RunOnce(ctx)
	if failed.Load() {
		os.Exit(1)
	}
}
