package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tcplb/tcplb/internal/api"
	"github.com/tcplb/tcplb/internal/config"
	"github.com/tcplb/tcplb/internal/dispatch"
	"github.com/tcplb/tcplb/internal/metrics"
	"github.com/tcplb/tcplb/internal/pool"
	"github.com/tcplb/tcplb/internal/proxy"
)

func main() {
	configPath := flag.String("config", "configs/tcplb.yaml", "path to configuration file")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("tcplb starting...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	specs := loadRosterRetrying(cfg.Roster.Path)
	log.Printf("roster loaded from %s (%d backends)", cfg.Roster.Path, len(specs))

	m := metrics.New()
	p := pool.New()
	p.LoadRoster(specs, cfg.Pool.MaxConnections)

	live := p.DialAll(cfg.Pool.DialTimeout, m)
	if live == 0 {
		log.Fatalf("no backends could be dialed, aborting")
	}
	log.Printf("dialed %d/%d backends", live, len(specs))

	pollTimeoutMs := int(cfg.Pool.EffectivePollTimeout().Milliseconds())
	workers := make([]*pool.Worker, 0, live)
	for _, b := range p.Backends() {
		name, _, _ := b.Identity()
		w := pool.NewWorker(b, pollTimeoutMs, m)
		go w.Run()
		go w.RunDemux()
		workers = append(workers, w)
		log.Printf("worker started for backend %s", name)
	}

	stopStatsLoop := p.StartStatsLoop(5*time.Second, m)

	d := dispatch.New(p)
	proxyServer := proxy.NewServer(d, m)
	if err := proxyServer.Listen(cfg.Listen.Port); err != nil {
		log.Fatalf("failed to start proxy listener: %v", err)
	}

	apiServer := api.NewServer(p, m, cfg.Admin)
	if err := apiServer.Start(cfg.Listen.APIPort); err != nil {
		log.Fatalf("failed to start admin API: %v", err)
	}

	configWatcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		log.Printf("configuration file reloaded; the running pool, workers and admin API keep their startup settings")
	})
	if err != nil {
		log.Printf("warning: config hot-reload not available: %v", err)
	}

	log.Printf("tcplb ready - listen:%d api:%d", cfg.Listen.Port, cfg.Listen.APIPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %s, shutting down...", sig)

	if configWatcher != nil {
		configWatcher.Stop()
	}
	stopStatsLoop()
	for _, w := range workers {
		w.Stop()
	}
	if err := apiServer.Stop(); err != nil {
		log.Printf("admin API shutdown error: %v", err)
	}
	proxyServer.Stop()

	log.Printf("tcplb stopped")
}

// loadRosterRetrying loads the backend roster, retrying with a fixed
// backoff on failure instead of aborting. The original program reprompts
// an operator at its controlling terminal and loops until the file opens;
// tcplb runs as an unattended daemon, so the retry loop plays the same
// role without a stdin prompt that would never be read.
func loadRosterRetrying(path string) []config.BackendSpec {
	const retryDelay = 5 * time.Second
	for {
		specs, err := config.LoadRoster(path)
		if err == nil {
			return specs
		}
		log.Printf("failed to load backend roster from %s: %v (retrying in %s)", path, err, retryDelay)
		time.Sleep(retryDelay)
	}
}
