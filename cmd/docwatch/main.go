// Command docwatch polls documentation sites for changes, accumulates
// day reports, and notifies configured sinks.
//
// Usage:
//
//	docwatch -config config.yaml -sources sources.yaml          # daemon
//	docwatch -config config.yaml -sources sources.yaml -once    # single cycle
//	docwatch -config config.yaml -sources sources.yaml -serve :8080
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazyhaar/docwatch/fetch"
	"github.com/hazyhaar/docwatch/monitor"
	"github.com/hazyhaar/docwatch/notify"
	"github.com/hazyhaar/docwatch/report"
	"github.com/hazyhaar/docwatch/snapshot"
)

func main() {
	configPath := flag.String("config", env("DOCWATCH_CONFIG", "config.yaml"), "path to config file")
	sourcesPath := flag.String("sources", env("DOCWATCH_SOURCES", "sources.yaml"), "path to tracked-sources file")
	once := flag.Bool("once", false, "run one cycle and exit")
	serveAddr := flag.String("serve", "", "serve the reports directory over HTTP on this address")
	verbose := flag.Bool("verbose", false, "debug logging")
	noNotify := flag.Bool("no-notify", false, "disable all notification sinks")
	noReports := flag.Bool("no-reports", false, "disable HTML report rendering")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *sourcesPath, *serveAddr, *once, *noNotify, *noReports); err != nil {
		logger.Error("docwatch: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, sourcesPath, serveAddr string, once, noNotify, noReports bool) error {
	cfg, err := monitor.LoadConfig(configPath)
	if err != nil {
		return err
	}
	sources, err := monitor.LoadSources(sourcesPath)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("no sources configured in %s", sourcesPath)
	}

	db, err := snapshot.Open(cfg.Storage.SnapshotDB)
	if err != nil {
		return err
	}
	defer db.Close()
	snapshots := snapshot.NewStore(db)

	reports := report.NewAccumulator(cfg.Storage.ReportsDir, logger)

	fcfg := cfg.FetchConfig()
	fcfg.URLValidator = fetch.ValidateURL
	fetcher := fetch.New(fcfg)

	opts := []monitor.Option{monitor.WithLogger(logger)}

	if !noReports {
		renderer, err := report.NewRenderer(cfg.Storage.ReportsDir, cfg.Reports.BaseURL)
		if err != nil {
			return err
		}
		opts = append(opts, monitor.WithRenderer(renderer))
	}

	if !noNotify {
		sink := buildSink(cfg, logger)
		defer sink.Close()
		opts = append(opts, monitor.WithSink(sink))
	}

	svc := monitor.New(sources, snapshots, reports, fetcher, opts...)

	if serveAddr != "" {
		go serveReports(ctx, logger, serveAddr, cfg.Storage.ReportsDir)
	}

	if once {
		res, err := svc.Cycle(ctx)
		if err != nil {
			return err
		}
		logger.Info("docwatch: cycle complete",
			"total", res.Total, "changed", res.Changed, "failed", res.Failed)
		return nil
	}

	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	logger.Info("docwatch: starting", "sources", len(sources), "interval", interval.String())
	svc.Run(ctx, interval)
	logger.Info("docwatch: stopped")
	return nil
}

// buildSink assembles the notification fan-out from config. With nothing
// configured it falls back to stdout so a cycle's outcome is always
// visible somewhere.
func buildSink(cfg *monitor.Config, logger *slog.Logger) notify.Sink {
	var sinks []notify.Sink

	if cfg.Telegram.Configured() {
		sinks = append(sinks, notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID))
	} else if cfg.Telegram.Enabled {
		logger.Warn("docwatch: telegram enabled but TELEGRAM_BOT_TOKEN/TELEGRAM_CHAT_ID not set")
	}
	if cfg.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.Webhook.URL, notify.WithWebhookLogger(logger)))
	}
	if len(sinks) == 0 {
		sinks = append(sinks, notify.NewStdout(os.Stdout))
	}

	return notify.NewRouter(logger, sinks...)
}

// serveReports serves the generated reports tree. When AUTH_PASSWORD is
// set, every page requires Basic Auth (user "docwatch").
func serveReports(ctx context.Context, logger *slog.Logger, addr, dir string) {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if pw := os.Getenv("AUTH_PASSWORD"); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("docwatch: hash password", "error", err)
			return
		}
		r.Use(basicAuth(hash))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/*", http.FileServer(http.Dir(dir)))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	logger.Info("docwatch: report server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("docwatch: report server", "error", err)
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func basicAuth(hash []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			user, pass, ok := r.BasicAuth()
			if !ok || user != "docwatch" ||
				bcrypt.CompareHashAndPassword(hash, []byte(pass)) != nil {
				w.Header().Set("WWW-Authenticate", `Basic realm="docwatch reports"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
