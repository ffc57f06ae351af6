package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/munaimtahir/keystone/internal/console"
	"github.com/munaimtahir/keystone/internal/metrics"
	"github.com/munaimtahir/keystone/internal/session"
	"github.com/munaimtahir/keystone/pkg/config"
	"github.com/munaimtahir/keystone/pkg/logger"
)

var buildVersion = "dev"

const requestTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout(args)
	case "health":
		err = commandHealth(args)
	case "repo":
		err = commandRepo(args)
	case "app":
		err = commandApp(args)
	case "logs":
		err = commandLogs(args)
	case "watch":
		err = commandWatch(args)
	case "tui":
		err = commandTUI(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// env is everything a command needs: a console over a restored session.
type env struct {
	cfg    config.ConsoleConfig
	logger *slog.Logger
	con    *console.Console
	close  func()
}

// bootstrap loads configuration, restores the persisted session and wires a
// console. apiFlag overrides the base URL for this invocation. When
// interactive is set, logs go to the log file instead of stderr.
func bootstrap(apiFlag string, interactive bool) (*env, error) {
	cfg := config.LoadConsoleConfig()
	var closers []func()

	var out io.Writer = os.Stderr
	if interactive {
		f, err := logger.OpenFile(cfg.LogFile)
		if err != nil {
			out = io.Discard
		} else {
			out = f
			closers = append(closers, func() { f.Close() })
		}
	}
	log := logger.New("keystone", cfg.LogLevel, out)

	backend, err := session.NewBackend(cfg)
	if err != nil {
		return nil, err
	}
	if c, ok := backend.(io.Closer); ok {
		closers = append(closers, func() { c.Close() })
	}
	store := session.NewStore(backend, log)
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	if _, err := store.Restore(ctx); err != nil {
		log.Warn("failed to restore session", "error", err)
	}
	cancel()

	cfg.APIBaseURL = resolveBase(apiFlag, cfg.APIBaseURL, store.APIBaseURL())
	if _, set := os.LookupEnv("KEYSTONE_PUBLIC_HOST"); !set {
		cfg.PublicHost = config.HostOf(cfg.APIBaseURL)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(reg)

	con, err := console.New(cfg, store, log, mt)
	if err != nil {
		return nil, err
	}
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, reg, log)
		closers = append(closers, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		})
	}

	return &env{
		cfg:    cfg,
		logger: log,
		con:    con,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

// resolveBase picks the API base: flag, then an explicit environment value,
// then the base persisted with the session, then the configured default.
func resolveBase(flagValue, configured, persisted string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v, ok := os.LookupEnv("KEYSTONE_API_BASE"); ok && strings.TrimSpace(v) != "" {
		return configured
	}
	if v := strings.TrimSpace(persisted); v != "" {
		return v
	}
	return configured
}

func serveMetrics(addr string, reg *prometheus.Registry, log *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", "error", err)
		}
	}()
	return srv
}

// requireSession fails fast when no operator is logged in.
func (e *env) requireSession() error {
	if !e.con.Authenticated() {
		return errors.New("please login first using 'keystone login'")
	}
	return nil
}

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printUsage() {
	fmt.Printf("keystone CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	keystone login --username admin [--password secret] [--api http://localhost:8000]
	keystone logout
	keystone health [--api url]
	keystone repo list
	keystone repo create --name <name> --git-url <url> [--branch main] [--github-token tok]
	keystone repo show --id <repo-id>
	keystone repo inspect --id <repo-id>
	keystone repo prepare --id <repo-id>
	keystone app list
	keystone app create --name <name> --repo <repo-id> --port <port> [--health /health] [--env '{"K":"V"}']
	keystone app deploy|update|rollback --id <app-id> [--wait]
	keystone app stop --id <app-id>
	keystone app status --id <app-id>
	keystone app history --id <app-id>
	keystone app logs --id <app-id>
	keystone logs --deployment <deployment-id>
	keystone watch
	keystone tui
	keystone version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
