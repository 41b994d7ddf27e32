// proxy-viewer hosts the log-relay listener and shows what the intercepting
// proxy sends it. The proxy can be started and stopped from the terminal UI
// or the HTTP API; the relay runs for the lifetime of the process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/user/proxy-relay-go/internal/api"
	"github.com/user/proxy-relay-go/internal/config"
	"github.com/user/proxy-relay-go/internal/database"
	"github.com/user/proxy-relay-go/internal/logging"
	"github.com/user/proxy-relay-go/internal/producer"
	"github.com/user/proxy-relay-go/internal/relay"
	"github.com/user/proxy-relay-go/internal/repository"
	"github.com/user/proxy-relay-go/internal/service"
	"github.com/user/proxy-relay-go/internal/sink"
	"github.com/user/proxy-relay-go/internal/tui"
	"github.com/user/proxy-relay-go/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const logFileName = "proxy-viewer.log"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	headless bool
	init     bool
}

func parseFlags(args []string) (options, bool, error) {
	var opts options

	flagSet := pflag.NewFlagSet("proxy-viewer", pflag.ContinueOnError)
	flagSet.BoolVar(&opts.headless, "headless", false, "run without the terminal UI (API and logs only)")
	flagSet.BoolVar(&opts.init, "init", false, "write a .env.example configuration template and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return opts, true, nil
		}
		return opts, false, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return opts, true, nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, false, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return opts, false, nil
}

func run() error {
	// Handle --version before flag parsing.
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version.Info("proxy-viewer"))
		return nil
	}

	opts, done, err := parseFlags(os.Args[1:])
	if err != nil || done {
		return err
	}
	if opts.init {
		return runInit(".")
	}
	if !opts.headless && !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "stdout is not a terminal, running headless")
		opts.headless = true
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logCore *tui.LogCore
	logOpts := logging.Options{
		Level:    cfg.LogLevel,
		Dir:      logging.Dir(),
		FileName: logFileName,
		Rotation: cfg.LogRotation,
		Console:  opts.headless,
	}
	if !opts.headless {
		logCore = tui.NewLogCore(zap.WarnLevel)
		logOpts.Extra = append(logOpts.Extra, logCore)
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting proxy-viewer",
		zap.String("version", version.Short()),
		zap.String("relay", cfg.Relay.Address()),
		zap.Bool("headless", opts.headless),
	)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db, logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	settings := repository.NewSettingsRepository(db)

	buffer := sink.NewBuffer()
	listener := relay.New(cfg.Relay, buffer, logger)
	startRelay(listener, logger)

	forwarder := service.NewForwarder(producer.NewClient(cfg.ProducerAddr(), cfg.Proxy.DialTimeout), logger)
	interceptor := service.NewInterceptor(forwarder, service.InterceptorOptions{
		MITM:    cfg.Proxy.MITM,
		Verbose: cfg.Proxy.Verbose,
	}, logger)
	proxy := service.NewProxyService(interceptor, settings, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Proxy.AutoStart {
		if err := proxy.Start(ctx, cfg.Proxy.Host, cfg.Proxy.Port); err != nil {
			logger.Warn("proxy autostart failed", zap.Error(err))
		}
	}

	var httpServer *http.Server
	if cfg.API.Enabled {
		server := api.NewServer(api.ServerDeps{
			Buffer:           buffer,
			Relay:            listener,
			Proxy:            proxy,
			DefaultProxyHost: cfg.Proxy.Host,
			LogFile:          logOpts.FilePath(),
			Logger:           logger,
		})
		httpServer = &http.Server{
			Addr:              cfg.API.Address(),
			Handler:           server,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("api server error", zap.Error(err))
			}
		}()
		logger.Info("api server started", zap.String("addr", cfg.API.Address()))
	}

	if opts.headless {
		<-ctx.Done()
	} else {
		model := tui.NewModel(proxy, listener, tui.Options{
			Version: version.Short(),
			Host:    cfg.Proxy.Host,
			Port:    cfg.Proxy.Port,
		})
		if err := tui.Run(ctx, model, buffer, logCore); err != nil {
			logger.Error("terminal ui failed", zap.Error(err))
		}
	}

	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if proxy.Running() {
		if err := proxy.Stop(shutdownCtx); err != nil {
			logger.Warn("proxy shutdown", zap.Error(err))
		}
	}
	forwarder.Stop()
	if err := listener.Shutdown(shutdownCtx); err != nil {
		logger.Warn("relay shutdown", zap.Error(err))
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("api server shutdown", zap.Error(err))
		}
	}

	logger.Info("stopped")
	return nil
}

// startRelay binds the relay. A bind failure is logged and the process
// keeps running; status surfaces report the relay as unavailable.
func startRelay(listener *relay.Relay, logger *zap.Logger) bool {
	if err := listener.Start(); err != nil {
		logger.Warn("relay unavailable, continuing", zap.Error(err))
		return false
	}
	return true
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `proxy-viewer %s - intercepting proxy viewer

Receives intercepted HTTP requests on the log-relay port and shows them in a
terminal UI. The proxy is started and stopped from the UI (ctrl+s) or the
HTTP API.

Usage: proxy-viewer [OPTIONS]

Options:
`, version.Short())
	flagSet.PrintDefaults()
	fmt.Fprint(os.Stderr, `  -v, --version   show version information

Configuration:
  Environment variables or a .env file (see 'proxy-viewer --init').
`)
}
