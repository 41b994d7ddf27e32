// intercept-proxy runs the intercepting proxy on its own and sends every
// request it sees to a log relay, usually one hosted by proxy-viewer.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/user/proxy-relay-go/internal/config"
	"github.com/user/proxy-relay-go/internal/logging"
	"github.com/user/proxy-relay-go/internal/producer"
	"github.com/user/proxy-relay-go/internal/service"
	"github.com/user/proxy-relay-go/internal/version"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version.Info("intercept-proxy"))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	flagSet := pflag.NewFlagSet("intercept-proxy", pflag.ContinueOnError)
	host := flagSet.String("host", cfg.Proxy.Host, "proxy listen host")
	port := flagSet.IntP("port", "p", cfg.Proxy.Port, "proxy listen port")
	relayAddr := flagSet.String("relay", cfg.ProducerAddr(), "log relay address")
	mitm := flagSet.Bool("mitm", cfg.Proxy.MITM, "decrypt HTTPS CONNECT tunnels")
	verbose := flagSet.Bool("verbose", cfg.Proxy.Verbose, "log proxy internals")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		Dir:      logging.Dir(),
		FileName: "intercept-proxy.log",
		Rotation: cfg.LogRotation,
		Console:  true,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	forwarder := service.NewForwarder(producer.NewClient(*relayAddr, cfg.Proxy.DialTimeout), logger)
	interceptor := service.NewInterceptor(forwarder, service.InterceptorOptions{
		MITM:    *mitm,
		Verbose: *verbose,
	}, logger)
	proxy := service.NewProxyService(interceptor, nil, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := proxy.Start(ctx, *host, *port); err != nil {
		return err
	}
	logger.Info("forwarding intercepted requests", zap.String("relay", *relayAddr))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := proxy.Stop(shutdownCtx); err != nil {
		logger.Warn("proxy shutdown", zap.Error(err))
	}
	forwarder.Stop()

	stats := forwarder.Stats()
	logger.Info("stopped",
		zap.Int64("intercepted", interceptor.Intercepted()),
		zap.Int64("sent", stats.Sent),
		zap.Int64("failed", stats.Failed),
		zap.Int64("dropped", stats.Dropped),
	)
	return nil
}
