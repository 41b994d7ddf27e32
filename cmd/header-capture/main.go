// header-capture is a throwaway origin server for checking what a client
// sends. It prints each request's headers and also forwards the request to
// the log relay so it shows up in proxy-viewer.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"github.com/user/proxy-relay-go/internal/config"
	"github.com/user/proxy-relay-go/internal/producer"
	"github.com/user/proxy-relay-go/internal/service"
	"go.uber.org/zap"
)

const maxHeaderDisplay = 120

func main() {
	flagSet := pflag.NewFlagSet("header-capture", pflag.ContinueOnError)
	port := flagSet.IntP("port", "p", 19999, "listen port")
	relayAddr := flagSet.String("relay", config.DefaultConfig().ProducerAddr(), "log relay address (empty disables forwarding)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	var forwarder *service.Forwarder
	if *relayAddr != "" {
		forwarder = service.NewForwarder(producer.NewClient(*relayAddr, producer.DefaultDialTimeout), logger)
		defer forwarder.Stop()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           captureHandler(os.Stdout, forwarder),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	fmt.Printf("Header capture server listening on :%d\n", *port)
	fmt.Printf("Point a client at http://localhost:%d to capture headers\n", *port)
	fmt.Println(strings.Repeat("-", 60))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// captureHandler prints every request to out and, when forwarder is set,
// queues it for the relay.
func captureHandler(out io.Writer, forwarder *service.Forwarder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(out, "\n=== %s %s ===\n", r.Method, r.URL.Path)

		keys := make([]string, 0, len(r.Header))
		for k := range r.Header {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			for _, v := range r.Header[k] {
				display := v
				if len(display) > maxHeaderDisplay {
					display = display[:maxHeaderDisplay] + "..."
				}
				fmt.Fprintf(out, "  %s: %s\n", k, display)
			}
		}

		body, _ := io.ReadAll(r.Body)
		fmt.Fprintf(out, "  [Body: %d bytes]\n", len(body))

		if forwarder != nil {
			forwarder.Enqueue(producer.FormatRequest(r))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"captured"}`))
	})
}
