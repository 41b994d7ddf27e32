package service

import (
	"net/http"
	"sync/atomic"

	"github.com/elazarl/goproxy"
	"github.com/user/proxy-relay-go/internal/producer"
	"go.uber.org/zap"
)

// InterceptorOptions configures the intercepting proxy.
type InterceptorOptions struct {
	// MITM decrypts HTTPS CONNECT tunnels so their requests are visible.
	MITM    bool
	Verbose bool
}

// Interceptor is an HTTP proxy that reports every request it forwards.
type Interceptor struct {
	proxy       *goproxy.ProxyHttpServer
	forwarder   *Forwarder
	intercepted atomic.Int64
}

// NewInterceptor builds a goproxy server whose request hook formats each
// request and hands it to forwarder.
func NewInterceptor(forwarder *Forwarder, opts InterceptorOptions, logger *zap.Logger) *Interceptor {
	i := &Interceptor{
		proxy:     goproxy.NewProxyHttpServer(),
		forwarder: forwarder,
	}

	i.proxy.Verbose = opts.Verbose
	i.proxy.Logger = zap.NewStdLog(logger.Named("goproxy"))

	if opts.MITM {
		i.proxy.OnRequest().HandleConnect(goproxy.AlwaysMitm)
	}
	i.proxy.OnRequest().DoFunc(func(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
		i.intercepted.Add(1)
		i.forwarder.Enqueue(producer.FormatRequest(req))
		return req, nil
	})

	return i
}

// ServeHTTP implements http.Handler.
func (i *Interceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	i.proxy.ServeHTTP(w, r)
}

// Intercepted returns the number of requests seen.
func (i *Interceptor) Intercepted() int64 {
	return i.intercepted.Load()
}

// Forwarder returns the relay forwarder.
func (i *Interceptor) Forwarder() *Forwarder {
	return i.forwarder
}
