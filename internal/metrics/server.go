package metrics

import (
	"context"
	"errors"
	"expvar"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/sirupsen/logrus"
)

var debugRoutes = map[string]http.HandlerFunc{
	"/debug/pprof/":        pprof.Index,
	"/debug/pprof/cmdline": pprof.Cmdline,
	"/debug/pprof/profile": pprof.Profile,
	"/debug/pprof/symbol":  pprof.Symbol,
	"/debug/pprof/trace":   pprof.Trace,
}

// Handler /debug/vars（做市计数器）与 /debug/pprof
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	for path, h := range debugRoutes {
		mux.HandleFunc(path, h)
	}
	return mux
}

// StartAsync 在 listenAddr 上启动调试服务，ctx 结束时关闭。建议只监听 localhost。
func StartAsync(ctx context.Context, listenAddr string, log logrus.FieldLogger) (*http.Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	log = log.WithField("component", "metrics")
	srv := &http.Server{Handler: Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("调试服务退出: %v", err)
		}
	}()
	context.AfterFunc(ctx, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(closeCtx)
	})

	log.Infof("调试服务: http://%s/debug/vars", ln.Addr())
	return srv, nil
}
