// Package statusapi 只读状态接口：返回最新快照与模式决策。
package statusapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/makerbot/internal/domain"
)

// Source 最新快照来源（stats.Latest）
type Source interface {
	Get() (domain.StatsRecord, bool)
	Mode() domain.Mode
	Reason() string
	RunID() string
}

// StatusResponse GET /api/status 响应
type StatusResponse struct {
	domain.StatsRecord
	Mode   string `json:"mode"`
	Reason string `json:"reason,omitempty"`
	RunID  string `json:"run_id,omitempty"`
}

// Server 状态接口
type Server struct {
	src Source
	log logrus.FieldLogger
}

// New 创建状态接口
func New(src Source, log logrus.FieldLogger) *Server {
	return &Server{src: src, log: log.WithField("component", "statusapi")}
}

// Router 路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	api := r.Group("/api")
	api.GET("/status", s.handleStatus)
	return r
}

func (s *Server) handleStatus(c *gin.Context) {
	rec, ok := s.src.Get()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot yet"})
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		StatsRecord: rec,
		Mode:        s.src.Mode().Status(),
		Reason:      s.src.Reason(),
		RunID:       s.src.RunID(),
	})
}

// StartAsync 启动状态接口（非阻塞），并在 ctx.Done() 时优雅关闭
func (s *Server) StartAsync(ctx context.Context, listenAddr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("状态接口异常退出: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Infof("状态接口已启动: http://%s/api/status", ln.Addr())
	return srv, nil
}
