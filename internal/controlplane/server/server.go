package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/hlarb/internal/domain"
	"github.com/betbot/hlarb/internal/journal"
	"github.com/betbot/hlarb/internal/risk"
	"github.com/betbot/hlarb/pkg/marketmath"
)

var serverLog = logrus.WithField("component", "status_server")

// ExposureSource 每次请求都重新对账
type ExposureSource interface {
	Snapshot(ctx context.Context) (*domain.ExposureSnapshot, error)
}

type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (domain.Quote, error)
}

type JournalSource interface {
	List(ctx context.Context, opt journal.ListOptions) ([]domain.ExecutionRecord, error)
}

type BreakerSource interface {
	State() risk.BreakerState
}

// Config 只读状态服务。未提供的数据源对应接口返回 503。
type Config struct {
	Addr     string
	Exposure ExposureSource
	Quotes   QuoteSource
	Journal  JournalSource
	Breaker  BreakerSource
	// Metrics 挂载到 /metrics，可为 nil
	Metrics http.Handler
	// RequestTimeout 单个请求访问交易所的超时
	RequestTimeout time.Duration
}

type Server struct {
	cfg Config
}

func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, errors.New("listen addr is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Server{cfg: cfg}, nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	if s.cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.cfg.Metrics))
	}

	api := r.Group("/api")
	api.GET("/exposure", s.handleExposure)
	api.GET("/quote/:symbol", s.handleQuote)
	api.GET("/journal", s.handleJournal)
	api.GET("/breaker", s.handleBreaker)
	return r
}

// ListenAndServe 阻塞直到 ctx 取消，然后优雅关闭
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errC := make(chan error, 1)
	go func() {
		serverLog.Infof("状态服务监听 %s", s.cfg.Addr)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func (s *Server) handleExposure(c *gin.Context) {
	if s.cfg.Exposure == nil {
		writeError(c, http.StatusServiceUnavailable, "exposure not configured")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()
	snap, err := s.cfg.Exposure.Snapshot(ctx)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type quoteResponse struct {
	domain.Quote
	Mid       *string `json:"mid,omitempty"`
	SpreadBps *string `json:"spread_bps,omitempty"`
}

func (s *Server) handleQuote(c *gin.Context) {
	if s.cfg.Quotes == nil {
		writeError(c, http.StatusServiceUnavailable, "quotes not configured")
		return
	}
	symbol := strings.TrimSpace(c.Param("symbol"))
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.RequestTimeout)
	defer cancel()
	q, err := s.cfg.Quotes.Quote(ctx, symbol)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := quoteResponse{Quote: q}
	top := marketmath.TopOfBook{Bid: q.BestBid, Ask: q.BestAsk}
	if mid, err := top.Mid(); err == nil {
		midStr := mid.String()
		resp.Mid = &midStr
	}
	if spread, err := top.SpreadBps(); err == nil {
		spreadStr := spread.StringFixed(2)
		resp.SpreadBps = &spreadStr
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleJournal(c *gin.Context) {
	if s.cfg.Journal == nil {
		writeError(c, http.StatusServiceUnavailable, "journal not configured")
		return
	}
	opt := journal.ListOptions{Symbol: strings.TrimSpace(c.Query("symbol"))}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		opt.Limit = n
	}
	recs, err := s.cfg.Journal.List(c.Request.Context(), opt)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []domain.ExecutionRecord{}
	}
	c.JSON(http.StatusOK, recs)
}

func (s *Server) handleBreaker(c *gin.Context) {
	if s.cfg.Breaker == nil {
		writeError(c, http.StatusServiceUnavailable, "breaker not configured")
		return
	}
	c.JSON(http.StatusOK, s.cfg.Breaker.State())
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// writeDomainError 错误分类 -> HTTP 状态码
func writeDomainError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrTransportFailure):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= 500 {
		serverLog.WithField("path", c.FullPath()).Warnf("请求失败: %v", err)
	}
	writeError(c, status, err.Error())
}
