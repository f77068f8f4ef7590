package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/riotkit-org/backup-e2e/api/v1"
)

type Server struct {
	srv      *http.Server
	listener net.Listener
	log      *zap.SugaredLogger
}

// NewServer binds addr and builds the router. registerHandlerFn receives the
// /api/stable group. Use ":0" or "127.0.0.1:0" to get a free port.
func NewServer(addr string, registerHandlerFn func(router *gin.RouterGroup)) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(
		ginzap.Ginzap(zap.L(), time.RFC3339, true),
		ginzap.RecoveryWithZap(zap.L(), true),
	)
	registerHandlerFn(engine.Group(v1.BasePath))

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	return &Server{
		srv: &http.Server{
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: listener,
		log:      zap.S().Named("server"),
	}, nil
}

// Start serves requests until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("server started", "address", s.Addr())
		errCh <- s.srv.Serve(s.listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return s.Stop(context.WithoutCancel(ctx))
	}
}

func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// URL is the base URL clients should use, without the API prefix.
func (s *Server) URL() string {
	return "http://" + s.Addr()
}
