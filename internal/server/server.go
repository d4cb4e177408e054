// Package server is the upload service: it owns the config, the logger, the
// render cache and the http.Server, and wires the routes onto a mux.Router.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"ecgview/internal/cache"
	"ecgview/internal/config"
	"ecgview/internal/security"
	"ecgview/web"
)

const selfSignedValidity = 365 * 24 * time.Hour

// Server holds shared resources. It is not the HTTP server itself.
type Server struct {
	Config *config.Config
	Logger *zerolog.Logger
	Cache  cache.Cache

	router     *mux.Router
	pages      *template.Template
	httpServer *http.Server
}

// New builds the router. A nil cache disables caching.
func New(cfg *config.Config, logger *zerolog.Logger, c cache.Cache) (*Server, error) {
	if c == nil {
		c = cache.Nop{}
	}

	pages, err := web.Templates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		Config: cfg,
		Logger: logger,
		Cache:  c,
		pages:  pages,
	}
	s.router = s.routes()
	return s, nil
}

// Handler is the full middleware and route stack.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetupHTTPServer configures the internal net/http server, with TLS when
// enabled in the config.
func (s *Server) SetupHTTPServer() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.Config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.Config.Server.ReadTimeout,
		WriteTimeout: s.Config.Server.WriteTimeout,
		IdleTimeout:  s.Config.Server.IdleTimeout,
	}

	tlsCfg := s.Config.Server.TLS
	if !tlsCfg.Enabled {
		return nil
	}

	var (
		tc  *tls.Config
		err error
	)
	if tlsCfg.SelfSigned {
		tc, err = security.SelfSignedTLSConfig(certHosts(), selfSignedValidity)
	} else {
		tc, err = security.FileTLSConfig(tlsCfg.CertFile, tlsCfg.KeyFile)
	}
	if err != nil {
		return fmt.Errorf("failed to set up TLS: %w", err)
	}
	s.httpServer.TLSConfig = tc
	return nil
}

// Start runs the HTTP server. It blocks until Shutdown is called, in which
// case it returns nil.
func (s *Server) Start() error {
	if s.httpServer == nil {
		return errors.New("HTTP server not initialized")
	}

	s.Logger.Info().
		Str("port", s.Config.Server.Port).
		Str("env", s.Config.Primary.Env).
		Bool("tls", s.httpServer.TLSConfig != nil).
		Str("cache", s.Config.Cache.Driver).
		Msg("starting server")

	var err error
	if s.httpServer.TLSConfig != nil {
		err = s.httpServer.ListenAndServeTLS("", "")
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests, then closes the cache.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	if err := s.Cache.Close(); err != nil {
		return fmt.Errorf("failed to close cache: %w", err)
	}
	return nil
}

// BaseURL is the address announced to discovery clients.
func (s *Server) BaseURL(host string) string {
	scheme := "http"
	if s.Config.Server.TLS.Enabled {
		scheme = "https"
	}
	if host == "" {
		host = "127.0.0.1"
	}
	return scheme + "://" + net.JoinHostPort(host, s.Config.Server.Port)
}

func certHosts() []string {
	hosts := []string{"localhost", "127.0.0.1"}
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			hosts = append(hosts, ipnet.IP.String())
		}
	}
	return hosts
}
