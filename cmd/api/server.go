package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"fraudserve/internal/shared/config"
	"fraudserve/internal/shared/middleware"
)

const redirectAddr = ":80"

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Handler      http.Handler
	Addr         string
	Port         string
	TLSEnabled   bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
	AllowedHosts []string
}

func newHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServers starts the API server and, when TLS redirects are on, the
// plain-HTTP redirect server. redirectSrv is nil when not started. A listener
// that stops for any reason other than Shutdown reports on the channel.
func StartServers(scfg ServerConfig) (srv, redirectSrv *http.Server, errc <-chan error) {
	errCh := make(chan error, 2)

	srv = newHTTPServer(scfg.Addr, scfg.Handler)
	go func() {
		var err error
		if scfg.TLSEnabled {
			log.Printf("HTTPS server starting on %s", scfg.Addr)
			err = srv.ListenAndServeTLS(scfg.CertPath, scfg.KeyPath)
		} else {
			log.Printf("HTTP server starting on %s", scfg.Addr)
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if scfg.TLSEnabled && scfg.RedirectHTTP {
		redirectSrv = createRedirectServer(scfg.AllowedHosts, scfg.Port)
		go func() {
			log.Printf("HTTP redirect server starting on %s", redirectAddr)
			if err := redirectSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("redirect server: %w", err)
			}
		}()
	}

	return srv, redirectSrv, errCh
}

// GracefulShutdown drains both servers within timeout.
func GracefulShutdown(srv, redirectSrv *http.Server, timeout time.Duration) error {
	log.Printf("Server shutting down (timeout %s)", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, s := range []*http.Server{redirectSrv, srv} {
		if s == nil {
			continue
		}
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", s.Addr, err))
		}
	}

	log.Println("Server stopped")
	return errors.Join(errs...)
}

func createRedirectServer(allowedHosts []string, httpsPort string) *http.Server {
	return newHTTPServer(redirectAddr, middleware.RedirectToHTTPS(allowedHosts, httpsPort))
}

// NewServerConfigFromConfig maps application config onto ServerConfig.
func NewServerConfigFromConfig(handler http.Handler, cfg *config.Config) ServerConfig {
	return ServerConfig{
		Handler:      handler,
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Port:         cfg.Server.Port,
		TLSEnabled:   cfg.TLS.Enabled,
		CertPath:     cfg.TLS.CertPath,
		KeyPath:      cfg.TLS.KeyPath,
		RedirectHTTP: cfg.TLS.RedirectHTTP,
		AllowedHosts: cfg.Server.AllowedHosts,
	}
}
