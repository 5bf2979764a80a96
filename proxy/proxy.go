// Package proxy implements a MITM proxy that answers blacklisted requests
// with synthetic responses instead of forwarding them.
package proxy

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/AdguardTeam/gomitmproxy"
	"github.com/netinterceptor/blockfilter"
)

// Config contains the MITM proxy configuration.
type Config struct {
	// Logger is used for the proxy's own records.  It must not be nil.
	Logger *slog.Logger

	// Engine makes the interception decisions.  It must not be nil.
	Engine *blockfilter.Engine

	// ProxyConfig is the configuration of the underlying MITM proxy.  Its
	// OnRequest handler is overwritten.
	ProxyConfig gomitmproxy.Config
}

// String returns the human-readable description of the configuration.
func (c *Config) String() (s string) {
	b := &strings.Builder{}

	if c.ProxyConfig.ListenAddr != nil {
		_, _ = fmt.Fprintf(b, "Listen addr: %s\n", c.ProxyConfig.ListenAddr)
	}

	_, _ = fmt.Fprintf(b, "MITM status: %t\n", c.ProxyConfig.MITMConfig != nil)
	_, _ = fmt.Fprintf(b, "Run as HTTPS proxy: %t\n", c.ProxyConfig.TLSConfig != nil)

	if c.ProxyConfig.Username != "" {
		_, _ = fmt.Fprintf(b, "Proxy auth: %s\n", c.ProxyConfig.Username)
	}

	if c.Engine != nil {
		_, _ = fmt.Fprintf(b, "Patterns: %d\n", c.Engine.Patterns().Len())
	}

	return b.String()
}

// Server is the intercepting proxy server.
type Server struct {
	logger      *slog.Logger
	engine      *blockfilter.Engine
	proxyServer *gomitmproxy.Proxy
}

// NewServer returns a new *Server.  c must not be nil.
func NewServer(c *Config) (s *Server) {
	c.Logger.Info("initializing the proxy server", "config", c.String())

	s = &Server{
		logger: c.Logger,
		engine: c.Engine,
	}

	proxyConf := c.ProxyConfig
	proxyConf.OnRequest = s.onRequest
	s.proxyServer = gomitmproxy.NewProxy(proxyConf)

	return s
}

// Start starts the proxy server.
func (s *Server) Start() (err error) {
	err = s.proxyServer.Start()
	if err != nil {
		return fmt.Errorf("starting proxy: %w", err)
	}

	return nil
}

// Close stops the proxy server.
func (s *Server) Close() {
	s.proxyServer.Close()
}
