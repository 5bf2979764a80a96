package main

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/gomitmproxy"
	"github.com/AdguardTeam/gomitmproxy/mitm"
	goFlags "github.com/jessevdk/go-flags"
	"github.com/netinterceptor/blockfilter"
	"github.com/netinterceptor/blockfilter/internal/config"
	"github.com/netinterceptor/blockfilter/internal/metrics"
	"github.com/netinterceptor/blockfilter/proxy"
)

// Options are the command-line arguments.
type Options struct {
	// ConfigPath is the path to the YAML configuration file.
	ConfigPath string `short:"C" long:"config" description:"Path to the YAML configuration file. It is reloaded on changes."`

	// Blacklist is the path to the blacklist document.  It overrides the
	// configuration file.
	Blacklist string `short:"b" long:"blacklist" description:"Path to the blacklist document. Overrides blacklist_config."`

	// LogOutput is the path to the log file.
	LogOutput string `short:"o" long:"output" description:"Path to the log file. If not set, it writes to stderr." default:""`

	// ListenAddr is the server listen address.
	ListenAddr string `short:"l" long:"listen" description:"Listen address." default:"0.0.0.0"`

	// TLSCertPath is the path to the .crt with the certificate chain.
	TLSCertPath string `short:"c" long:"ca-cert" description:"Path to a file with the root certificate." required:"true"`

	// TLSKeyPath is the path to the file with the private key.
	TLSKeyPath string `short:"k" long:"ca-key" description:"Path to a file with the CA private key." required:"true"`

	// ProxyUser is the proxy username.
	ProxyUser string `short:"u" long:"username" description:"Proxy auth username. If specified, proxy authorization is required."`

	// ProxyPassword is the proxy password.
	ProxyPassword string `short:"a" long:"password" description:"Proxy auth password. If specified, proxy authorization is required."`

	// MetricsAddr is the address of the metrics endpoint.  It overrides the
	// configuration file.
	MetricsAddr string `short:"m" long:"metrics" description:"Address of the Prometheus metrics endpoint. Overrides metrics_addr."`

	// IdleTimeout is the time without proxied requests after which the proxy
	// stops.  Zero disables the check.
	IdleTimeout time.Duration `long:"idle-timeout" description:"Stop after this long without requests, 0 to disable." default:"60m"`

	// ListenPort is the server listen port.
	ListenPort uint16 `short:"p" long:"port" description:"Listen port." default:"8866"`

	// Verbose enables debug-level logging.
	Verbose bool `short:"v" long:"verbose" description:"Verbose output (optional)." optional:"yes" optional-value:"true"`
}

func main() {
	var options Options
	var parser = goFlags.NewParser(&options, goFlags.Default)

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*goFlags.Error); ok && flagsErr.Type == goFlags.ErrHelp {
			os.Exit(0)
		}

		os.Exit(1)
	}

	err = run(&options)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "blockfilter: %s\n", err)

		os.Exit(1)
	}
}

// run starts the proxy with the given options and blocks until a termination
// signal is received.
func run(opts *Options) (err error) {
	var out io.Writer = os.Stderr
	if opts.LogOutput != "" {
		// #nosec G302 G304 -- The log file is specified by the operator.
		file, fileErr := os.OpenFile(opts.LogOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if fileErr != nil {
			return fmt.Errorf("creating log file: %w", fileErr)
		}
		defer func() { err = errors.WithDeferred(err, file.Close()) }()

		out = file
	}

	logger := slogutil.New(&slogutil.Config{
		Output:       out,
		Format:       slogutil.FormatDefault,
		AddTimestamp: true,
		Verbose:      opts.Verbose,
	})

	ctx := context.Background()

	conf, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	applyOverrides(opts, conf)

	engine := blockfilter.NewEngine(&blockfilter.Config{
		Logger:         logger.With(slogutil.KeyPrefix, "engine"),
		Reporter:       blockfilter.NewSlogReporter(logger.With(slogutil.KeyPrefix, "interceptor")),
		Settings:       conf.Settings(),
		MatchCacheSize: conf.MatchCacheSize,
	})

	r := newReloader(logger.With(slogutil.KeyPrefix, "reloader"), engine)
	r.apply(ctx, conf)

	var confWatcher *config.Watcher
	if opts.ConfigPath != "" {
		confWatcher, err = startConfigWatcher(ctx, logger, opts, r)
		if err != nil {
			return err
		}
	}

	var metricsSrv *metrics.Server
	if conf.MetricsAddr != "" {
		metricsSrv, err = startMetrics(ctx, logger, conf.MetricsAddr, engine)
		if err != nil {
			return err
		}
	}

	proxyConf, err := newProxyConfig(opts)
	if err != nil {
		return err
	}

	proxyConf.Logger = logger.With(slogutil.KeyPrefix, "proxy")
	proxyConf.Engine = engine

	server := proxy.NewServer(proxyConf)
	err = server.Start()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "proxy started", "addr", proxyConf.ProxyConfig.ListenAddr)

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	idleCh := make(chan struct{})
	if opts.IdleTimeout > 0 {
		idleCtx, cancelIdle := context.WithCancel(ctx)
		defer cancelIdle()

		m := newIdleMonitor(logger.With(slogutil.KeyPrefix, "idle"), engine, opts.IdleTimeout)
		go func() {
			if m.wait(idleCtx) {
				close(idleCh)
			}
		}()
	}

	select {
	case sig := <-signalChannel:
		logger.InfoContext(ctx, "received signal", "signal", sig)
	case <-idleCh:
		logger.InfoContext(ctx, "stopping idle proxy", "timeout", opts.IdleTimeout)
	}

	return shutdown(ctx, server, r, confWatcher, metricsSrv, engine)
}

// startConfigWatcher starts watching the config file of opts and applies every
// valid change through r.
func startConfigWatcher(
	ctx context.Context,
	logger *slog.Logger,
	opts *Options,
	r *reloader,
) (w *config.Watcher, err error) {
	w, err = config.NewWatcher(&config.WatcherConfig{
		Logger: logger.With(slogutil.KeyPrefix, "config"),
		OnChange: func(c *config.Config) {
			applyOverrides(opts, c)
			r.apply(ctx, c)
		},
		Path: opts.ConfigPath,
	})
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	err = w.Start(ctx)
	if err != nil {
		return nil, errors.WithDeferred(fmt.Errorf("watching config: %w", err), w.Shutdown(ctx))
	}

	return w, nil
}

// shutdown stops the services and reports the final counters.  metricsSrv may
// be nil.
func shutdown(
	ctx context.Context,
	server *proxy.Server,
	r *reloader,
	confWatcher *config.Watcher,
	metricsSrv *metrics.Server,
	engine *blockfilter.Engine,
) (err error) {
	const shutdownTimeout = 5 * time.Second

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	server.Close()

	var errs []error
	if confWatcher != nil {
		errs = append(errs, confWatcher.Shutdown(ctx))
	}

	errs = append(errs, r.shutdown(ctx))

	if metricsSrv != nil {
		errs = append(errs, metricsSrv.Shutdown(ctx))
	}

	errs = append(errs, engine.Close())

	return errors.Join(errs...)
}

// applyOverrides sets the configuration values specified on the command line.
func applyOverrides(opts *Options, c *config.Config) {
	if opts.Blacklist != "" {
		c.BlacklistConfig = opts.Blacklist
	}

	if opts.MetricsAddr != "" {
		c.MetricsAddr = opts.MetricsAddr
	}
}

// startMetrics starts the metrics server on addr.
func startMetrics(
	ctx context.Context,
	l *slog.Logger,
	addr string,
	engine *blockfilter.Engine,
) (srv *metrics.Server, err error) {
	srv, err = metrics.NewServer(l.With(slogutil.KeyPrefix, "metrics"), addr, engine)
	if err != nil {
		return nil, fmt.Errorf("creating metrics server: %w", err)
	}

	err = srv.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting metrics server: %w", err)
	}

	return srv, nil
}

// newProxyConfig returns the proxy configuration built from opts.
func newProxyConfig(opts *Options) (c *proxy.Config, err error) {
	listenIP, err := netip.ParseAddr(opts.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("parsing listen address: %w", err)
	}

	mitmConfig, err := newMITMConfig(opts)
	if err != nil {
		return nil, err
	}

	addr := net.TCPAddrFromAddrPort(netip.AddrPortFrom(listenIP, opts.ListenPort))

	return &proxy.Config{
		ProxyConfig: gomitmproxy.Config{
			ListenAddr: addr,

			Username: opts.ProxyUser,
			Password: opts.ProxyPassword,

			MITMConfig: mitmConfig,
		},
	}, nil
}

// errNotRSA is returned when the root CA private key is not an RSA key.
const errNotRSA errors.Error = "root ca private key is not an rsa key"

// newMITMConfig loads the root CA and returns the MITM configuration using it.
func newMITMConfig(opts *Options) (c *mitm.Config, err error) {
	tlsCert, err := tls.LoadX509KeyPair(opts.TLSCertPath, opts.TLSKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading root CA: %w", err)
	}

	privateKey, ok := tlsCert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, errNotRSA
	}

	x509c, err := x509.ParseCertificate(tlsCert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parsing certificate: %w", err)
	}

	c, err = mitm.NewConfig(x509c, privateKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating mitm config: %w", err)
	}

	// Generate certificates valid for 7 days.
	c.SetValidity(time.Hour * 24 * 7)
	c.SetOrganization("Network Interceptor")

	return c, nil
}
