// ABOUTME: Gateway orchestrator that wires the ledger service to HTTP and gRPC servers
// ABOUTME: Manages store, event publisher, notifier, Tailscale listeners and shutdown lifecycle

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/config"
	"github.com/2389/ledger-gateway/internal/dedupe"
	"github.com/2389/ledger-gateway/internal/events"
	"github.com/2389/ledger-gateway/internal/ledger"
	"github.com/2389/ledger-gateway/internal/notify"
	"github.com/2389/ledger-gateway/internal/store"
)

// tailscaleGRPCPort is the tailnet port for the health service.
const tailscaleGRPCPort = ":50051"

// Gateway orchestrates the ledger-gateway server components.
type Gateway struct {
	config *config.Config
	store  *store.SQLiteStore
	ledger *ledger.Service
	logger *slog.Logger

	tokenCache *auth.CachingVerifier
	replay     *dedupe.Cache[*recordedResponse]
	publisher  *events.Publisher

	// grpcServer and health are nil when server.grpc_addr is empty.
	grpcServer *grpc.Server
	health     *health.Server

	httpServer  *http.Server
	tsnetServer *tsnet.Server
}

// initStore creates the SQLite store. LEDGER_DB_PATH overrides the configured path.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("LEDGER_DB_PATH"); envPath != "" {
		dbPath = envPath
	}

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// PolicyFromConfig converts the configured policy, keeping ledger defaults
// for unset fields.
func PolicyFromConfig(pc config.PolicyConfig) ledger.Policy {
	p := ledger.DefaultPolicy()
	if pc.InclusiveBounds != nil {
		p.InclusiveBounds = *pc.InclusiveBounds
	}
	if pc.InviteTTL > 0 {
		p.InviteTTL = pc.InviteTTL
	}
	if pc.BudgetManagers.Valid() {
		p.BudgetManagers = pc.BudgetManagers
	}
	if pc.RegistryManagers.Valid() {
		p.RegistryManagers = pc.RegistryManagers
	}
	if pc.DefaultWarningThreshold > 0 {
		p.DefaultWarningThreshold = pc.DefaultWarningThreshold
	}
	if pc.RecentTransactions > 0 {
		p.RecentTransactions = pc.RecentTransactions
	}
	return p
}

// createVerifier builds the bearer token verifier, fronted by a cache when
// auth.cache_size is set.
func (g *Gateway) createVerifier(cfg config.AuthConfig) (auth.TokenVerifier, error) {
	jwtVerifier, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}

	if cfg.CacheSize <= 0 {
		return jwtVerifier, nil
	}
	cache, err := auth.NewCachingVerifier(jwtVerifier, cfg.CacheSize, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}
	g.tokenCache = cache
	g.logger.Info("token verification cache enabled", "max_entries", cfg.CacheSize, "ttl", cfg.CacheTTL)
	return cache, nil
}

// createSideEffects connects the optional event publisher and Matrix notifier.
// The returned interfaces stay nil when the channel is disabled.
func (g *Gateway) createSideEffects(cfg *config.Config) (ledger.EventPublisher, ledger.Notifier, error) {
	var publisher ledger.EventPublisher
	if cfg.Events.Enabled {
		p, err := events.Dial(cfg.Events.URL, cfg.Events.Exchange, g.logger.With("component", "events"))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting event publisher: %w", err)
		}
		g.publisher = p
		publisher = p
		g.logger.Info("event publishing enabled", "exchange", cfg.Events.Exchange)
	}

	var notifier ledger.Notifier
	if m := cfg.Notify.Matrix; m.Enabled {
		n, err := notify.NewMatrixNotifier(m.Homeserver, m.UserID, m.AccessToken, cfg.Defaults.Currency,
			g.logger.With("component", "matrix"))
		if err != nil {
			return nil, nil, fmt.Errorf("creating matrix notifier: %w", err)
		}
		notifier = n
		g.logger.Info("matrix budget alerts enabled", "user_id", m.UserID)
	}

	return publisher, notifier, nil
}

// New creates a new Gateway instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config: cfg,
		store:  s,
		logger: logger.With("component", "gateway"),
	}

	if err := gw.init(cfg, logger); err != nil {
		gw.closeOptionalComponents()
		_ = s.Close()
		return nil, err
	}
	return gw, nil
}

func (g *Gateway) init(cfg *config.Config, logger *slog.Logger) error {
	verifier, err := g.createVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	publisher, notifier, err := g.createSideEffects(cfg)
	if err != nil {
		return err
	}

	g.ledger = ledger.New(g.store, ledger.Options{
		Policy:          PolicyFromConfig(cfg.Policy),
		Publisher:       publisher,
		Notifier:        notifier,
		Logger:          logger,
		DefaultTheme:    cfg.Defaults.Theme,
		DefaultCurrency: cfg.Defaults.Currency,
	})

	if err := g.ledger.SeedRegistry(context.Background(), cfg.Defaults.Categories, cfg.Defaults.PaymentMethods); err != nil {
		return fmt.Errorf("seeding registry: %w", err)
	}

	if cfg.Idempotency.Enabled {
		g.replay = dedupe.New[*recordedResponse](cfg.Idempotency.TTL, cfg.Idempotency.MaxEntries)
	}

	if cfg.Server.GRPCAddr != "" {
		g.grpcServer, g.health = newGRPCServer()
	}

	a := &api{
		ledger:   g.ledger,
		store:    g.store,
		logger:   logger.With("component", "http"),
		currency: g.ledger.DefaultCurrency(),
		baseURL:  cfg.Server.BaseURL,
	}
	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           newRouter(a, g.ledger, verifier, g.replay),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Ledger returns the ledger service.
func (g *Gateway) Ledger() *ledger.Service { return g.ledger }

// Handler returns the HTTP handler serving health and API routes.
func (g *Gateway) Handler() http.Handler { return g.httpServer.Handler }

// setupTCPListeners creates standard TCP listeners. grpcLn is nil when gRPC is disabled.
func (g *Gateway) setupTCPListeners() (grpcLn, httpLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"grpc_addr", g.config.Server.GRPCAddr,
		"http_addr", g.config.Server.HTTPAddr,
	)

	if g.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		if grpcLn != nil {
			_ = grpcLn.Close()
		}
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	return grpcLn, httpLn, nil
}

// warnIgnoredAddresses logs a warning if server addresses are configured but Tailscale is enabled.
func (g *Gateway) warnIgnoredAddresses() {
	if g.config.Server.HTTPAddr != "" {
		g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
			"http_addr", g.config.Server.HTTPAddr,
		)
	}
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		g.warnIgnoredAddresses()
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// startServers starts the servers in goroutines, returning an error channel.
func (g *Gateway) startServers(grpcLn, httpLn net.Listener) chan error {
	errCh := make(chan error, 2)

	if grpcLn != nil {
		go func() {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil {
				errCh <- fmt.Errorf("gRPC server: %w", err)
			}
		}()
	}

	go func() {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		g.drainErrors(errCh)
		return err
	}
}

// drainErrors drains any remaining errors from the channel.
func (g *Gateway) drainErrors(errCh chan error) {
	select {
	case additionalErr := <-errCh:
		g.logger.Error("additional server error", "error", additionalErr)
	default:
	}
}

// Run starts the gateway servers and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if a server fails.
func (g *Gateway) Run(ctx context.Context) error {
	grpcListener, httpListener, err := g.setupListeners(ctx)
	if err != nil {
		return err
	}

	if g.health != nil {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go watchHealth(watchCtx, g.health, g.store, g.logger)
	}

	errCh := g.startServers(grpcListener, httpListener)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context, since the run
// context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "ledger-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListeners starts a tsnet node and returns its listeners.
// grpcLn is nil when gRPC is disabled.
func (g *Gateway) setupTailscaleListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	if g.grpcServer != nil {
		grpcLn, err = g.tsnetServer.Listen("tcp", tailscaleGRPCPort)
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, nil, fmt.Errorf("listening on tailscale gRPC port: %w", err)
		}
	}

	httpLn, err = g.createTailscaleHTTPListener(tsCfg)
	if err != nil {
		if grpcLn != nil {
			_ = grpcLn.Close()
		}
		_ = g.tsnetServer.Close()
		return nil, nil, err
	}
	return grpcLn, httpLn, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the HTTP listener: public Funnel,
// tailnet HTTPS, or plain HTTP on :80.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	if g.grpcServer == nil {
		return
	}
	g.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeOptionalComponents closes optional components that may be nil.
func (g *Gateway) closeOptionalComponents() {
	if g.replay != nil {
		g.replay.Close()
	}
	if g.tokenCache != nil {
		g.tokenCache.Close()
	}
	if g.publisher != nil {
		if err := g.publisher.Close(); err != nil {
			g.logger.Warn("closing event publisher", "error", err)
		}
	}
}

// Shutdown gracefully stops all gateway servers and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	g.shutdownGRPCServer(ctx)

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	// Mutations still in flight publish after commit; close once HTTP has drained.
	g.closeOptionalComponents()
	errs = appendCloseError(errs, "store close", g.store.Close())

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}
	return nil
}
