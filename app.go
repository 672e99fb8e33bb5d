// Package wide assembles the WIDE server: sign-in with Ethereum, the
// owner-scoped credential store and the integrity pipeline.
package wide

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/wide/adapters/events"
	"github.com/layer-3/wide/adapters/ledger"
	"github.com/layer-3/wide/adapters/sessions"
	"github.com/layer-3/wide/adapters/store"
	"github.com/layer-3/wide/adapters/tokenizer"
	"github.com/layer-3/wide/internal/config"
	"github.com/layer-3/wide/internal/eth"
	"github.com/layer-3/wide/internal/logging"
	"github.com/layer-3/wide/internal/metrics"
	"github.com/layer-3/wide/ports"
	"github.com/layer-3/wide/service"
	transport "github.com/layer-3/wide/transport/http"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App owns every backend connection and the services built on them.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	services transport.Services
	handler  http.Handler
	anchors  *message.Router

	closers []func() error
}

// New opens the configured backends and wires the service graph. The caller
// must Close the App, also when Run was never called.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}

	var redisClient *redis.Client
	var kv ports.Store
	if cfg.Redis.URL != "" {
		redisClient, err = store.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.closers = append(app.closers, redisClient.Close)
		kv = store.NewRedisStore(redisClient)
	} else {
		logger.Warn("redis.url is empty, using the in-memory store; state is lost on restart")
		kv = store.NewMemoryStore()
	}

	var sessionStore ports.SessionStore
	if cfg.Session.Store == "memory" {
		sessionStore = sessions.NewMemoryStore()
	} else {
		sessionStore = sessions.NewKVStore(kv)
	}

	sessionKey, err := loadSessionKey(cfg.Session.SigningKey, logger)
	if err != nil {
		return nil, err
	}

	integrityKey, err := loadIntegrityKey(cfg.Integrity.PrivateKey, logger)
	if err != nil {
		return nil, err
	}
	signer := eth.NewKeySigner(integrityKey)
	logger.Info("integrity signer", "address", signer.Address().Hex())

	publisher, subscriber, err := app.openEvents(redisClient)
	if err != nil {
		return nil, err
	}
	eventPub := events.NewWatermillPublisher(publisher)

	var chain ports.Ledger
	if cfg.Ledger.Enabled {
		chain, err = app.openLedger(ctx, integrityKey)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("ledger disabled, integrity proofs will not be anchored")
	}

	authService := service.NewAuthService(kv, sessionStore, tokenizer.NewJWTTokenizer(sessionKey), eventPub, service.AuthConfig{
		Domain:          cfg.SIWE.Domain,
		URI:             cfg.SIWE.URI,
		Version:         cfg.SIWE.Version,
		ChainID:         cfg.SIWE.ChainID,
		SignInStatement: cfg.SIWE.SignInStatement,
		SignUpStatement: cfg.SIWE.SignUpStatement,
		ChallengeWindow: cfg.SIWE.Expiry,
		TermsTTL:        cfg.Terms.TTL,
		SessionTTL:      cfg.Session.TTL,
	}, logger.With("service", "auth"))
	integrityService := service.NewIntegrityService(signer, chain, eventPub, logger.With("service", "integrity"))

	app.services = transport.Services{
		Auth:         authService,
		Credentials:  service.NewCredentialService(kv, logger.With("service", "credentials")),
		Integrity:    integrityService,
		History:      service.NewHistoryService(kv, chain, logger.With("service", "history")),
		RelyingParty: service.NewRelyingPartyService(kv),
	}

	app.anchors, err = events.NewAnchorRouter(subscriber, integrityService, events.AnchorConsumerConfig{
		MaxRetries:      cfg.Events.AnchorMaxRetries,
		InitialInterval: cfg.Events.AnchorBackoff,
	}, logger.With("component", "anchor_consumer"))
	if err != nil {
		return nil, err
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	app.handler = transport.SetupRouter(app.services, transport.RouterConfig{
		Cookie: transport.CookieConfig{
			Name:     cfg.Session.CookieName,
			Domain:   cfg.Session.CookieDomain,
			Secure:   cfg.Session.Secure,
			SameSite: sameSite(cfg.Session.SameSite),
		},
		MetricsPath:  metricsPath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Logger:       logger.With("component", "http"),
	})

	return app, nil
}

// openEvents connects the event bus. The memory backend serves publisher and
// subscriber from one in-process channel.
func (a *App) openEvents(client *redis.Client) (message.Publisher, message.Subscriber, error) {
	wmLogger := logging.Watermill(a.logger)

	if a.cfg.Events.Backend != "redis" {
		pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		a.closers = append(a.closers, pubSub.Close)
		return pubSub, pubSub, nil
	}

	publisher, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: client,
	}, wmLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis publisher: %w", err)
	}
	a.closers = append(a.closers, publisher.Close)

	subscriber, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: a.cfg.Events.ConsumerGroup,
	}, wmLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create redis subscriber: %w", err)
	}
	a.closers = append(a.closers, subscriber.Close)

	return publisher, subscriber, nil
}

func (a *App) openLedger(ctx context.Context, key *ecdsa.PrivateKey) (ports.Ledger, error) {
	cfg := a.cfg.Ledger
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid ledger.contract_address %q", cfg.ContractAddress)
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger rpc: %w", err)
	}
	a.closers = append(a.closers, func() error {
		client.Close()
		return nil
	})

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query ledger chain id: %w", err)
		}
	}

	a.logger.Info("ledger enabled", "contract", cfg.ContractAddress, "chain_id", chainID)
	return ledger.NewClient(client, key, ledger.Config{
		Contract:       common.HexToAddress(cfg.ContractAddress),
		ChainID:        chainID,
		ReceiptTimeout: cfg.ReceiptTimeout,
	}, a.logger.With("component", "ledger")), nil
}

// Handler returns the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Services returns the services served by the app.
func (a *App) Services() transport.Services {
	return a.services
}

// Run serves HTTP and drains the anchoring outbox until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.anchors.Run(ctx)
	})

	g.Go(func() error {
		a.logger.Info("http server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if closeErr := a.anchors.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return err
	})

	return g.Wait()
}

// Close releases backend connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func loadSessionKey(encoded string, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if encoded != "" {
		key, err := tokenizer.ParseKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid session.signing_key: %w", err)
		}
		return key, nil
	}
	logger.Warn("session.signing_key is empty, using an ephemeral key; sessions end on restart")
	return tokenizer.GenerateKey()
}

func loadIntegrityKey(encoded string, logger *slog.Logger) (*ecdsa.PrivateKey, error) {
	if encoded != "" {
		key, err := eth.ParsePrivateKey(encoded)
		if err != nil {
			return nil, fmt.Errorf("invalid integrity.private_key: %w", err)
		}
		return key, nil
	}
	logger.Warn("integrity.private_key is empty, using an ephemeral key; proofs will not verify after restart")
	return eth.GenerateKey()
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
