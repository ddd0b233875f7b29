// Package business wires configuration, storage and the session manager into
// the runnable jobs: the API server, the housekeeper and the migrator.
package business

import (
	"context"
	"fmt"
	"net/http"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	"github.com/fitgearzzz/storefront-auth/internal/business/server"
	"github.com/fitgearzzz/storefront-auth/internal/config"
	"github.com/fitgearzzz/storefront-auth/internal/session"
	sessionsql "github.com/fitgearzzz/storefront-auth/internal/session/sql"
	sessionvalkey "github.com/fitgearzzz/storefront-auth/internal/session/valkey"
	"github.com/fitgearzzz/storefront-auth/internal/shopify"
)

// Main starts the public HTTP API server.
func Main(ctx context.Context, cfg *config.Config) error {
	sessionManager, shopifyClient, closeFn, err := initSessionManager(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the session manager: %w", err)
	}

	defer closeFn()

	return server.StartHTTPServer(ctx, cfg, sessionManager, shopifyClient)
}

func initSessionManager(ctx context.Context, cfg *config.Config) (_ *session.Manager, _ *shopify.Client, closeFn func(), _ error) {
	shopifyClient, err := initShopifyClient(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialising the platform client: %w", err)
	}

	sessionRepo, closeFn, err := initSessionRepository(ctx, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialising the session repository: %w", err)
	}

	sessManager, err := session.NewManager(&cfg.Auth, shopifyClient, sessionRepo)
	if err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("creating session manager: %w", err)
	}

	return sessManager, shopifyClient, closeFn, nil
}

func initShopifyClient(cfg *config.Config) (*shopify.Client, error) {
	endpoints, err := shopify.NewEndpoints(cfg.Shopify.AccountDomain, cfg.Shopify.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("deriving platform endpoints: %w", err)
	}

	clientID, err := commoncfg.LoadValueFromSourceRef(cfg.Shopify.ClientID)
	if err != nil {
		return nil, fmt.Errorf("loading client ID from source ref: %w", err)
	}

	profiles := shopify.NewProfileCache(cfg.Auth.ProfileCacheTTL)

	return shopify.NewClient(
		endpoints,
		string(clientID),
		cfg.Shopify.RedirectURI,
		cfg.Shopify.Scopes,
		http.DefaultClient,
		profiles,
	), nil
}

// initSessionRepository builds the storage backend selected by the config.
func initSessionRepository(ctx context.Context, cfg *config.Config) (session.Repository, func(), error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		return initSQLRepository(ctx, cfg)
	case config.StorageDriverValKey:
		return initValKeyRepository(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}

func initSQLRepository(ctx context.Context, cfg *config.Config) (session.Repository, func(), error) {
	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("making dsn from config: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing pgxpool config: %w", err)
	}
	poolCfg.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initialising pgxpool connection: %w", err)
	}

	return sessionsql.NewRepository(db), db.Close, nil
}

func initValKeyRepository(cfg *config.Config) (session.Repository, func(), error) {
	valkeyHost, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Host)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey host: %w", err)
	}

	valkeyUsername, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.User)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey username: %w", err)
	}

	valkeyPassword, err := commoncfg.LoadValueFromSourceRef(cfg.ValKey.Password)
	if err != nil {
		return nil, nil, fmt.Errorf("loading valkey password: %w", err)
	}

	valkeyClient, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{string(valkeyHost)},
		Username:    string(valkeyUsername),
		Password:    string(valkeyPassword),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating a new valkey client: %w", err)
	}

	return sessionvalkey.NewRepository(valkeyClient, cfg.ValKey.Prefix), valkeyClient.Close, nil
}
