package business

import (
	"testing"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitgearzzz/storefront-auth/internal/config"
)

func TestInitShopifyClient(t *testing.T) {
	t.Run("builds a configured client", func(t *testing.T) {
		cfg := &config.Config{
			Shopify: config.Shopify{
				AccountDomain: "https://account.example.com",
				APIVersion:    "2024-10",
				ClientID:      commoncfg.SourceRef{Source: "embedded", Value: "client-id"},
				RedirectURI:   "https://shop.example.com/auth/callback",
				Scopes:        "openid email customer-account-api:full",
			},
		}

		client, err := initShopifyClient(cfg)
		require.NoError(t, err)
		assert.True(t, client.Configured())
	})

	t.Run("rejects a relative account domain", func(t *testing.T) {
		cfg := &config.Config{
			Shopify: config.Shopify{
				AccountDomain: "account.example.com",
				ClientID:      commoncfg.SourceRef{Source: "embedded", Value: "client-id"},
				RedirectURI:   "https://shop.example.com/auth/callback",
			},
		}

		_, err := initShopifyClient(cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "deriving platform endpoints")
	})

	t.Run("fails on an unreadable client ID ref", func(t *testing.T) {
		cfg := &config.Config{
			Shopify: config.Shopify{
				AccountDomain: "https://account.example.com",
				ClientID:      commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
				RedirectURI:   "https://shop.example.com/auth/callback",
			},
		}

		_, err := initShopifyClient(cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading client ID")
	})
}

func TestInitSessionRepository(t *testing.T) {
	t.Run("rejects an unknown storage driver", func(t *testing.T) {
		cfg := &config.Config{
			Storage: config.Storage{Driver: "bolt"},
		}

		_, _, err := initSessionRepository(t.Context(), cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown storage driver")
	})

	t.Run("fails on an unreadable database host ref", func(t *testing.T) {
		cfg := &config.Config{
			Storage: config.Storage{Driver: config.StorageDriverPostgres},
			Database: config.Database{
				Host:     commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
				Port:     "5432",
				Name:     "testdb",
				User:     commoncfg.SourceRef{Source: "embedded", Value: "user"},
				Password: commoncfg.SourceRef{Source: "embedded", Value: "pass"},
			},
		}

		_, _, err := initSessionRepository(t.Context(), cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "making dsn from config")
	})

	t.Run("fails on an unreadable valkey host ref", func(t *testing.T) {
		cfg := &config.Config{
			Storage: config.Storage{Driver: config.StorageDriverValKey},
			ValKey: config.ValKey{
				Host:     commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
				User:     commoncfg.SourceRef{Source: "embedded", Value: "user"},
				Password: commoncfg.SourceRef{Source: "embedded", Value: "pass"},
			},
		}

		_, _, err := initSessionRepository(t.Context(), cfg)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "loading valkey host")
	})
}
