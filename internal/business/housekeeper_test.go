package business

import (
	"context"
	"testing"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"

	"github.com/fitgearzzz/storefront-auth/internal/config"
)

func TestHousekeeperMain_InvalidPlatformConfig(t *testing.T) {
	cfg := &config.Config{
		Shopify: config.Shopify{
			AccountDomain: "not-an-absolute-url",
		},
	}

	err := HousekeeperMain(t.Context(), cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "initialising the session manager")
}

func TestHousekeeperMain_InvalidValkeyConfig(t *testing.T) {
	cfg := &config.Config{
		Shopify: config.Shopify{
			AccountDomain: "https://account.example.com",
			ClientID:      commoncfg.SourceRef{Source: "embedded", Value: "client-id"},
			RedirectURI:   "https://shop.example.com/auth/callback",
		},
		Storage: config.Storage{Driver: config.StorageDriverValKey},
		ValKey: config.ValKey{
			Host:     commoncfg.SourceRef{Source: "file", File: commoncfg.CredentialFile{Path: "/nonexistent/file"}},
			User:     commoncfg.SourceRef{Source: "embedded", Value: "user"},
			Password: commoncfg.SourceRef{Source: "embedded", Value: "pass"},
		},
	}

	err := HousekeeperMain(t.Context(), cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "initialising the session manager")
}

func TestHousekeeperMain_CancelledContext(t *testing.T) {
	cfg := &config.Config{
		Shopify: config.Shopify{
			AccountDomain: "https://account.example.com",
			ClientID:      commoncfg.SourceRef{Source: "embedded", Value: "client-id"},
			RedirectURI:   "https://shop.example.com/auth/callback",
		},
		Storage: config.Storage{Driver: config.StorageDriverValKey},
		ValKey: config.ValKey{
			Host:     commoncfg.SourceRef{Source: "embedded", Value: "localhost:1"},
			User:     commoncfg.SourceRef{Source: "embedded", Value: "user"},
			Password: commoncfg.SourceRef{Source: "embedded", Value: "pass"},
		},
	}

	// Use an already cancelled context
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := HousekeeperMain(ctx, cfg)
	// The valkey backend is unreachable, so initialisation fails
	assert.Error(t, err)
}
