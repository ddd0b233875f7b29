// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	Storage  Storage  `yaml:"storage"`
	Database Database `yaml:"database"`
	ValKey   ValKey   `yaml:"valkey"`

	Shopify     Shopify     `yaml:"shopify"`
	Auth        Auth        `yaml:"auth"`
	Housekeeper Housekeeper `yaml:"housekeeper"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// Storage selects the session repository backend.
type Storage struct {
	Driver string `yaml:"driver" default:"valkey"`
}

const (
	StorageDriverValKey   = "valkey"
	StorageDriverPostgres = "postgres"
)

type Database struct {
	Name     string              `yaml:"name"`
	Port     string              `yaml:"port"`
	SSLMode  string              `yaml:"sslMode"`
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
}

type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"storefront-auth"`
}

// Shopify configures the commerce platform's Customer Account API endpoints.
// ClientID and RedirectURI have no defaults on purpose: the redirect URI must
// exactly match the value registered on the provider's allow-list, so a
// missing value is a startup error and never a silently-wrong fallback.
type Shopify struct {
	AccountDomain string              `yaml:"accountDomain"`
	APIVersion    string              `yaml:"apiVersion" default:"2024-10"`
	ClientID      commoncfg.SourceRef `yaml:"clientID"`
	RedirectURI   string              `yaml:"redirectURI"`
	Scopes        string              `yaml:"scopes" default:"openid email customer-account-api:full"`
}

type Auth struct {
	SessionDuration time.Duration `yaml:"sessionDuration" default:"12h"`
	// AttemptDuration bounds one login round-trip through the provider.
	AttemptDuration time.Duration `yaml:"attemptDuration" default:"10m"`
	HomeURI         string        `yaml:"homeURI" default:"/"`
	ProfileCacheTTL time.Duration `yaml:"profileCacheTTL" default:"5m"`

	CSRFSecret commoncfg.SourceRef `yaml:"csrfSecret"`

	SessionCookieTemplate CookieTemplate `yaml:"sessionCookie"`
	CSRFCookieTemplate    CookieTemplate `yaml:"csrfCookie"`
	AttemptCookieTemplate CookieTemplate `yaml:"attemptCookie"`
}

type Housekeeper struct {
	TriggerInterval time.Duration `yaml:"triggerInterval" default:"10m"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" default:"24h"`
}

// Validate rejects configurations that would produce a broken OAuth flow.
func (c *Config) Validate() error {
	var errs []error

	if c.Shopify.AccountDomain == "" {
		errs = append(errs, errors.New("shopify.accountDomain is required"))
	}
	if c.Shopify.RedirectURI == "" {
		errs = append(errs, errors.New("shopify.redirectURI is required and must match the registered callback URL"))
	}
	if isZeroSourceRef(c.Shopify.ClientID) {
		errs = append(errs, errors.New("shopify.clientID is required"))
	}

	switch c.Storage.Driver {
	case StorageDriverValKey, StorageDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver: %q", c.Storage.Driver))
	}

	return errors.Join(errs...)
}

func isZeroSourceRef(ref commoncfg.SourceRef) bool {
	return ref.Source == "" && ref.Value == ""
}
