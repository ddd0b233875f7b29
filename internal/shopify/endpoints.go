// Package shopify is the client for the commerce platform's Customer Account
// API: the OAuth authorization/token/logout endpoints and the GraphQL profile
// endpoint. It is the only package that talks to the platform.
package shopify

import (
	"fmt"
	"net/url"
	"strings"
)

// Endpoints are derived from the account domain; the platform exposes them at
// fixed paths.
type Endpoints struct {
	Authorize   string
	Token       string
	Logout      string
	CustomerAPI string
}

func NewEndpoints(accountDomain, apiVersion string) (Endpoints, error) {
	base := strings.TrimSuffix(accountDomain, "/")

	u, err := url.Parse(base)
	if err != nil {
		return Endpoints{}, fmt.Errorf("parsing account domain: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoints{}, fmt.Errorf("account domain must be an absolute URL, got %q", accountDomain)
	}

	return Endpoints{
		Authorize:   base + "/authentication/oauth/authorize",
		Token:       base + "/authentication/oauth/token",
		Logout:      base + "/authentication/logout",
		CustomerAPI: base + "/account/customer/api/" + apiVersion + "/graphql",
	}, nil
}
