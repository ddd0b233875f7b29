package shopify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	slogctx "github.com/veqryn/slog-context"

	"github.com/fitgearzzz/storefront-auth/internal/serviceerr"
)

// Customer is the canonical projection of the platform's customer record.
// It is never persisted; it is re-derived from a token on every fetch.
type Customer struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
}

const customerQuery = `
query getCustomer {
  customer {
    id
    displayName
    firstName
    lastName
    emailAddress {
      emailAddress
    }
  }
}`

type profileCache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// NewProfileCache returns the default short-TTL profile cache.
func NewProfileCache(ttl time.Duration) profileCache {
	return gocache.New(ttl, 2*ttl)
}

// Customer fetches the profile of the token's owner from the Customer Account
// API. A missing token short-circuits to nil without a network call. Results
// are cached for a short interval keyed by a token digest, so consumers that
// re-check identity on every page load don't hammer the platform.
func (c *Client) Customer(ctx context.Context, accessToken string) (*Customer, error) {
	if accessToken == "" {
		return nil, nil
	}

	cacheKey := tokenDigest(accessToken)
	if c.profiles != nil {
		if cached, ok := c.profiles.Get(cacheKey); ok {
			customer := cached.(Customer)
			return &customer, nil
		}
	}

	customer, err := c.fetchCustomer(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	if c.profiles != nil {
		c.profiles.Set(cacheKey, *customer, gocache.DefaultExpiration)
	}

	return customer, nil
}

func (c *Client) fetchCustomer(ctx context.Context, accessToken string) (*Customer, error) {
	body, err := json.Marshal(map[string]string{"query": customerQuery})
	if err != nil {
		return nil, fmt.Errorf("marshaling customer query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.CustomerAPI, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", serviceerr.ErrProfileFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", serviceerr.ErrProfileFetchFailed, resp.StatusCode)
	}

	var result struct {
		Data struct {
			Customer *struct {
				ID           string `json:"id"`
				DisplayName  string `json:"displayName"`
				FirstName    string `json:"firstName"`
				LastName     string `json:"lastName"`
				EmailAddress struct {
					EmailAddress string `json:"emailAddress"`
				} `json:"emailAddress"`
			} `json:"customer"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %w", serviceerr.ErrProfileFetchFailed, err)
	}

	if len(result.Errors) > 0 {
		slogctx.Warn(ctx, "Customer query returned errors", "error", result.Errors[0].Message)
		return nil, fmt.Errorf("%w: %s", serviceerr.ErrProfileFetchFailed, result.Errors[0].Message)
	}

	if result.Data.Customer == nil {
		return nil, fmt.Errorf("%w: empty customer in response", serviceerr.ErrProfileFetchFailed)
	}

	return &Customer{
		ID:          result.Data.Customer.ID,
		DisplayName: result.Data.Customer.DisplayName,
		FirstName:   result.Data.Customer.FirstName,
		LastName:    result.Data.Customer.LastName,
		Email:       result.Data.Customer.EmailAddress.EmailAddress,
	}, nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
