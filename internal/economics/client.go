package economics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/OHMS-DeAI/ohms-coordinator/internal/coordinator"
	"github.com/OHMS-DeAI/ohms-coordinator/internal/logging"
)

// Client is an HTTP client for the economics collaborator. It implements
// coordinator.EconomicsClient so the Quota Mirror never depends on this
// package's transport details directly.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	log        logging.ComponentLogger
}

// New builds an economics client against baseURL.
func New(baseURL string, timeout time.Duration, log logging.ComponentLogger) *Client {
	if log == nil {
		log = logging.NoOp{}
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "economics-collaborator",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		breaker:    cb,
		log:        log.WithComponent("economics-client"),
	}
}

// GetUserSubscription implements coordinator.EconomicsClient.
func (c *Client) GetUserSubscription(ctx context.Context, principal string) (*coordinator.EconomicsSubscription, bool, error) {
	target := fmt.Sprintf("%s/v1/subscriptions/%s", c.baseURL, url.PathEscape(principal))

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getJSON(ctx, target)
	})
	if err != nil {
		if err == errNotFound {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("economics canister error: %w", err)
	}

	sub := result.(Subscription)
	return toDomain(sub), true, nil
}

// GetOrCreateFreeSubscription implements coordinator.EconomicsClient.
func (c *Client) GetOrCreateFreeSubscription(ctx context.Context, principal string) (*coordinator.EconomicsSubscription, error) {
	target := fmt.Sprintf("%s/v1/subscriptions/%s/free", c.baseURL, url.PathEscape(principal))

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.postJSON(ctx, target, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("economics canister error: %w", err)
	}

	var sub Subscription
	if err := json.Unmarshal(result.([]byte), &sub); err != nil {
		return nil, fmt.Errorf("economics canister error: %w", err)
	}
	return toDomain(sub), nil
}

// TrackAgentCreation implements coordinator.EconomicsClient.
func (c *Client) TrackAgentCreation(ctx context.Context, principal string, count int) error {
	target := fmt.Sprintf("%s/v1/subscriptions/%s/track-agent-creation", c.baseURL, url.PathEscape(principal))
	payload, _ := json.Marshal(map[string]int{"count": count})

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return c.postJSON(ctx, target, payload)
	})
	if err != nil {
		return fmt.Errorf("cross-canister call failed: %w", err)
	}
	return nil
}

// Health reports whether the economics collaborator is reachable.
func (c *Client) Health(ctx context.Context) (Health, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		var h Health
		err = json.NewDecoder(resp.Body).Decode(&h)
		return h, err
	})
	if err != nil {
		return Health{}, fmt.Errorf("economics canister error: %w", err)
	}
	return result.(Health), nil
}

var errNotFound = fmt.Errorf("not found")

func (c *Client) getJSON(ctx context.Context, target string) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}

	var sub Subscription
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (c *Client) postJSON(ctx context.Context, target string, payload []byte) (interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}
	return data, nil
}

func toDomain(sub Subscription) *coordinator.EconomicsSubscription {
	return &coordinator.EconomicsSubscription{
		Tier: sub.Tier,
		Limits: coordinator.QuotaLimits{
			MaxAgents:        sub.Limits.MaxAgents,
			MonthlyCreations: sub.Limits.MonthlyCreations,
			TokenLimit:       sub.Limits.TokenLimit,
			InferenceRate:    coordinator.InferenceRate(sub.Limits.InferenceRate),
		},
		Usage: coordinator.QuotaUsage{
			AgentsThisMonth:     sub.Usage.AgentsThisMonth,
			TokensThisMonth:     sub.Usage.TokensThisMonth,
			InferencesThisMonth: sub.Usage.InferencesThisMonth,
		},
	}
}
