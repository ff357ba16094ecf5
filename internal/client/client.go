// Package client talks to the onboarding backend over its REST API. Category
// adapts the child row endpoints to childsync.Remote.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hyperengineering/onboard/internal/types"
	"github.com/hyperengineering/onboard/internal/validation"
	"github.com/hyperengineering/onboard/pkg/childsync"
)

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string

	// Timeout bounds each HTTP request. Zero means 30s.
	Timeout time.Duration

	// ListRetries is how many times a failed list is retried. Writes are
	// never retried here; the sync coordinator owns that.
	ListRetries int

	// RetryBase is the first backoff delay between list attempts. Zero means 200ms.
	RetryBase time.Duration

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client is an authenticated HTTP client for the onboarding API.
type Client struct {
	baseURL     string
	apiKey      string
	http        *http.Client
	listRetries int
	retryBase   time.Duration
	logger      *slog.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: base URL is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("client: invalid base URL %q", opts.BaseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retryBase := opts.RetryBase
	if retryBase == 0 {
		retryBase = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/") + "/api/v1",
		apiKey:      opts.APIKey,
		http:        httpClient,
		listRetries: opts.ListRetries,
		retryBase:   retryBase,
		logger:      logger,
	}, nil
}

// do sends an authenticated JSON request and decodes a JSON response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s request: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return fmt.Errorf("%s %s: %w: %w", method, path, childsync.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w: %w", method, path, childsync.ErrRemoteUnavailable, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response, method, path string) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Method: method, Path: path}

	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Errors []validation.ValidationError `json:"errors"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(data, &problem) == nil {
		apiErr.Title = problem.Title
		apiErr.Detail = problem.Detail
		apiErr.Errors = problem.Errors
	}
	if apiErr.Title == "" {
		apiErr.Title = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// withListRetry runs fn, retrying with exponential backoff while it fails
// with ErrRemoteUnavailable.
func (c *Client) withListRetry(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	attempt := 0
	b := retry.WithMaxRetries(uint64(c.listRetries), retry.NewExponential(c.retryBase))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && errors.Is(err, childsync.ErrRemoteUnavailable) {
			c.logger.Debug("list failed, retrying",
				"component", "client",
				"action", what,
				"attempt", attempt,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

// Health calls GET /health. It does not require a valid API key.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	var out types.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateCustomer calls POST /customers.
func (c *Client) CreateCustomer(ctx context.Context, in types.NewCustomer) (*types.Customer, error) {
	var out types.Customer
	if err := c.do(ctx, http.MethodPost, "/customers", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCustomers calls GET /customers.
func (c *Client) ListCustomers(ctx context.Context) ([]types.Customer, error) {
	var out []types.Customer
	err := c.withListRetry(ctx, "list_customers", func(ctx context.Context) error {
		return c.do(ctx, http.MethodGet, "/customers", nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOnboarding calls POST /onboardings and returns the new id.
func (c *Client) CreateOnboarding(ctx context.Context, in types.NewOnboarding) (string, error) {
	var out types.IDResponse
	if err := c.do(ctx, http.MethodPost, "/onboardings", in, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("create onboarding: %w: response has no id", childsync.ErrRemoteUnavailable)
	}
	return out.ID, nil
}

// GetOnboarding calls GET /onboardings/{id}.
func (c *Client) GetOnboarding(ctx context.Context, id string) (*types.Onboarding, error) {
	var out types.Onboarding
	if err := c.do(ctx, http.MethodGet, "/onboardings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateOnboarding calls PATCH /onboardings/{id} and returns the id.
func (c *Client) UpdateOnboarding(ctx context.Context, id string, patch types.OnboardingPatch) (string, error) {
	var out types.IDResponse
	if err := c.do(ctx, http.MethodPatch, "/onboardings/"+url.PathEscape(id), patch, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// ListChildren calls GET /onboardings/{id}/{category}, retrying transient
// failures.
func (c *Client) ListChildren(ctx context.Context, category types.Category, onboardingID string) ([]types.ChildRow, error) {
	path := "/onboardings/" + url.PathEscape(onboardingID) + "/" + string(category)
	var out []types.ChildRow
	err := c.withListRetry(ctx, "list_"+string(category), func(ctx context.Context) error {
		out = nil
		return c.do(ctx, http.MethodGet, path, nil, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateChild calls POST /onboardings/{id}/{category}.
func (c *Client) CreateChild(ctx context.Context, category types.Category, onboardingID string, fields any) (*types.ChildRow, error) {
	path := "/onboardings/" + url.PathEscape(onboardingID) + "/" + string(category)
	var out types.ChildRow
	if err := c.do(ctx, http.MethodPost, path, fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateChild calls PATCH /{category}/{rowID}.
func (c *Client) UpdateChild(ctx context.Context, category types.Category, rowID string, fields any) (*types.ChildRow, error) {
	var out types.ChildRow
	if err := c.do(ctx, http.MethodPatch, "/"+string(category)+"/"+url.PathEscape(rowID), fields, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChild calls DELETE /{category}/{rowID}.
func (c *Client) DeleteChild(ctx context.Context, category types.Category, rowID string) error {
	return c.do(ctx, http.MethodDelete, "/"+string(category)+"/"+url.PathEscape(rowID), nil, nil)
}
