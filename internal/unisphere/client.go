package unisphere

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Resource collections under /sloprovisioning/symmetrix/{symmId}/
const (
	CollectionHost         = "host"
	CollectionStorageGroup = "storagegroup"
)

// Config holds the settings needed to build a Client.
type Config struct {
	URL          string // scheme://host:port
	User         string
	Password     string
	APIVersion   string // optional, appended to the base path
	Insecure     bool   // skip TLS certificate verification
	Timeout      time.Duration
	RateLimitRPS float64
}

// Client talks to one Unisphere endpoint with fixed basic credentials.
type Client struct {
	baseURI    string
	user       string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient validates cfg and creates a client for it.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("unisphere url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid unisphere url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid unisphere url %q: scheme must be http or https", cfg.URL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid unisphere url %q: missing host", cfg.URL)
	}
	if cfg.User == "" || cfg.Password == "" {
		return nil, errors.New("unisphere user and password are required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10.0
	}
	burst := int(cfg.RateLimitRPS)
	if burst < 1 {
		burst = 1
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure},
	}

	return &Client{
		baseURI:  BaseURI(cfg.URL, cfg.APIVersion),
		user:     cfg.User,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst),
	}, nil
}

// BaseURI returns the REST root for a management address.
func BaseURI(address, apiVersion string) string {
	base := strings.TrimRight(address, "/") + "/univmax/restapi"
	if apiVersion != "" {
		base += "/" + strings.Trim(apiVersion, "/")
	}
	return base
}

// BaseURI returns the REST root this client talks to
func (c *Client) BaseURI() string {
	return c.baseURI
}

// Close releases idle connections
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Probe issues a GET against the bare REST root.
func (c *Client) Probe(ctx context.Context) (*Response, error) {
	return c.do(ctx, http.MethodGet, "", nil)
}

// CheckConnectivity probes the REST root and requires the expected status.
// Any other status, or a transport failure, is reported as ErrConnectivity.
func (c *Client) CheckConnectivity(ctx context.Context, expectedStatus int) error {
	resp, err := c.Probe(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}
	if resp.StatusCode != expectedStatus {
		return fmt.Errorf("%w: %s answered status %d, expected %d; check credentials and url",
			ErrConnectivity, c.baseURI, resp.StatusCode, expectedStatus)
	}
	return nil
}

// Get fetches a single resource
func (c *Client) Get(ctx context.Context, symmID, collection, id string) (*Response, error) {
	return c.do(ctx, http.MethodGet, itemPath(symmID, collection, id), nil)
}

// Create posts a new resource to its collection
func (c *Client) Create(ctx context.Context, symmID, collection string, payload any) (*Response, error) {
	return c.do(ctx, http.MethodPost, collectionPath(symmID, collection), payload)
}

// Delete removes a single resource
func (c *Client) Delete(ctx context.Context, symmID, collection, id string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, itemPath(symmID, collection, id), nil)
}

// GetHost fetches a host by id
func (c *Client) GetHost(ctx context.Context, symmID, hostID string) (*Response, error) {
	return c.Get(ctx, symmID, CollectionHost, hostID)
}

// CreateHost creates a host with its initiators
func (c *Client) CreateHost(ctx context.Context, symmID string, params CreateHostParams) (*Response, error) {
	return c.Create(ctx, symmID, CollectionHost, params)
}

// DeleteHost deletes a host by id
func (c *Client) DeleteHost(ctx context.Context, symmID, hostID string) (*Response, error) {
	return c.Delete(ctx, symmID, CollectionHost, hostID)
}

// GetStorageGroup fetches a storage group by id
func (c *Client) GetStorageGroup(ctx context.Context, symmID, sgID string) (*Response, error) {
	return c.Get(ctx, symmID, CollectionStorageGroup, sgID)
}

// CreateStorageGroup creates an empty storage group
func (c *Client) CreateStorageGroup(ctx context.Context, symmID string, params CreateStorageGroupParams) (*Response, error) {
	return c.Create(ctx, symmID, CollectionStorageGroup, params)
}

// DeleteStorageGroup deletes a storage group by id
func (c *Client) DeleteStorageGroup(ctx context.Context, symmID, sgID string) (*Response, error) {
	return c.Delete(ctx, symmID, CollectionStorageGroup, sgID)
}

func collectionPath(symmID, collection string) string {
	return fmt.Sprintf("/sloprovisioning/symmetrix/%s/%s", url.PathEscape(symmID), collection)
}

func itemPath(symmID, collection, id string) string {
	return collectionPath(symmID, collection) + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			// The limiter refuses up front when the next token lands past the deadline
			return nil, fmt.Errorf("%s %s: %w: %w", method, path, context.DeadlineExceeded, err)
		}
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURI+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s request: %w", method, path, err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("Unisphere request")

	return newResponse(resp.StatusCode, raw), nil
}
