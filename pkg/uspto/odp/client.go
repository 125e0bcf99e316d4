// Package odp provides a typed client for the USPTO Open Data Portal
// (ODP) patent application API.
package odp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openip/iptools/pkg/client"
	"github.com/openip/iptools/pkg/pagination"
)

// DefaultBaseURL is the ODP API root.
const DefaultBaseURL = "https://api.uspto.gov"

const serviceName = "uspto_odp"

// Client is the USPTO ODP client.
type Client struct {
	*client.Client
}

// DefaultConfig returns the standard ODP client configuration.
func DefaultConfig() client.Config {
	return client.DefaultConfig(DefaultBaseURL, serviceName)
}

// New creates an ODP client. An API key, when supplied, is sent in the
// X-API-KEY header on every request.
func New(cfg client.Config, apiKey string) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Service == "" {
		cfg.Service = serviceName
	}
	if apiKey != "" {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		cfg.Headers["X-API-KEY"] = apiKey
	}

	base, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{Client: base}, nil
}

// SearchApplications runs a patent application search with the given
// payload.
func (c *Client) SearchApplications(ctx context.Context, payload SearchPayload) (map[string]any, error) {
	if err := payload.Pagination.Validate(); err != nil {
		return nil, err
	}
	return c.RequestJSON(ctx, http.MethodPost, "/api/v1/patent/applications/search", &client.RequestOptions{
		JSONBody: payload.PrunedMap(),
		Context:  "application search",
	})
}

// GetApplication fetches a single patent application by its
// application number.
func (c *Client) GetApplication(ctx context.Context, applicationNumber string) (map[string]any, error) {
	path := fmt.Sprintf("/api/v1/patent/applications/%s", applicationNumber)
	return c.RequestJSON(ctx, http.MethodGet, path, &client.RequestOptions{
		Context: fmt.Sprintf("application %s", applicationNumber),
	})
}

// searchPageFetcher adapts SearchApplications to the pagination
// batch fetcher.
type searchPageFetcher struct {
	client  *Client
	payload SearchPayload
}

func (f *searchPageFetcher) FetchPage(ctx context.Context, offset, limit int) ([]map[string]any, int, error) {
	payload := f.payload
	payload.Pagination = Pagination{Offset: offset, Limit: limit}

	result, err := f.client.SearchApplications(ctx, payload)
	if err != nil {
		return nil, 0, err
	}

	total := 0
	if count, ok := result["count"].(float64); ok {
		total = int(count)
	}

	raw, _ := result["patentFileWrapperDataBag"].([]any)
	items := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, total, nil
}

// SearchAll runs a search and fetches every result page in parallel.
func (c *Client) SearchAll(ctx context.Context, payload SearchPayload, cfg pagination.Config) ([]map[string]any, error) {
	fetcher := pagination.NewBatchFetcher(&searchPageFetcher{client: c, payload: payload}, cfg)
	return fetcher.FetchAll(ctx)
}
