// Package assignments provides a typed client for the USPTO patent
// assignment search API.
package assignments

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/openip/iptools/pkg/client"
)

// DefaultBaseURL is the assignment search API root.
const DefaultBaseURL = "https://assignment-api.uspto.gov/patent"

const serviceName = "uspto_assignments"

// Client is the USPTO assignments client.
type Client struct {
	*client.Client
}

// DefaultConfig returns the standard assignments client configuration.
func DefaultConfig() client.Config {
	return client.DefaultConfig(DefaultBaseURL, serviceName)
}

// New creates an assignments client.
func New(cfg client.Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Service == "" {
		cfg.Service = serviceName
	}

	base, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{Client: base}, nil
}

var numberSeparators = strings.NewReplacer(",", "", " ", "", "/", "", "-", "")

// CleanPatentNumber normalizes user-supplied patent and application
// numbers: a leading country prefix "US" is dropped, as are commas,
// spaces, slashes and dashes ("US-8,830,957-B2" becomes "8830957B2").
func CleanPatentNumber(number string) string {
	n := strings.TrimSpace(number)
	if len(n) >= 2 && strings.EqualFold(n[:2], "US") {
		n = n[2:]
	}
	return numberSeparators.Replace(n)
}

// lookup queries the assignment search endpoint with one filter field.
func (c *Client) lookup(ctx context.Context, filterField, value, errContext string) (map[string]any, error) {
	params := url.Values{}
	params.Set("query", value)
	params.Set("filter", filterField)
	return c.RequestJSON(ctx, http.MethodGet, "/lookup", &client.RequestOptions{
		Params:  params,
		Context: errContext,
	})
}

// ByPatentNumber fetches the assignment history of a granted patent.
func (c *Client) ByPatentNumber(ctx context.Context, patentNumber string) (map[string]any, error) {
	n := CleanPatentNumber(patentNumber)
	return c.lookup(ctx, "patentNumber", n, fmt.Sprintf("assignments for patent %s", n))
}

// ByApplicationNumber fetches the assignment history of a patent
// application.
func (c *Client) ByApplicationNumber(ctx context.Context, applicationNumber string) (map[string]any, error) {
	n := CleanPatentNumber(applicationNumber)
	return c.lookup(ctx, "applicationNumber", n, fmt.Sprintf("assignments for application %s", n))
}

// ByAssigneeName searches assignments by assignee name.
func (c *Client) ByAssigneeName(ctx context.Context, name string) (map[string]any, error) {
	return c.lookup(ctx, "assigneeName", strings.TrimSpace(name), fmt.Sprintf("assignments for assignee %q", name))
}
