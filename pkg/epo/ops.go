// Package epo provides a typed client for the EPO Open Patent Services
// (OPS) REST API: published-data bibliographic records, claims, and
// INPADOC patent families.
package epo

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openip/iptools/pkg/client"
	"github.com/openip/iptools/pkg/logging"
	"github.com/openip/iptools/pkg/ratelimit"
)

// DefaultBaseURL is the OPS 3.2 REST services root.
const DefaultBaseURL = "https://ops.epo.org/3.2/rest-services"

// serviceName doubles as the cache database name.
const serviceName = "epo_ops"

// Reference types accepted by the published-data and family services.
const (
	RefPublication = "publication"
	RefApplication = "application"
	RefPriority    = "priority"
)

// Input formats for document numbers.
const (
	FormatDocDB  = "docdb"
	FormatEpoDoc = "epodoc"
)

// Client is the EPO OPS client.
type Client struct {
	*client.Client
	throttle *ratelimit.Tracker
}

// DefaultConfig returns the standard OPS client configuration.
func DefaultConfig() client.Config {
	return client.DefaultConfig(DefaultBaseURL, serviceName)
}

// New creates an OPS client. Zero-value BaseURL and Service fields in
// cfg fall back to the OPS defaults.
func New(cfg client.Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Service == "" {
		cfg.Service = serviceName
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	if cfg.Headers["Accept"] == "" {
		// OPS answers in XML unless JSON is requested explicitly.
		cfg.Headers["Accept"] = "application/json"
	}

	base, err := client.New(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		Client:   base,
		throttle: ratelimit.NewTracker(logging.NewLogger("epo-ops")),
	}, nil
}

// validateReference checks the reference type and format arguments.
func validateReference(refType, format string) error {
	switch refType {
	case RefPublication, RefApplication, RefPriority:
	default:
		return fmt.Errorf("invalid reference type %q", refType)
	}
	switch format {
	case FormatDocDB, FormatEpoDoc:
	default:
		return fmt.Errorf("invalid number format %q", format)
	}
	return nil
}

// get issues an OPS GET, feeds the throttling tracker from the
// response headers and decodes the JSON body.
func (c *Client) get(ctx context.Context, path, errContext string) (map[string]any, error) {
	resp, err := c.Request(ctx, http.MethodGet, path, &client.RequestOptions{Context: errContext})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.throttle.UpdateFromHeaders(resp.Header)
	return client.DecodeJSON(resp)
}

// PublishedBiblio fetches the bibliographic record of a published
// document.
func (c *Client) PublishedBiblio(ctx context.Context, refType, format, number string) (map[string]any, error) {
	if err := validateReference(refType, format); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/published-data/%s/%s/%s/biblio", refType, format, number)
	return c.get(ctx, path, fmt.Sprintf("published biblio %s", number))
}

// PublishedClaims fetches the claims of a published document.
func (c *Client) PublishedClaims(ctx context.Context, refType, format, number string) (map[string]any, error) {
	if err := validateReference(refType, format); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/published-data/%s/%s/%s/claims", refType, format, number)
	return c.get(ctx, path, fmt.Sprintf("published claims %s", number))
}

// PublishedDescription fetches the description of a published document.
func (c *Client) PublishedDescription(ctx context.Context, refType, format, number string) (map[string]any, error) {
	if err := validateReference(refType, format); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/published-data/%s/%s/%s/description", refType, format, number)
	return c.get(ctx, path, fmt.Sprintf("published description %s", number))
}

// Family fetches the INPADOC patent family of a document.
func (c *Client) Family(ctx context.Context, refType, format, number string) (map[string]any, error) {
	if err := validateReference(refType, format); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/family/%s/%s/%s", refType, format, number)
	return c.get(ctx, path, fmt.Sprintf("family %s", number))
}

// LegalStatus fetches the INPADOC legal status events of a document.
func (c *Client) LegalStatus(ctx context.Context, refType, format, number string) (map[string]any, error) {
	if err := validateReference(refType, format); err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/legal/%s/%s/%s", refType, format, number)
	return c.get(ctx, path, fmt.Sprintf("legal status %s", number))
}

// Throttling returns the last observed OPS throttling state.
func (c *Client) Throttling() ratelimit.State {
	return c.throttle.Snapshot()
}

// ShouldThrottle reports whether the given OPS service bucket
// ("search", "retrieval", "inpadoc-data", "images", "other") is
// currently overloaded.
func (c *Client) ShouldThrottle(service string) bool {
	return c.throttle.ShouldThrottle(service)
}
