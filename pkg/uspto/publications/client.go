// Package publications provides a typed client for the USPTO bulk
// search API over pre-grant publications.
package publications

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/openip/iptools/pkg/client"
)

// DefaultBaseURL is the publications bulk search API root.
const DefaultBaseURL = "https://developer.uspto.gov/ibd-api"

const serviceName = "uspto_publications"

// Client is the USPTO publications client.
type Client struct {
	*client.Client
}

// DefaultConfig returns the standard publications client configuration.
func DefaultConfig() client.Config {
	return client.DefaultConfig(DefaultBaseURL, serviceName)
}

// New creates a publications client.
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

// NormalizePublicationNumber normalizes user-supplied publication
// numbers: a leading country prefix "US" is dropped, commas, spaces,
// slashes and dashes are removed, and kind codes are upper-cased
// ("us 2023/0012345 a1" becomes "20230012345A1").
func NormalizePublicationNumber(number string) string {
	n := strings.TrimSpace(number)
	if len(n) >= 2 && strings.EqualFold(n[:2], "US") {
		n = n[2:]
	}
	return strings.ToUpper(numberSeparators.Replace(n))
}

// Query selects publications. Empty fields are omitted from the
// request.
type Query struct {
	// InventorName matches against the listed inventors.
	InventorName string

	// AssigneeName matches against the original assignee.
	AssigneeName string

	// Title matches against the invention title.
	Title string

	// PublicationFromDate and PublicationToDate bound the publication
	// date (ISO dates, inclusive).
	PublicationFromDate string
	PublicationToDate   string

	// Start and Rows page through the result set.
	Start int
	Rows  int
}

// params serializes the query to URL parameters.
func (q Query) params() url.Values {
	params := url.Values{}
	set := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			params.Set(key, v)
		}
	}
	set("inventorNameText", q.InventorName)
	set("assigneeEntityName", q.AssigneeName)
	set("inventionTitle", q.Title)
	set("publicationFromDate", q.PublicationFromDate)
	set("publicationToDate", q.PublicationToDate)
	if q.Start > 0 {
		params.Set("start", strconv.Itoa(q.Start))
	}
	if q.Rows > 0 {
		params.Set("rows", strconv.Itoa(q.Rows))
	}
	return params
}

// Search queries the published applications index.
func (c *Client) Search(ctx context.Context, query Query) (map[string]any, error) {
	return c.RequestJSON(ctx, http.MethodGet, "/v1/application/publications", &client.RequestOptions{
		Params:  query.params(),
		Context: "publication search",
	})
}

// ByPublicationNumber fetches one publication by its document number.
// The number is normalized before the lookup.
func (c *Client) ByPublicationNumber(ctx context.Context, publicationNumber string) (map[string]any, error) {
	n := NormalizePublicationNumber(publicationNumber)
	params := url.Values{}
	params.Set("publicationDocumentIdentifier", n)
	return c.RequestJSON(ctx, http.MethodGet, "/v1/application/publications", &client.RequestOptions{
		Params:  params,
		Context: fmt.Sprintf("publication %s", n),
	})
}
