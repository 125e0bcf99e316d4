package odp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/openip/iptools/internal/testutil"
	"github.com/openip/iptools/pkg/client"
	"github.com/openip/iptools/pkg/pagination"
)

func newTestClient(t *testing.T, mock *testutil.MockAPI, apiKey string) *Client {
	t.Helper()
	cfg := client.DefaultConfig(mock.URL(), "test_odp")
	cfg.UseCache = false
	cfg.MaxRetries = 1
	c, err := New(cfg, apiKey)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSearchApplications(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var gotBody map[string]any
	mock.Handle("/api/v1/patent/applications/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"count":1,"patentFileWrapperDataBag":[{"applicationNumberText":"16123456"}]}`))
	})

	c := newTestClient(t, mock, "key-1")

	result, err := c.SearchApplications(context.Background(), NewSearchPayload("inventionTitle:battery"))
	if err != nil {
		t.Fatalf("SearchApplications() error: %v", err)
	}

	if gotBody["q"] != "inventionTitle:battery" {
		t.Errorf("body q = %v", gotBody["q"])
	}
	if _, present := gotBody["sort"]; present {
		t.Error("empty sort survived pruning")
	}
	if result["count"] != float64(1) {
		t.Errorf("count = %v", result["count"])
	}
	if got := mock.LastHeader().Get("X-API-KEY"); got != "key-1" {
		t.Errorf("X-API-KEY = %q, want %q", got, "key-1")
	}
}

func TestSearchApplications_WithFilters(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	var gotBody map[string]any
	mock.Handle("/api/v1/patent/applications/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"count":0,"patentFileWrapperDataBag":[]}`))
	})

	c := newTestClient(t, mock, "")

	aia := true
	payload := NewSearchPayload("solar")
	payload.Filters = append(payload.Filters,
		Filter("applicationMetaData.applicationTypeLabelName", "Utility"),
		BoolFilter("applicationMetaData.aiaIndicator", &aia),
	)
	payload.RangeFilters = append(payload.RangeFilters,
		DateRangeISO("applicationMetaData.filingDate", "2020-01-01", "2023-12-31"))

	if _, err := c.SearchApplications(context.Background(), payload); err != nil {
		t.Fatalf("SearchApplications() error: %v", err)
	}

	filters, ok := gotBody["filters"].([]any)
	if !ok || len(filters) != 2 {
		t.Fatalf("body filters = %v", gotBody["filters"])
	}
	if filters[0] != "applicationMetaData.applicationTypeLabelName Utility" {
		t.Errorf("filters[0] = %v", filters[0])
	}
	if filters[1] != "applicationMetaData.aiaIndicator true" {
		t.Errorf("filters[1] = %v", filters[1])
	}

	rangeFilters, ok := gotBody["rangeFilters"].([]any)
	if !ok || len(rangeFilters) != 1 {
		t.Fatalf("body rangeFilters = %v", gotBody["rangeFilters"])
	}
	if rangeFilters[0] != "applicationMetaData.filingDate 2020-01-01 2023-12-31" {
		t.Errorf("rangeFilters[0] = %v", rangeFilters[0])
	}
}

func TestSearchApplications_InvalidPagination(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	payload := NewSearchPayload("solar")
	payload.Pagination.Limit = 0

	if _, err := c.SearchApplications(context.Background(), payload); err == nil {
		t.Error("invalid pagination should fail before hitting upstream")
	}
	if mock.Requests() != 0 {
		t.Errorf("upstream calls = %d, want 0", mock.Requests())
	}
}

func TestGetApplication(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Respond("/api/v1/patent/applications/16123456", testutil.MockResponse{
		Body: `{"applicationNumberText":"16123456","inventionTitle":"Widget"}`,
	})

	c := newTestClient(t, mock, "")

	result, err := c.GetApplication(context.Background(), "16123456")
	if err != nil {
		t.Fatalf("GetApplication() error: %v", err)
	}
	if result["inventionTitle"] != "Widget" {
		t.Errorf("inventionTitle = %v", result["inventionTitle"])
	}
}

func TestSearchAll_PaginatesThroughResults(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	const total = 120
	mock.Handle("/api/v1/patent/applications/search", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Pagination struct {
				Offset int `json:"offset"`
				Limit  int `json:"limit"`
			} `json:"pagination"`
		}
		json.NewDecoder(r.Body).Decode(&body)

		bag := make([]map[string]any, 0, body.Pagination.Limit)
		for i := body.Pagination.Offset; i < body.Pagination.Offset+body.Pagination.Limit && i < total; i++ {
			bag = append(bag, map[string]any{"applicationNumberText": strconv.Itoa(i)})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"count":                    total,
			"patentFileWrapperDataBag": bag,
		})
	})

	c := newTestClient(t, mock, "")

	results, err := c.SearchAll(context.Background(), NewSearchPayload("solar"), pagination.Config{PageSize: 50})
	if err != nil {
		t.Fatalf("SearchAll() error: %v", err)
	}
	if len(results) != total {
		t.Fatalf("results = %d, want %d", len(results), total)
	}
	for i, item := range results {
		if item["applicationNumberText"] != strconv.Itoa(i) {
			t.Fatalf("results[%d] = %v, want ordered reassembly", i, item)
		}
	}
	if mock.Requests() != 3 {
		t.Errorf("upstream calls = %d, want 3 pages", mock.Requests())
	}
}

func TestSearchAll_UpstreamError(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.Respond("/api/v1/patent/applications/search", testutil.MockResponse{
		StatusCode: 400,
		Body:       fmt.Sprintf(`{"error":%q}`, "bad query"),
	})

	c := newTestClient(t, mock, "")

	if _, err := c.SearchAll(context.Background(), NewSearchPayload("((("), pagination.Config{}); err == nil {
		t.Error("upstream 400 should propagate")
	}
}
