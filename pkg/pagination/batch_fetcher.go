// Package pagination provides parallel batch fetching for
// offset-paginated search endpoints.
package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds batch fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int

	// PageSize is the limit passed to each page fetch.
	PageSize int

	// Timeout bounds each individual page fetch.
	Timeout time.Duration
}

// DefaultConfig returns a configuration safe for the patent-office
// APIs, which throttle aggressively.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		PageSize:       100,
		Timeout:        15 * time.Second,
	}
}

// PageFetcher fetches a single page of results. It reports the total
// result count so the fetcher can plan the remaining pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, offset, limit int) (items []map[string]any, total int, err error)
}

// BatchFetcher fans page fetches out over a bounded worker pool and
// reassembles the results in order.
type BatchFetcher struct {
	fetcher PageFetcher
	config  Config
}

// NewBatchFetcher creates a batch fetcher. Zero config fields fall
// back to the defaults.
func NewBatchFetcher(fetcher PageFetcher, config Config) *BatchFetcher {
	def := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = def.MaxConcurrency
	}
	if config.PageSize <= 0 {
		config.PageSize = def.PageSize
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	return &BatchFetcher{fetcher: fetcher, config: config}
}

// FetchAll retrieves every page of the result set. The first page is
// fetched alone to learn the total; the remaining pages are fetched
// concurrently. The first page error cancels the rest.
func (bf *BatchFetcher) FetchAll(ctx context.Context) ([]map[string]any, error) {
	start := time.Now()
	limit := bf.config.PageSize

	first, total, err := bf.fetchOne(ctx, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}
	if total <= limit {
		return first, nil
	}

	pageCount := (total + limit - 1) / limit
	pages := make([][]map[string]any, pageCount)
	pages[0] = first

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	offsets := make(chan int)
	errs := make(chan error, 1)
	var wg sync.WaitGroup

	for i := 0; i < bf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for offset := range offsets {
				items, _, err := bf.fetchOne(ctx, offset, limit)
				if err != nil {
					select {
					case errs <- fmt.Errorf("fetch page at offset %d: %w", offset, err):
						cancel()
					default:
					}
					return
				}
				pages[offset/limit] = items
			}
		}()
	}

	for page := 1; page < pageCount; page++ {
		select {
		case offsets <- page * limit:
		case <-ctx.Done():
			page = pageCount
		}
	}
	close(offsets)
	wg.Wait()

	select {
	case err := <-errs:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, total)
	for _, page := range pages {
		results = append(results, page...)
	}

	log.Debug().
		Int("total", total).
		Int("pages", pageCount).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	return results, nil
}

// fetchOne runs one page fetch under the per-page timeout.
func (bf *BatchFetcher) fetchOne(ctx context.Context, offset, limit int) ([]map[string]any, int, error) {
	ctx, cancel := context.WithTimeout(ctx, bf.config.Timeout)
	defer cancel()
	return bf.fetcher.FetchPage(ctx, offset, limit)
}
