package dopigo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
)

const (
	DefaultPageSize = 100
	// bezpiecznik na wypadek serwera, który w kółko zwraca "next"
	maxOffset = 10000
)

type PageFetcher interface {
	FetchProductsPage(ctx context.Context, token string, limit, offset int) (*Page, error)
}

type Result struct {
	Count      int               `json:"count"`
	TotalCount int               `json:"total_count"`
	Results    []json.RawMessage `json:"results"`
}

// FetchAll przechodzi po wszystkich stronach. Błąd dowolnej strony = błąd całości (bez częściowego wyniku).
func FetchAll(ctx context.Context, log zerolog.Logger, pages PageFetcher, token string, pageSize int) (*Result, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	var (
		all    []json.RawMessage
		offset = 0
		page   = 1
		total  = 0
	)

	for {
		log.Debug().Int("page", page).Int("offset", offset).Int("limit", pageSize).Msg("fetching page")

		p, err := pages.FetchProductsPage(ctx, token, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("fetch products at offset %d: %w", offset, err)
		}

		if !p.Paginated {
			// goła tablica = komplet danych
			log.Debug().Int("count", len(p.Results)).Msg("response is not paginated, using all results")
			all = p.Results
			break
		}

		n := len(p.Results)
		all = append(all, p.Results...)
		if page == 1 && p.Count > 0 {
			total = p.Count
			log.Debug().Int("total", total).Msg("total products available")
		}

		hasMore := p.Next != "" && n == pageSize
		if n < pageSize {
			hasMore = false
		}
		offset += pageSize
		page++

		if !hasMore {
			break
		}
		if offset > maxOffset {
			log.Warn().Int("offset", offset).Msg("pagination limit reached")
			break
		}
		if total > 0 && len(all) >= total {
			break
		}
	}

	res := &Result{Count: len(all), TotalCount: total, Results: all}
	if res.TotalCount < res.Count {
		res.TotalCount = res.Count
	}
	log.Info().Int("collected", res.Count).Int("expected", total).Msg("pagination complete")
	return res, nil
}

// FetchAll na kliencie.
func (c *Client) FetchAll(ctx context.Context, token string, pageSize int) (*Result, error) {
	return FetchAll(ctx, c.log, c, token, pageSize)
}
