package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// MarketSource discovers the active Up/Down market of a series via the
// Polymarket Gamma API and converts it into a quote snapshot. Fifteen-minute
// markets roll continuously, so "active" means open, accepting orders, and
// ending soonest.
type MarketSource struct {
	baseURL    string
	seriesSlug string
	httpClient *http.Client
}

// NewMarketSource creates a Gamma-backed market source.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
// seriesSlug identifies the market series, e.g. "btc-updown-15m".
func NewMarketSource(baseURL, seriesSlug string) *MarketSource {
	return &MarketSource{
		baseURL:    baseURL,
		seriesSlug: seriesSlug,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ActiveQuote returns the current market of the series as a quote. The
// PriceToBeat field is left zero; latching the reference spot price is the
// caller's job since it needs the underlying feed.
func (s *MarketSource) ActiveQuote(ctx context.Context, now time.Time) (domain.Quote, error) {
	markets, err := s.listSeries(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	best := -1
	var bestEnd time.Time
	for i := range markets {
		m := &markets[i]
		if m.Closed || !m.Active || !m.AcceptingOrders {
			continue
		}
		end, err := m.endTime()
		if err != nil || !end.After(now) {
			continue
		}
		if best < 0 || end.Before(bestEnd) {
			best = i
			bestEnd = end
		}
	}
	if best < 0 {
		return domain.Quote{}, fmt.Errorf("polymarket: %w: no open market in series %s",
			domain.ErrNotFound, s.seriesSlug)
	}

	return s.toQuote(&markets[best], bestEnd, now)
}

func (s *MarketSource) toQuote(m *apiMarket, end, now time.Time) (domain.Quote, error) {
	up, down, err := m.sides()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket: market %s: %w", m.ID, err)
	}
	prices, err := m.prices()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket: market %s: %w", m.ID, err)
	}
	tokens, err := m.tokenIDs()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("polymarket: market %s: %w", m.ID, err)
	}
	if up >= len(prices) || down >= len(prices) || up >= len(tokens) || down >= len(tokens) {
		return domain.Quote{}, fmt.Errorf("polymarket: market %s: outcome arrays out of sync", m.ID)
	}

	return domain.Quote{
		MarketID:      m.ID,
		UpPrice:       prices[up],
		DownPrice:     prices[down],
		UpTokenID:     tokens[up],
		DownTokenID:   tokens[down],
		MarketEndTime: end,
		FetchedAt:     now,
	}, nil
}

func (s *MarketSource) listSeries(ctx context.Context) ([]apiMarket, error) {
	params := url.Values{}
	params.Set("series_slug", s.seriesSlug)
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", "10")

	body, err := s.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket: list series %s: %w", s.seriesSlug, err)
	}

	var markets []apiMarket
	if err := json.Unmarshal(body, &markets); err != nil {
		return nil, fmt.Errorf("polymarket: decode markets: %w", err)
	}
	return markets, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (s *MarketSource) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}
