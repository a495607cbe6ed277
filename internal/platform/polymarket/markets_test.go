package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func gammaMarket(id string, end time.Time) apiMarket {
	return apiMarket{
		ID:              id,
		Slug:            "btc-updown-" + id,
		Question:        "BTC Up or Down?",
		Outcomes:        `["Up","Down"]`,
		OutcomePrices:   `["0.52","0.49"]`,
		ClobTokenIDs:    `["111","222"]`,
		EndDate:         end.Format(time.RFC3339),
		Active:          true,
		AcceptingOrders: true,
	}
}

func serveMarkets(t *testing.T, markets []apiMarket) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		assert.Equal(t, "btc-updown-15m", r.URL.Query().Get("series_slug"))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(markets))
	}))
}

func TestActiveQuote(t *testing.T) {
	t.Run("picks soonest ending open market", func(t *testing.T) {
		later := gammaMarket("m-later", testNow.Add(26*time.Minute))
		soon := gammaMarket("m-soon", testNow.Add(11*time.Minute))
		srv := serveMarkets(t, []apiMarket{later, soon})
		defer srv.Close()

		source := NewMarketSource(srv.URL, "btc-updown-15m")
		q, err := source.ActiveQuote(context.Background(), testNow)
		require.NoError(t, err)

		assert.Equal(t, "m-soon", q.MarketID)
		assert.Equal(t, 0.52, q.UpPrice)
		assert.Equal(t, 0.49, q.DownPrice)
		assert.Equal(t, "111", q.UpTokenID)
		assert.Equal(t, "222", q.DownTokenID)
		assert.True(t, q.MarketEndTime.Equal(testNow.Add(11*time.Minute)))
		assert.Zero(t, q.PriceToBeat)
		assert.True(t, q.Valid())
	})

	t.Run("reversed outcome order", func(t *testing.T) {
		m := gammaMarket("m-1", testNow.Add(11*time.Minute))
		m.Outcomes = `["Down","Up"]`
		m.OutcomePrices = `["0.49","0.52"]`
		m.ClobTokenIDs = `["222","111"]`
		srv := serveMarkets(t, []apiMarket{m})
		defer srv.Close()

		source := NewMarketSource(srv.URL, "btc-updown-15m")
		q, err := source.ActiveQuote(context.Background(), testNow)
		require.NoError(t, err)

		assert.Equal(t, 0.52, q.UpPrice)
		assert.Equal(t, "111", q.UpTokenID)
	})

	t.Run("skips closed and ended markets", func(t *testing.T) {
		closed := gammaMarket("m-closed", testNow.Add(11*time.Minute))
		closed.Closed = true
		paused := gammaMarket("m-paused", testNow.Add(12*time.Minute))
		paused.AcceptingOrders = false
		ended := gammaMarket("m-ended", testNow.Add(-time.Minute))
		srv := serveMarkets(t, []apiMarket{closed, paused, ended})
		defer srv.Close()

		source := NewMarketSource(srv.URL, "btc-updown-15m")
		_, err := source.ActiveQuote(context.Background(), testNow)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("rejects non up-down markets", func(t *testing.T) {
		m := gammaMarket("m-1", testNow.Add(11*time.Minute))
		m.Outcomes = `["Yes","No"]`
		srv := serveMarkets(t, []apiMarket{m})
		defer srv.Close()

		source := NewMarketSource(srv.URL, "btc-updown-15m")
		_, err := source.ActiveQuote(context.Background(), testNow)
		assert.Error(t, err)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		source := NewMarketSource(srv.URL, "btc-updown-15m")
		_, err := source.ActiveQuote(context.Background(), testNow)
		assert.Error(t, err)
	})
}

func TestCheckHTTPStatus(t *testing.T) {
	assert.NoError(t, checkHTTPStatus(200, nil))
	assert.NoError(t, checkHTTPStatus(204, nil))
	assert.ErrorIs(t, checkHTTPStatus(404, []byte("missing")), domain.ErrNotFound)
	assert.ErrorIs(t, checkHTTPStatus(401, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkHTTPStatus(403, nil), domain.ErrUnauthorized)
	assert.ErrorIs(t, checkHTTPStatus(429, nil), domain.ErrRateLimited)

	err := checkHTTPStatus(500, []byte("oops"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("HTTP %d", 500))
}
