package polymarket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/updownbot/internal/crypto"
	"github.com/alanyoungcy/updownbot/internal/domain"
)

const testKeyHex = "4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	signer, err := crypto.NewSigner(testKeyHex, 137)
	require.NoError(t, err)
	return signer
}

func testHMAC() *crypto.HMACAuth {
	return &crypto.HMACAuth{
		Key:        "api-key-1",
		Secret:     base64.StdEncoding.EncodeToString([]byte("shared-secret")),
		Passphrase: "pass-1",
	}
}

func submitRequest() domain.SubmitRequest {
	return domain.SubmitRequest{
		TokenID: "7132107",
		Side:    domain.OutcomeUp,
		Price:   0.32,
		Size:    31,
	}
}

func TestSubmit(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/order", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
			assert.Equal(t, "api-key-1", r.Header.Get("POLY_API_KEY"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			_ = json.NewEncoder(w).Encode(apiOrderResult{Success: true, OrderID: "ord-1", Status: "live"})
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, testSigner(t), testHMAC(), testLogger())
		res, err := gw.Submit(context.Background(), submitRequest())
		require.NoError(t, err)
		assert.Equal(t, "ord-1", res.OrderID)
		assert.Equal(t, "live", res.Status)

		assert.Equal(t, "GTC", got["orderType"])
		assert.Equal(t, "api-key-1", got["owner"])
		order, ok := got["order"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "7132107", order["tokenId"])
		assert.Equal(t, "BUY", order["side"])
		// 0.32 * 31 = 9.92 USD and 31 shares, scaled to 6 decimals.
		assert.Equal(t, "9920000", order["makerAmount"])
		assert.Equal(t, "31000000", order["takerAmount"])
		assert.NotEmpty(t, order["signature"])
		assert.NotEmpty(t, order["salt"])
	})

	t.Run("retries transient server errors", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				http.Error(w, "try later", http.StatusInternalServerError)
				return
			}
			_ = json.NewEncoder(w).Encode(apiOrderResult{Success: true, OrderID: "ord-2"})
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, testSigner(t), testHMAC(), testLogger())
		res, err := gw.Submit(context.Background(), submitRequest())
		require.NoError(t, err)
		assert.Equal(t, "ord-2", res.OrderID)
		assert.Equal(t, 2, calls)
	})

	t.Run("rejection is not retried", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			_ = json.NewEncoder(w).Encode(apiOrderResult{Success: false, ErrorMsg: "insufficient balance"})
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, testSigner(t), testHMAC(), testLogger())
		_, err := gw.Submit(context.Background(), submitRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
		assert.Contains(t, err.Error(), "insufficient balance")
		assert.Equal(t, 1, calls)
	})

	t.Run("success without order id fails", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			_ = json.NewEncoder(w).Encode(apiOrderResult{Success: true, Status: "live"})
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, testSigner(t), testHMAC(), testLogger())
		_, err := gw.Submit(context.Background(), submitRequest())
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNoOrderID)
		assert.Equal(t, 1, calls)
	})

	t.Run("validates the request locally", func(t *testing.T) {
		gw := NewGateway("http://unused", testSigner(t), testHMAC(), testLogger())

		_, err := gw.Submit(context.Background(), domain.SubmitRequest{Price: 0.5, Size: 10})
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)

		_, err = gw.Submit(context.Background(), domain.SubmitRequest{TokenID: "1", Size: 10})
		assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	})
}

func TestDeriveAPIKey(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/derive-api-key", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("POLY_ADDRESS"))
			assert.NotEmpty(t, r.Header.Get("POLY_SIGNATURE"))
			assert.NotEmpty(t, r.Header.Get("POLY_TIMESTAMP"))
			_ = json.NewEncoder(w).Encode(map[string]string{
				"apiKey":     "derived-key",
				"secret":     base64.StdEncoding.EncodeToString([]byte("derived-secret")),
				"passphrase": "derived-pass",
			})
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, testSigner(t), nil, testLogger())
		require.NoError(t, gw.DeriveAPIKey(context.Background()))
		assert.Equal(t, "derived-key", gw.hmacAuth.Key)
		assert.Equal(t, "derived-pass", gw.hmacAuth.Passphrase)
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad signature", http.StatusUnauthorized)
		}))
		defer srv.Close()

		gw := NewGateway(srv.URL, testSigner(t), nil, testLogger())
		err := gw.DeriveAPIKey(context.Background())
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestRetryable(t *testing.T) {
	assert.False(t, retryable(domain.ErrInvalidOrder))
	assert.False(t, retryable(domain.ErrUnauthorized))
	assert.False(t, retryable(domain.ErrSigningFailed))
	assert.False(t, retryable(domain.ErrNoOrderID))
	assert.True(t, retryable(domain.ErrRateLimited))
	assert.True(t, retryable(io.ErrUnexpectedEOF))
}

func TestScaleAmount(t *testing.T) {
	assert.Equal(t, "10000000", scaleAmount(10).String())
	assert.Equal(t, "9920000", scaleAmount(9.92).String())
	assert.Equal(t, "0", scaleAmount(0).String())
}
