package polymarket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/updownbot/internal/crypto"
	"github.com/alanyoungcy/updownbot/internal/domain"
)

const (
	// usdcDecimals scales dollar and share amounts into CLOB integer units.
	usdcDecimals = 1e6

	submitAttempts = 3
	submitBackoff  = 500 * time.Millisecond
)

// Gateway submits signed limit orders to the Polymarket CLOB. It implements
// domain.OrderGateway. Transient failures are retried a fixed number of
// times with a flat backoff; a response without an order ID is treated as a
// failed submission no matter what the status field claims.
type Gateway struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
	logger     *slog.Logger
}

// NewGateway creates a CLOB order gateway.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
// The HMAC credentials may be nil at construction; DeriveAPIKey fills them.
func NewGateway(baseURL string, signer *crypto.Signer, hmac *crypto.HMACAuth, logger *slog.Logger) *Gateway {
	return &Gateway{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer:   signer,
		hmacAuth: hmac,
		logger:   logger.With("component", "polymarket_gateway"),
	}
}

// Submit signs and posts a buy order for the requested outcome token. The
// limit price and share count are taken as-is; sizing and slippage policy
// belong to the caller.
func (g *Gateway) Submit(ctx context.Context, req domain.SubmitRequest) (domain.SubmitResult, error) {
	if req.TokenID == "" || req.Price <= 0 || req.Size <= 0 {
		return domain.SubmitResult{}, fmt.Errorf("polymarket: %w: token=%q price=%.4f size=%.2f",
			domain.ErrInvalidOrder, req.TokenID, req.Price, req.Size)
	}

	payload, err := g.buildSignedOrder(req)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	body := map[string]any{
		"order":     payload,
		"owner":     g.hmacAuth.Key,
		"orderType": "GTC",
	}

	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		result, err := g.postOrder(ctx, body)
		if err == nil {
			g.logger.Info("order accepted",
				"order_id", result.OrderID,
				"status", result.Status,
				"side", req.Side,
				"price", req.Price,
				"size", req.Size,
			)
			return result, nil
		}
		lastErr = err

		if !retryable(err) {
			break
		}
		g.logger.Warn("order submit failed, retrying",
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return domain.SubmitResult{}, ctx.Err()
		case <-time.After(submitBackoff):
		}
	}

	return domain.SubmitResult{}, fmt.Errorf("polymarket: submit order: %w", lastErr)
}

// DeriveAPIKey performs the CLOB auth flow to obtain HMAC credentials. It
// signs a ClobAuth EIP-712 message and sends it with L1 headers. On success
// the gateway's HMAC credentials are replaced.
func (g *Gateway) DeriveAPIKey(ctx context.Context) error {
	address := g.signer.Address().Hex()
	timestamp := time.Now().Unix()
	nonce := int64(0)

	sig, err := g.signer.SignAuthMessage(address, timestamp, nonce)
	if err != nil {
		return fmt.Errorf("polymarket: sign auth message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/auth/derive-api-key", nil)
	if err != nil {
		return fmt.Errorf("polymarket: create auth request: %w", err)
	}
	req.Header.Set("POLY_ADDRESS", address)
	req.Header.Set("POLY_SIGNATURE", sig)
	req.Header.Set("POLY_TIMESTAMP", fmt.Sprintf("%d", timestamp))
	req.Header.Set("POLY_NONCE", fmt.Sprintf("%d", nonce))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("polymarket: auth request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("polymarket: read auth response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polymarket: %w: derive-api-key HTTP %d: %s",
			domain.ErrUnauthorized, resp.StatusCode, string(respBody))
	}

	var authResp struct {
		APIKey     string `json:"apiKey"`
		Secret     string `json:"secret"`
		Passphrase string `json:"passphrase"`
	}
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return fmt.Errorf("polymarket: decode auth response: %w", err)
	}

	g.hmacAuth = &crypto.HMACAuth{
		Key:        authResp.APIKey,
		Secret:     authResp.Secret,
		Passphrase: authResp.Passphrase,
	}
	g.logger.Info("derived CLOB API key", slog.Any("auth", g.hmacAuth))
	return nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// buildSignedOrder converts the request into a signed CLOB order payload.
// For a BUY, makerAmount is the USDC spent and takerAmount the shares
// received, both scaled to 6-decimal integer units.
func (g *Gateway) buildSignedOrder(req domain.SubmitRequest) (map[string]any, error) {
	makerAmount := scaleAmount(req.Price * req.Size)
	takerAmount := scaleAmount(req.Size)
	address := g.signer.Address().Hex()

	saltUUID := uuid.New()
	salt := new(big.Int).SetBytes(saltUUID[:])

	payload := crypto.OrderPayload{
		Salt:          salt.String(),
		Maker:         address,
		Signer:        address,
		Taker:         "0x0000000000000000000000000000000000000000",
		TokenID:       req.TokenID,
		MakerAmount:   makerAmount.String(),
		TakerAmount:   takerAmount.String(),
		Expiration:    "0",
		Nonce:         "0",
		FeeRateBps:    "0",
		Side:          0, // BUY
		SignatureType: 0, // EOA
	}

	sig, err := g.signer.SignOrder(payload)
	if err != nil {
		return nil, fmt.Errorf("polymarket: %w: %v", domain.ErrSigningFailed, err)
	}

	return map[string]any{
		"salt":          payload.Salt,
		"maker":         payload.Maker,
		"signer":        payload.Signer,
		"taker":         payload.Taker,
		"tokenId":       payload.TokenID,
		"makerAmount":   payload.MakerAmount,
		"takerAmount":   payload.TakerAmount,
		"expiration":    payload.Expiration,
		"nonce":         payload.Nonce,
		"feeRateBps":    payload.FeeRateBps,
		"side":          "BUY",
		"signatureType": payload.SignatureType,
		"signature":     sig,
	}, nil
}

// postOrder sends one authenticated order placement request.
func (g *Gateway) postOrder(ctx context.Context, body map[string]any) (domain.SubmitResult, error) {
	respBody, err := g.doAuthenticatedRequest(ctx, http.MethodPost, "/order", body)
	if err != nil {
		return domain.SubmitResult{}, err
	}

	var apiResult apiOrderResult
	if err := json.Unmarshal(respBody, &apiResult); err != nil {
		return domain.SubmitResult{}, fmt.Errorf("decode order result: %w", err)
	}
	if !apiResult.Success {
		return domain.SubmitResult{}, fmt.Errorf("%w: %s", domain.ErrInvalidOrder, apiResult.ErrorMsg)
	}
	if apiResult.OrderID == "" {
		return domain.SubmitResult{}, domain.ErrNoOrderID
	}

	return domain.SubmitResult{
		OrderID: apiResult.OrderID,
		Status:  apiResult.Status,
	}, nil
}

// doAuthenticatedRequest builds, signs (HMAC), sends, and reads an HTTP
// request against the CLOB API. It returns the raw response body.
func (g *Gateway) doAuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	var bodyStr string

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyStr = string(jsonBody)
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if g.hmacAuth == nil {
		return nil, fmt.Errorf("%w: no API credentials", domain.ErrUnauthorized)
	}
	for k, v := range g.hmacAuth.Headers(g.signer.Address().Hex(), method, path, bodyStr) {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// retryable reports whether a submit failure is worth another attempt.
// Rejections and auth failures are final; network errors, rate limits, and
// server errors are not.
func retryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder),
		errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrSigningFailed),
		errors.Is(err, domain.ErrNoOrderID):
		return false
	}
	return true
}

// scaleAmount converts a dollar/share amount into integer 6-decimal units,
// truncating sub-unit dust.
func scaleAmount(v float64) *big.Int {
	return big.NewInt(int64(v * usdcDecimals))
}
