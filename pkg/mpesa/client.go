package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/jkariuki/nyumbani-backend/pkg/config"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

const (
	sandboxEnv    = "sandbox"
	productionEnv = "production"

	timestampLayout = "20060102150405"

	// Daraja issues tokens valid for one hour; cache for less so a token is
	// never presented near its expiry.
	tokenCacheTTL = 55 * time.Minute

	stkCallbackPath = "/api/payments/mpesa/stk-callback"
)

// Sentinel errors callers branch on. Wrapped errors carry the underlying
// detail; use errors.Is against these.
var (
	ErrAuthFailure  = errors.New("mpesa authentication failed")
	ErrNetwork      = errors.New("mpesa network failure")
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrRejected     = errors.New("mpesa rejected request")
)

var (
	errCredentialsRequired = errors.New("mpesa consumer key and secret are required")
	errShortCodeRequired   = errors.New("mpesa business short code is required")
	errPasskeyRequired     = errors.New("mpesa passkey is required")
	errCallbackRequired    = errors.New("mpesa callback url is required")
	errInvalidMpesaEnv     = fmt.Errorf("mpesa environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired      = errors.New("mpesa logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://sandbox.safaricom.co.ke",
	productionEnv: "https://api.safaricom.co.ke",
}

// Client talks to the Safaricom Daraja API with centralized auth caching,
// logging, and error mapping.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string
	logger         *logger.Logger
	now            func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
	flight      singleflight.Group
}

// STKPushResponse is Daraja's acknowledgement of a push request. A zero
// ResponseCode only means the prompt was queued to the handset.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKQueryResponse reports the terminal state of a push prompt.
type STKQueryResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// NewClient initializes the Daraja wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.MpesaConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.ConsumerKey) == "" || strings.TrimSpace(cfg.ConsumerSecret) == "" {
		return nil, errCredentialsRequired
	}
	if strings.TrimSpace(cfg.ShortCode) == "" {
		return nil, errShortCodeRequired
	}
	if strings.TrimSpace(cfg.Passkey) == "" {
		return nil, errPasskeyRequired
	}
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil, errCallbackRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        baseURLs[env],
		consumerKey:    strings.TrimSpace(cfg.ConsumerKey),
		consumerSecret: strings.TrimSpace(cfg.ConsumerSecret),
		shortCode:      strings.TrimSpace(cfg.ShortCode),
		passkey:        strings.TrimSpace(cfg.Passkey),
		callbackURL:    strings.TrimRight(strings.TrimSpace(cfg.CallbackURL), "/"),
		logger:         logg,
		now:            time.Now,
	}

	logg.Info(ctx, "mpesa client initialized")
	return c, nil
}

// Token returns a cached OAuth token, refreshing when expired. Concurrent
// callers share a single refresh round-trip.
func (c *Client) Token(ctx context.Context) (string, error) {
	if token, ok := c.cachedToken(); ok {
		return token, nil
	}

	value, err, _ := c.flight.Do("token", func() (any, error) {
		if token, ok := c.cachedToken(); ok {
			return token, nil
		}
		token, err := c.fetchToken(ctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.token = token
		c.tokenExpiry = c.now().Add(tokenCacheTTL)
		c.mu.Unlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (c *Client) cachedToken() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.tokenExpiry) {
		return c.token, true
	}
	return "", false
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	url := c.baseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.SetBasicAuth(c.consumerKey, c.consumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", ErrAuthFailure, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: token endpoint returned status %d", ErrNetwork, resp.StatusCode)
	}

	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", ErrNetwork, err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrAuthFailure)
	}
	return payload.AccessToken, nil
}

// STKPush sends a payment prompt to the customer's handset. The account
// reference is the apartment bill reference the callback will resolve.
// No Payment row is created here; collection is confirmed asynchronously.
func (c *Client) STKPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference, description string) (*STKPushResponse, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	payload := map[string]any{
		"BusinessShortCode": c.shortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            amount.IntPart(),
		"PartyA":            normalized,
		"PartyB":            c.shortCode,
		"PhoneNumber":       normalized,
		"CallBackURL":       c.callbackURL + stkCallbackPath,
		"AccountReference":  accountReference,
		"TransactionDesc":   description,
	}

	ctx = c.logger.WithFields(ctx, map[string]any{"reference": accountReference})
	c.logger.Info(ctx, "mpesa stk push requested")

	var resp STKPushResponse
	if err := c.postJSON(ctx, "/mpesa/stkpush/v1/processrequest", token, payload, &resp); err != nil {
		c.logger.Error(ctx, "mpesa stk push failed", err)
		return nil, err
	}
	if resp.ResponseCode != "0" {
		return nil, fmt.Errorf("%w: %s", ErrRejected, resp.ResponseDescription)
	}
	return &resp, nil
}

// QueryStatus asks Daraja for the state of a prior push prompt. The answer
// is informational; collection truth comes from the C2B callback.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().Format(timestampLayout)
	payload := map[string]any{
		"BusinessShortCode": c.shortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	var resp STKQueryResponse
	if err := c.postJSON(ctx, "/mpesa/stkpushquery/v1/query", token, payload, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// password derives the Daraja request credential:
// base64(shortcode + passkey + timestamp).
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.shortCode + c.passkey + timestamp))
}

func (c *Client) postJSON(ctx context.Context, path, token string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthFailure, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrNetwork, err)
	}
	return nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidMpesaEnv
	}
}
