package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jkariuki/nyumbani-backend/pkg/config"
	"github.com/jkariuki/nyumbani-backend/pkg/logger"
)

const messagingPath = "/version1/messaging"

// Africa's Talking reports per-recipient delivery with a "Success" status
// and a 1xx status code family.
const acceptedStatus = "Success"

var (
	ErrSendFailed = errors.New("sms send failed")

	errUsernameRequired = errors.New("sms username is required")
	errAPIKeyRequired   = errors.New("sms api key is required")
	errLoggerRequired   = errors.New("sms logger is required")
)

// Client sends SMS through the Africa's Talking messaging API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	username   string
	apiKey     string
	senderID   string
	logger     *logger.Logger
}

// RecipientResult is the per-recipient outcome of a send.
type RecipientResult struct {
	Number     string `json:"number"`
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	MessageID  string `json:"messageId"`
	Cost       string `json:"cost"`
}

type sendResponse struct {
	SMSMessageData struct {
		Message    string            `json:"Message"`
		Recipients []RecipientResult `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// NewClient initializes the SMS client and validates credentials.
func NewClient(ctx context.Context, cfg config.SMSConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if strings.TrimSpace(cfg.Username) == "" {
		return nil, errUsernameRequired
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		username:   strings.TrimSpace(cfg.Username),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		senderID:   strings.TrimSpace(cfg.SenderID),
		logger:     logg,
	}

	logg.Info(ctx, "sms client initialized")
	return c, nil
}

// Send delivers a message to a single recipient.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	results, err := c.SendBulk(ctx, []string{phone}, message)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return fmt.Errorf("%w: no recipients in response", ErrSendFailed)
	}
	if results[0].Status != acceptedStatus {
		return fmt.Errorf("%w: %s", ErrSendFailed, results[0].Status)
	}
	return nil
}

// SendBulk delivers a message to multiple recipients and returns the
// per-recipient outcomes. A transport failure fails the whole batch;
// individual rejections surface in the results.
func (c *Client) SendBulk(ctx context.Context, phones []string, message string) ([]RecipientResult, error) {
	if len(phones) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrSendFailed)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("%w: empty message", ErrSendFailed)
	}

	formatted := make([]string, 0, len(phones))
	for _, phone := range phones {
		formatted = append(formatted, FormatPhone(phone))
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("to", strings.Join(formatted, ","))
	form.Set("message", message)
	if c.senderID != "" {
		form.Set("from", c.senderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagingPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	req.Header.Set("apiKey", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrSendFailed, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload sendResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrSendFailed, err)
	}

	ctx = c.logger.WithFields(ctx, map[string]any{"recipients": len(formatted)})
	c.logger.Info(ctx, "sms batch dispatched")

	return payload.SMSMessageData.Recipients, nil
}

// FormatPhone converts Kenyan phone inputs into the +254XXXXXXXXX format
// the messaging API expects.
func FormatPhone(raw string) string {
	phone := strings.NewReplacer(" ", "", "-", "", "+", "").Replace(raw)

	switch {
	case strings.HasPrefix(phone, "0"):
		return "+254" + phone[1:]
	case strings.HasPrefix(phone, "254"):
		return "+" + phone
	case strings.HasPrefix(phone, "7"), strings.HasPrefix(phone, "1"):
		return "+254" + phone
	default:
		return "+" + phone
	}
}
