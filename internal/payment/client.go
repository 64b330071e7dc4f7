package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ratemate/ratemate/internal/domain"
)

// Status classifies a bill's position in its lifecycle. Paid and Expired are
// terminal; Unknown means the gateway could not be read and callers should
// treat the bill as still pending without resetting any cooldown.
type Status string

const (
	StatusPaid    Status = "PAID"
	StatusWaiting Status = "WAITING"
	StatusExpired Status = "EXPIRED"
	StatusUnknown Status = "UNKNOWN"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusExpired
}

// Client defines the contract for the upstream payment gateway.
type Client interface {
	CreateBill(ctx context.Context, amount int64) (domain.PaymentIntent, error)
	Status(ctx context.Context, billID string) Status
}

// HTTPClient implements Client over HTTP. The gateway has shipped three
// status response shapes over its lifetime (flat status field, nested status
// object, and an alternate endpoint); Status tries each interpretation in
// order with bounded retries and degrades to StatusUnknown instead of failing.
type HTTPClient struct {
	baseURL     *url.URL
	apiKey      string
	client      *http.Client
	logger      *log.Logger
	maxAttempts int
	retryDelay  time.Duration
}

// NewHTTPClient constructs a new HTTP-backed gateway client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *log.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger:      logger,
		maxAttempts: 3,
		retryDelay:  time.Second,
	}, nil
}

// billPayload tolerates both field spellings the gateway has used.
type billPayload struct {
	PayURL    string `json:"payUrl"`
	PayURLAlt string `json:"pay_url"`
	BillID    string `json:"billId"`
	BillIDAlt string `json:"bill_id"`
}

func (b billPayload) payURL() string {
	if b.PayURL != "" {
		return b.PayURL
	}
	return b.PayURLAlt
}

func (b billPayload) billID() string {
	if b.BillID != "" {
		return b.BillID
	}
	return b.BillIDAlt
}

// CreateBill opens a new invoice and returns its intent.
func (c *HTTPClient) CreateBill(ctx context.Context, amount int64) (domain.PaymentIntent, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: "/bills"})

	body, err := json.Marshal(map[string]int64{"amount": amount})
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.PaymentIntent{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Printf("payment: create bill returned %d", resp.StatusCode)
		return domain.PaymentIntent{}, fmt.Errorf("payment: gateway returned %d", resp.StatusCode)
	}

	var payload billPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.PaymentIntent{}, fmt.Errorf("decode bill response: %w", err)
	}
	if payload.payURL() == "" || payload.billID() == "" {
		return domain.PaymentIntent{}, fmt.Errorf("payment: bill response missing payUrl or billId")
	}

	return domain.PaymentIntent{
		BillID:    payload.billID(),
		PayURL:    payload.payURL(),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Status resolves a bill's current status. Interpretations are tried in
// order; within each, transient failures are retried up to maxAttempts with a
// fixed delay. A response that parses but carries no status moves on to the
// next interpretation immediately. Exhaustion yields StatusUnknown.
func (c *HTTPClient) Status(ctx context.Context, billID string) Status {
	interpretations := []struct {
		name  string
		fetch func(ctx context.Context, billID string) (string, error)
	}{
		{"flat", c.flatStatus},
		{"nested", c.nestedStatus},
		{"alternate", c.alternateStatus},
	}

	for _, in := range interpretations {
		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			raw, err := in.fetch(ctx, billID)
			if err == nil {
				if raw == "" {
					break // shape mismatch, not transient
				}
				return classify(raw)
			}
			c.logger.Printf("payment: %s status check for bill %s attempt %d failed: %v", in.name, billID, attempt, err)
			if attempt < c.maxAttempts {
				select {
				case <-time.After(c.retryDelay):
				case <-ctx.Done():
					return StatusUnknown
				}
			}
		}
	}
	return StatusUnknown
}

func classify(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID":
		return StatusPaid
	case "WAITING", "PENDING", "CREATED":
		return StatusWaiting
	case "EXPIRED", "REJECTED":
		return StatusExpired
	default:
		return StatusUnknown
	}
}

// flatStatus reads GET /bills/{id} expecting {"status": "WAITING"}.
func (c *HTTPClient) flatStatus(ctx context.Context, billID string) (string, error) {
	raw, err := c.fetchJSON(ctx, "/bills/"+url.PathEscape(billID))
	if err != nil {
		return "", err
	}
	var flat string
	if json.Unmarshal(raw, &flat) == nil {
		return flat, nil
	}
	return "", nil
}

// nestedStatus reads the same endpoint expecting {"status": {"value": ...}}.
func (c *HTTPClient) nestedStatus(ctx context.Context, billID string) (string, error) {
	raw, err := c.fetchJSON(ctx, "/bills/"+url.PathEscape(billID))
	if err != nil {
		return "", err
	}
	return nestedValue(raw), nil
}

// alternateStatus reads the legacy GET /invoices/{id}/status endpoint.
func (c *HTTPClient) alternateStatus(ctx context.Context, billID string) (string, error) {
	raw, err := c.fetchJSON(ctx, "/invoices/"+url.PathEscape(billID)+"/status")
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", nil
	}
	var flat string
	if json.Unmarshal(raw, &flat) == nil && flat != "" {
		return flat, nil
	}
	return nestedValue(raw), nil
}

func nestedValue(raw json.RawMessage) string {
	var nested struct {
		Value string `json:"value"`
	}
	if raw == nil || json.Unmarshal(raw, &nested) != nil {
		return ""
	}
	return nested.Value
}

// fetchJSON returns the raw "status" field of the response body, nil when the
// payload has none. Non-2xx responses other than 404 are transient errors;
// 404 means the endpoint shape does not exist on this gateway.
func (c *HTTPClient) fetchJSON(ctx context.Context, path string) (json.RawMessage, error) {
	endpoint := c.baseURL.ResolveReference(&url.URL{Path: path})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var payload struct {
			Status json.RawMessage `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("decode status response: %w", err)
		}
		return payload.Status, nil
	case resp.StatusCode == http.StatusNotFound:
		// Shape not supported by this gateway generation.
		return nil, nil
	default:
		return nil, fmt.Errorf("payment: gateway returned %d", resp.StatusCode)
	}
}
