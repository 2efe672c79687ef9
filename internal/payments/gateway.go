package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// ChargeRequest asks the Pix gateway for a payable reference tied to a
// correlation token. The token comes back on the payment webhook as
// externalReference.
type ChargeRequest struct {
	AmountCents      int64
	Description      string
	CorrelationToken string
	ExpiresAt        time.Time
}

// Charge is the payable reference the consumer uses to pay.
type Charge struct {
	TransactionID string
	QRCode        string
	CopyPaste     string
}

// Client calls the Asaas-style static QR endpoint. Every call carries a
// bounded timeout; a circuit breaker keeps a flapping gateway from tying up
// reservation requests.
type Client struct {
	baseURL    string
	apiKey     string
	addressKey string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, addressKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		addressKey: addressKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "pix-gateway"}),
	}
}

type chargeRequestBody struct {
	AddressKey        string  `json:"addressKey"`
	Value             float64 `json:"value"`
	Description       string  `json:"description"`
	ExpirationDate    string  `json:"expirationDate"`
	ExternalReference string  `json:"externalReference"`
}

type chargeResponseBody struct {
	EncodedImage string `json:"encodedImage"`
	Payload      string `json:"payload"`
	ID           string `json:"id"`
}

func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.createCharge(ctx, req)
	})
	if err != nil {
		return Charge{}, err
	}
	return result.(Charge), nil
}

func (c *Client) createCharge(ctx context.Context, req ChargeRequest) (Charge, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chargeRequestBody{
		AddressKey:        c.addressKey,
		Value:             float64(req.AmountCents) / 100,
		Description:       req.Description,
		ExpirationDate:    req.ExpiresAt.UTC().Format(time.RFC3339),
		ExternalReference: req.CorrelationToken,
	})
	if err != nil {
		return Charge{}, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v3/pix/qrCodes/static", bytes.NewReader(body))
	if err != nil {
		return Charge{}, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("access_token", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Charge{}, fmt.Errorf("call pix gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Charge{}, fmt.Errorf("pix gateway status %d: %s", resp.StatusCode, snippet)
	}

	var parsed chargeResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Charge{}, fmt.Errorf("decode gateway response: %w", err)
	}

	return Charge{
		TransactionID: parsed.ID,
		QRCode:        parsed.EncodedImage,
		CopyPaste:     parsed.Payload,
	}, nil
}
