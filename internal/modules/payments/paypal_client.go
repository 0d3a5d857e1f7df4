package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	paypalLiveBase    = "https://api.paypal.com"
	paypalSandboxBase = "https://api.sandbox.paypal.com"
)

// paypalPayment is the slice of the REST payment resource the verification
// logic needs.
type paypalPayment struct {
	ID           string              `json:"id"`
	State        string              `json:"state"`
	Links        []paypalLink        `json:"links"`
	Payer        paypalPayer         `json:"payer"`
	Transactions []paypalTransaction `json:"transactions"`
}

type paypalLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type paypalPayer struct {
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status,omitempty"`
	PayerInfo     struct {
		PayerID string `json:"payer_id"`
	} `json:"payer_info,omitempty"`
}

type paypalTransaction struct {
	InvoiceNumber string       `json:"invoice_number,omitempty"`
	Description   string       `json:"description,omitempty"`
	Amount        paypalAmount `json:"amount"`
}

type paypalAmount struct {
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

// paypalPaymentRequest is the create payload for an intent=sale payment.
type paypalPaymentRequest struct {
	Intent       string              `json:"intent"`
	Payer        paypalPayer         `json:"payer"`
	RedirectURLs paypalRedirectURLs  `json:"redirect_urls"`
	Transactions []paypalTransaction `json:"transactions"`
}

type paypalRedirectURLs struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

// paypalGateway is the slice of the REST API the adapter needs. Tests swap
// in a fake.
type paypalGateway interface {
	Create(ctx context.Context, request paypalPaymentRequest) (json.RawMessage, *paypalPayment, error)
	Find(ctx context.Context, paymentID string) (*paypalPayment, error)
	Execute(ctx context.Context, paymentID, payerID string) (json.RawMessage, error)
}

// paypalClient talks to the PayPal REST v1 payments API with client
// credential tokens fetched per call batch.
type paypalClient struct {
	base   string
	id     string
	secret string
	http   *http.Client
}

func newPaypalClient(id, secret string, live bool) *paypalClient {
	base := paypalSandboxBase
	if live {
		base = paypalLiveBase
	}
	return &paypalClient{
		base:   base,
		id:     id,
		secret: secret,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *paypalClient) token(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.id, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token: status %d: %s", resp.StatusCode, body)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	return tok.AccessToken, nil
}

func (c *paypalClient) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("paypal %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, fmt.Errorf("paypal %s %s: status %d: %s", method, path, resp.StatusCode, raw)
	}
	return raw, nil
}

func (c *paypalClient) Create(ctx context.Context, request paypalPaymentRequest) (json.RawMessage, *paypalPayment, error) {
	raw, err := c.do(ctx, http.MethodPost, "/v1/payments/payment", request)
	if err != nil {
		return raw, nil, err
	}
	var payment paypalPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return raw, nil, fmt.Errorf("paypal create: decode: %w", err)
	}
	return raw, &payment, nil
}

func (c *paypalClient) Find(ctx context.Context, paymentID string) (*paypalPayment, error) {
	raw, err := c.do(ctx, http.MethodGet, "/v1/payments/payment/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	var payment paypalPayment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("paypal find: decode: %w", err)
	}
	return &payment, nil
}

func (c *paypalClient) Execute(ctx context.Context, paymentID, payerID string) (json.RawMessage, error) {
	payload := map[string]string{"payer_id": payerID}
	return c.do(ctx, http.MethodPost, "/v1/payments/payment/"+url.PathEscape(paymentID)+"/execute", payload)
}
