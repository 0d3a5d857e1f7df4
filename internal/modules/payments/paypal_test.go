package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/modules/currencies"
)

type fakePaypalGateway struct {
	createRaw     json.RawMessage
	createPayment *paypalPayment
	createErr     error

	findPayment *paypalPayment
	findErr     error

	executeRaw json.RawMessage
	executeErr error

	executedPaymentID string
	executedPayerID   string
}

func (f *fakePaypalGateway) Create(ctx context.Context, request paypalPaymentRequest) (json.RawMessage, *paypalPayment, error) {
	return f.createRaw, f.createPayment, f.createErr
}

func (f *fakePaypalGateway) Find(ctx context.Context, paymentID string) (*paypalPayment, error) {
	return f.findPayment, f.findErr
}

func (f *fakePaypalGateway) Execute(ctx context.Context, paymentID, payerID string) (json.RawMessage, error) {
	f.executedPaymentID = paymentID
	f.executedPayerID = payerID
	return f.executeRaw, f.executeErr
}

func newPaypalFixture(gw *fakePaypalGateway) *PaypalAdapter {
	cfg := &config.Config{
		Meta: config.Meta{URL: "http://pay.example.com", Debug: true},
		Platforms: map[string]config.Platform{
			"paypal_eu": {Protocol: config.ProtocolPaypal, ID: "client-id", Secret: "client-secret"},
		},
	}
	adapter := NewPaypalAdapter(cfg, slog.Default())
	adapter.gateway = func(platform config.Platform, live bool) paypalGateway { return gw }
	return adapter
}

func paypalTestPayment() *PaymentRequest {
	ref := "PAY-123"
	return &PaymentRequest{
		ID:       11,
		Locator:  "feedface",
		Platform: "paypal_eu",
		Protocol: config.ProtocolPaypal,
		OrderRef: "000000B",
		Reverse:  ReverseAutorender,
		Ref:      &ref,
		Total:    decimal.RequireFromString("50.00"),
		Currency: currencies.Currency{ISO4217: "EUR"},
	}
}

// verifiablePayment is a remote payment that passes every verification check
// against paypalTestPayment.
func verifiablePayment() *paypalPayment {
	p := &paypalPayment{
		ID:    "PAY-123",
		State: "created",
		Payer: paypalPayer{PaymentMethod: "paypal", Status: "VERIFIED"},
		Transactions: []paypalTransaction{{
			Amount: paypalAmount{Total: "50.00", Currency: "EUR"},
		}},
	}
	p.Payer.PayerInfo.PayerID = "PAYER-7"
	return p
}

func TestPaypalCreateRequest(t *testing.T) {
	gw := &fakePaypalGateway{
		createRaw: json.RawMessage(`{"id":"PAY-123","state":"created"}`),
		createPayment: &paypalPayment{ID: "PAY-123", State: "created"},
	}
	adapter := newPaypalFixture(gw)

	res, err := adapter.CreateRequest(context.Background(), paypalTestPayment())
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", res.Ref)

	var request paypalPaymentRequest
	require.NoError(t, json.Unmarshal(res.Request, &request))
	assert.Equal(t, "sale", request.Intent)
	assert.Equal(t, "50", request.Transactions[0].Amount.Total)
	assert.Equal(t, "EUR", request.Transactions[0].Amount.Currency)
	assert.Equal(t, "http://pay.example.com/payments/action/feedface/confirm", request.RedirectURLs.ReturnURL)
	assert.Equal(t, "http://pay.example.com/payments/action/feedface/cancel", request.RedirectURLs.CancelURL)
}

func TestPaypalCreateRequestRefused(t *testing.T) {
	gw := &fakePaypalGateway{
		createRaw: json.RawMessage(`{"name":"VALIDATION_ERROR"}`),
		createErr: errors.New("status 400"),
	}
	adapter := newPaypalFixture(gw)

	res, err := adapter.CreateRequest(context.Background(), paypalTestPayment())
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotApproved, pe.Code)
	assert.Contains(t, pe.Msg, "VALIDATION_ERROR")
	assert.NotNil(t, res.Request)
}

func TestPaypalApprovalURL(t *testing.T) {
	adapter := newPaypalFixture(&fakePaypalGateway{})
	pr := paypalTestPayment()
	pr.Answer = datatypes.JSON(`{"links":[
		{"href":"https://api.sandbox.paypal.com/v1/payments/payment/PAY-123","rel":"self"},
		{"href":"https://www.sandbox.paypal.com/cgi-bin/webscr?cmd=_express-checkout","rel":"approval_url"}
	]}`)

	approval, err := adapter.Approval(pr)
	require.NoError(t, err)
	assert.Contains(t, approval.URL, "_express-checkout")
	assert.Empty(t, approval.Form)
}

func TestPaypalConfirmSettles(t *testing.T) {
	gw := &fakePaypalGateway{findPayment: verifiablePayment()}
	adapter := newPaypalFixture(gw)

	data := url.Values{}
	data.Set("paymentId", "PAY-123")
	data.Set("PayerID", "PAYER-7")

	res, err := adapter.Confirm(context.Background(), paypalTestPayment(), ConfirmInput{Data: data})
	require.NoError(t, err)
	assert.True(t, res.Settle)
	assert.Equal(t, "PAYER-7", res.Ref)
	assert.False(t, res.RequireSettled)
}

func TestPaypalConfirmMissingData(t *testing.T) {
	adapter := newPaypalFixture(&fakePaypalGateway{})

	_, err := adapter.Confirm(context.Background(), paypalTestPayment(), ConfirmInput{Data: url.Values{}})
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeMissingInformation, pe.Code)
	assert.Equal(t, "Missing information in data: Missing paymentId, Missing PayerId", pe.Msg)
}

func TestPaypalConfirmPaymentNotFound(t *testing.T) {
	gw := &fakePaypalGateway{findErr: errors.New("status 404")}
	adapter := newPaypalFixture(gw)

	data := url.Values{}
	data.Set("paymentId", "PAY-404")
	data.Set("PayerID", "PAYER-7")

	_, err := adapter.Confirm(context.Background(), paypalTestPayment(), ConfirmInput{Data: data})
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, pe.Code)
}

func TestPaypalConfirmVerificationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *paypalPayment)
		code   Code
	}{
		{"not created", func(p *paypalPayment) { p.State = "approved" }, CodeNotApproved},
		{"no transactions", func(p *paypalPayment) { p.Transactions = nil }, CodeVerificationMismatch},
		{"wrong total", func(p *paypalPayment) { p.Transactions[0].Amount.Total = "49.99" }, CodeVerificationMismatch},
		{"wrong currency", func(p *paypalPayment) { p.Transactions[0].Amount.Currency = "USD" }, CodeVerificationMismatch},
		{"payer unverified", func(p *paypalPayment) { p.Payer.Status = "UNVERIFIED" }, CodeVerificationMismatch},
		{"wrong payer", func(p *paypalPayment) { p.Payer.PayerInfo.PayerID = "PAYER-9" }, CodeVerificationMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payment := verifiablePayment()
			tt.mutate(payment)
			adapter := newPaypalFixture(&fakePaypalGateway{findPayment: payment})

			data := url.Values{}
			data.Set("paymentId", "PAY-123")
			data.Set("PayerID", "PAYER-7")

			_, err := adapter.Confirm(context.Background(), paypalTestPayment(), ConfirmInput{Data: data})
			pe, ok := AsPaymentError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestPaypalExecuteCaptures(t *testing.T) {
	gw := &fakePaypalGateway{
		findPayment: verifiablePayment(),
		executeRaw:  json.RawMessage(`{"id":"PAY-123","state":"approved"}`),
	}
	adapter := newPaypalFixture(gw)

	res, err := adapter.Execute(context.Background(), paypalTestPayment(), "PAYER-7")
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", res.Ref)
	assert.Equal(t, "PAY-123", gw.executedPaymentID)
	assert.Equal(t, "PAYER-7", gw.executedPayerID)
	assert.JSONEq(t, `{"payer_id":"PAYER-7"}`, string(res.Request))
	assert.JSONEq(t, `{"id":"PAY-123","state":"approved"}`, string(res.Answer))
}

func TestPaypalExecuteWithoutRef(t *testing.T) {
	adapter := newPaypalFixture(&fakePaypalGateway{})
	pr := paypalTestPayment()
	pr.Ref = nil

	_, err := adapter.Execute(context.Background(), pr, "PAYER-7")
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, pe.Code)
}

func TestPaypalExecuteFailureKeepsAudit(t *testing.T) {
	gw := &fakePaypalGateway{
		findPayment: verifiablePayment(),
		executeRaw:  json.RawMessage(`{"name":"INSTRUMENT_DECLINED"}`),
		executeErr:  errors.New("status 400"),
	}
	adapter := newPaypalFixture(gw)

	res, err := adapter.Execute(context.Background(), paypalTestPayment(), "PAYER-7")
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotApproved, pe.Code)
	assert.Contains(t, pe.Msg, "INSTRUMENT_DECLINED")
	// The request blob is present so the service records the failed capture.
	assert.NotNil(t, res.Request)
}
