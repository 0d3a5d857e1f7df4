package payments

import (
	"context"
	"crypto/rsa"
	"encoding/json"
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

type fakeYOPGateway struct {
	api    string
	params map[string]string
	answer map[string]any
	err    error
}

func (f *fakeYOPGateway) Post(ctx context.Context, api string, params map[string]string) (map[string]any, error) {
	f.api = api
	f.params = params
	return f.answer, f.err
}

type yeepayFixture struct {
	adapter      *YeepayAdapter
	gateway      *fakeYOPGateway
	merchantPriv *rsa.PrivateKey
	gatewayPriv  *rsa.PrivateKey
}

func newYeepayFixture(t *testing.T) *yeepayFixture {
	t.Helper()

	merchantPriv, merchantPrivB64, _ := testRSAKey(t)
	gatewayPriv, _, gatewayPubB64 := testRSAKey(t)

	cfg := &config.Config{
		Meta: config.Meta{URL: "http://pay.example.com", Debug: true},
		Platforms: map[string]config.Platform{
			"yeepay_cn": {
				Protocol:       config.ProtocolYeepay,
				AppKey:         "app_10012345",
				MerchantNumber: "10012345",
				PrivateKey:     merchantPrivB64,
				PublicKey:      gatewayPubB64,
				Endpoint:       "https://openapi.yeepay.com",
			},
		},
	}

	gw := &fakeYOPGateway{}
	adapter := NewYeepayAdapter(cfg, slog.Default())
	adapter.gateway = func(platform config.Platform) (yeepayGateway, error) { return gw, nil }

	return &yeepayFixture{adapter: adapter, gateway: gw, merchantPriv: merchantPriv, gatewayPriv: gatewayPriv}
}

func yeepayTestPayment() *PaymentRequest {
	return &PaymentRequest{
		ID:       9,
		Locator:  "cafebabe",
		Platform: "yeepay_cn",
		Protocol: config.ProtocolYeepay,
		OrderRef: "0000009",
		Reverse:  ReverseAutorender,
		Total:    decimal.RequireFromString("50.00"),
		Currency: currencies.Currency{ISO4217: "EUR"},
	}
}

// notification seals an info payload the way the gateway does.
func (f *yeepayFixture) notification(t *testing.T, info map[string]any) url.Values {
	t.Helper()

	raw, err := json.Marshal(info)
	require.NoError(t, err)

	envelope := &YeepayEnvelope{Private: f.merchantPriv, Public: &f.gatewayPriv.PublicKey}
	sealed, err := envelope.Encrypt(string(raw), f.gatewayPriv, &f.merchantPriv.PublicKey)
	require.NoError(t, err)

	data := url.Values{}
	data.Set("customerIdentification", "app_10012345")
	data.Set("response", sealed)
	return data
}

func TestYeepayCreateRequest(t *testing.T) {
	f := newYeepayFixture(t)
	f.gateway.answer = map[string]any{
		"result": map[string]any{"code": "00000", "uniqueOrderNo": "UO42", "cashierUrl": "https://cash.yeepay.com/x"},
	}

	res, err := f.adapter.CreateRequest(context.Background(), yeepayTestPayment())
	require.NoError(t, err)
	assert.Equal(t, "UO42", res.Ref)
	assert.Equal(t, yeepayOrderAPI, f.gateway.api)
	assert.Equal(t, "0000009", f.gateway.params["orderId"])
	assert.Equal(t, "50", f.gateway.params["orderAmount"])
	assert.Equal(t, "10012345", f.gateway.params["merchantNo"])
	assert.Equal(t, "http://pay.example.com/payments/action/cafebabe/success", f.gateway.params["notifyUrl"])
}

func TestYeepayCreateRequestRefused(t *testing.T) {
	f := newYeepayFixture(t)
	f.gateway.answer = map[string]any{
		"result": map[string]any{"code": "10001", "message": "参数错误"},
	}

	res, err := f.adapter.CreateRequest(context.Background(), yeepayTestPayment())
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotApproved, pe.Code)
	// Request and answer blobs survive for the audit columns.
	assert.NotNil(t, res.Request)
	assert.NotNil(t, res.Answer)
}

func TestYeepayConfirmVerifiesSignature(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	signed := "orderId=0000009&status=SUCCESS"
	signature, err := SignRSA(signed, f.gatewayPriv)
	require.NoError(t, err)

	rawQuery := signed + "&sign=" + signature + "$SHA256"
	data, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)

	res, err := f.adapter.Confirm(context.Background(), pr, ConfirmInput{Data: data, RawQuery: rawQuery})
	require.NoError(t, err)
	assert.True(t, res.RequireSettled)
}

func TestYeepayConfirmRejectsBadSignature(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	rawQuery := "orderId=0000009&status=SUCCESS&sign=bm90LXNpZ25lZA$SHA256"
	data, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)

	_, err = f.adapter.Confirm(context.Background(), pr, ConfirmInput{Data: data, RawQuery: rawQuery})
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnknownProtocol, pe.Code)
	assert.Equal(t, "Invalid sign", pe.Msg)
}

func TestYeepayConfirmUnsigned(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	_, err := f.adapter.Confirm(context.Background(), pr, ConfirmInput{Data: url.Values{}, RawQuery: "orderId=0000009"})
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, "Not signed", pe.Msg)
}

func TestYeepaySuccessSettles(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	data := f.notification(t, map[string]any{
		"merchantNo":    "10012345",
		"orderAmount":   "50.00",
		"uniqueOrderNo": "UO42",
		"orderId":       "0000009",
		"status":        "SUCCESS",
	})

	res := f.adapter.Success(context.Background(), pr, data)
	require.Nil(t, res.Err)
	assert.Equal(t, "UO42", res.Ref)
	assert.NotNil(t, res.Request)
}

func TestYeepaySuccessDeclined(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	data := f.notification(t, map[string]any{"retCode": "1123"})

	res := f.adapter.Success(context.Background(), pr, data)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeNotApproved, res.Err.Code)
	assert.Equal(t, "1123", res.Ref)
	assert.Equal(t, "该卡已过期", res.Err.Msg)
}

func TestYeepaySuccessVerificationMismatches(t *testing.T) {
	base := map[string]any{
		"merchantNo":    "10012345",
		"orderAmount":   "50.00",
		"uniqueOrderNo": "UO42",
		"orderId":       "0000009",
		"status":        "SUCCESS",
	}

	tests := []struct {
		name  string
		field string
		value any
		msg   string
	}{
		{"wrong order", "orderId", "0000042", "orderId invalid"},
		{"wrong merchant", "merchantNo", "999", "merchantNo invalid"},
		{"not success", "status", "FAIL", "Status is not 'SUCCESS'"},
		{"wrong amount", "orderAmount", "49.99", "Amount invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newYeepayFixture(t)
			pr := yeepayTestPayment()

			info := make(map[string]any, len(base))
			for k, v := range base {
				info[k] = v
			}
			info[tt.field] = tt.value

			res := f.adapter.Success(context.Background(), pr, f.notification(t, info))
			require.NotNil(t, res.Err)
			assert.Equal(t, CodeVerificationMismatch, res.Err.Code)
			assert.Equal(t, tt.msg, res.Err.Msg)
		})
	}
}

func TestYeepaySuccessUnknownCustomer(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	data := f.notification(t, map[string]any{"retCode": "1123"})
	data.Set("customerIdentification", "somebody_else")

	res := f.adapter.Success(context.Background(), pr, data)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeVerificationMismatch, res.Err.Code)
}

func TestYeepaySuccessNotJSON(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	envelope := &YeepayEnvelope{Private: f.merchantPriv, Public: &f.gatewayPriv.PublicKey}
	sealed, err := envelope.Encrypt("this is not json", f.gatewayPriv, &f.merchantPriv.PublicKey)
	require.NoError(t, err)

	data := url.Values{}
	data.Set("customerIdentification", "app_10012345")
	data.Set("response", sealed)

	res := f.adapter.Success(context.Background(), pr, data)
	require.NotNil(t, res.Err)
	assert.Equal(t, CodeMalformedRequest, res.Err.Code)
	assert.NotNil(t, res.Request)
}

func TestYeepayCancelClosesRemoteOrder(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()
	pr.Answer = datatypes.JSON(`{"result":{"uniqueOrderNo":"UO42"}}`)

	f.gateway.answer = map[string]any{
		"result": map[string]any{"code": "OPR0000", "message": "成功"},
	}
	require.NoError(t, f.adapter.Cancel(context.Background(), pr))
	assert.Equal(t, yeepayCloseAPI, f.gateway.api)
	assert.Equal(t, "UO42", f.gateway.params["uniqueOrderNo"])
}

func TestYeepayCancelWithoutRemoteOrder(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()

	// No order was ever opened, so there is nothing to close.
	require.NoError(t, f.adapter.Cancel(context.Background(), pr))
	assert.Empty(t, f.gateway.api)
}

func TestYeepayCancelRefused(t *testing.T) {
	f := newYeepayFixture(t)
	pr := yeepayTestPayment()
	pr.Answer = datatypes.JSON(`{"result":{"uniqueOrderNo":"UO42"}}`)

	f.gateway.answer = map[string]any{
		"result": map[string]any{"code": "OPR9999", "message": "订单不存在"},
	}
	err := f.adapter.Cancel(context.Background(), pr)
	pe, ok := AsPaymentError(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnknownProtocol, pe.Code)
}
