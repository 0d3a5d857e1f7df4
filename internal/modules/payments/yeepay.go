package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codenerix/payments/internal/config"
)

const (
	yeepayOrderAPI = "/rest/v1.0/cashier/unified/order"
	yeepayCloseAPI = "/rest/v1.0/trade/order/close"

	yeepayDefaultExpireMinutes = 120
)

// YeepayAdapter implements the Yeepay cashier protocol: orders are opened
// through the YOP API, the payer pays at the hosted cashier and settlement
// arrives as an RSA digital envelope on the notification endpoint.
type YeepayAdapter struct {
	cfg    *config.Config
	logger *slog.Logger

	// gateway lets tests replace the YOP client.
	gateway func(platform config.Platform) (yeepayGateway, error)
}

func NewYeepayAdapter(cfg *config.Config, logger *slog.Logger) *YeepayAdapter {
	return &YeepayAdapter{
		cfg:    cfg,
		logger: logger,
		gateway: func(platform config.Platform) (yeepayGateway, error) {
			private, err := ParseYeepayPrivateKey(platform.PrivateKey)
			if err != nil {
				return nil, err
			}
			return newYOPClient(platform.AppKey, platform.Endpoint, private), nil
		},
	}
}

func (a *YeepayAdapter) Protocol() string { return config.ProtocolYeepay }

func (a *YeepayAdapter) platform(pr *PaymentRequest) (config.Platform, *PaymentError) {
	platform, ok := a.cfg.Platform(pr.Platform)
	if !ok {
		return config.Platform{}, newError(CodeUnknownPlatform, "Platform '%s' not configured in your system", pr.Platform)
	}
	return platform, nil
}

// CreateRequest opens a cashier order. The request and the raw gateway
// answer are always returned for audit, even when the order is refused.
func (a *YeepayAdapter) CreateRequest(ctx context.Context, pr *PaymentRequest) (CreateResult, error) {
	platform, perr := a.platform(pr)
	if perr != nil {
		return CreateResult{}, perr
	}

	expireMinutes := platform.ExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = yeepayDefaultExpireMinutes
	}
	expire := time.Now().Add(time.Duration(expireMinutes) * time.Minute)

	baseURL := a.cfg.Meta.URL
	request := map[string]string{
		"parentMerchantNo": platform.MerchantNumber,
		"merchantNo":       platform.MerchantNumber,
		"orderId":          pr.OrderRef,
		"orderAmount":      pr.Total.String(),
		"goodsName":        pr.Notes,
		"fundProcessType":  "REAL_TIME",
		"notifyUrl":        ReturnURL(baseURL, ReverseAutorender, pr.Locator, ActionSuccess),
		"expiredTime":      expire.Format(time.RFC3339),
		"returnUrl":        ReturnURL(baseURL, pr.Reverse, pr.Locator, ActionConfirm),
		"aggParam":         `{"scene":{"WECHAT":"XIANXIA"}}`,
	}

	res := CreateResult{RequestDate: time.Now()}
	res.Request, _ = json.Marshal(request)

	gw, err := a.gateway(platform)
	if err != nil {
		res.AnswerDate = time.Now()
		return res, err
	}

	answer, err := gw.Post(ctx, yeepayOrderAPI, request)
	res.AnswerDate = time.Now()
	if err != nil {
		a.logger.Error("yeepay order failed", "locator", pr.Locator, "error", err)
		return res, fmt.Errorf("yeepay order: %w", err)
	}

	res.Answer, _ = json.Marshal(answer)

	result, _ := answer["result"].(map[string]any)
	if result == nil {
		return res, newError(CodeNotApproved, "Yeepay answer carries no result: %s", res.Answer)
	}
	code, _ := result["code"].(string)
	orderNo, _ := result["uniqueOrderNo"].(string)
	if code != "00000" || orderNo == "" {
		return res, newError(CodeNotApproved, "Yeepay order refused: %s", res.Answer)
	}

	res.Ref = orderNo
	return res, nil
}

// Approval points the payer at the hosted cashier URL returned during order
// creation.
func (a *YeepayAdapter) Approval(pr *PaymentRequest) (Approval, error) {
	var answer struct {
		Result struct {
			CashierURL string `json:"cashierUrl"`
		} `json:"result"`
	}
	if err := json.Unmarshal(pr.Answer, &answer); err != nil {
		return Approval{}, fmt.Errorf("yeepay approval: %w", err)
	}
	return Approval{URL: answer.Result.CashierURL}, nil
}

// Confirm verifies the signed browser return: the signature covers the raw
// query string up to the sign parameter and must check against the platform
// public key. A valid confirmation still needs a settled answer.
func (a *YeepayAdapter) Confirm(ctx context.Context, pr *PaymentRequest, in ConfirmInput) (ConfirmResult, error) {
	signature, _, _ := strings.Cut(in.Data.Get("sign"), "$")
	if signature == "" {
		a.logger.Error("unsigned confirmation", "locator", pr.Locator)
		return ConfirmResult{}, newError(CodeUnknownProtocol, "Not signed")
	}

	pos := strings.Index(in.RawQuery, "&sign=")
	if pos < 0 {
		a.logger.Error("sign parameter missing from query", "locator", pr.Locator)
		return ConfirmResult{}, newError(CodeUnknownProtocol, "Invalid sign")
	}
	signed := in.RawQuery[:pos]

	platform, perr := a.platform(pr)
	if perr != nil {
		return ConfirmResult{}, perr
	}
	public, err := ParseYeepayPublicKey(platform.PublicKey)
	if err != nil {
		return ConfirmResult{}, err
	}

	if !VerifyRSA(signed, signature, public) {
		a.logger.Error("invalid confirmation signature", "locator", pr.Locator)
		return ConfirmResult{}, newError(CodeUnknownProtocol, "Invalid sign")
	}

	return ConfirmResult{RequireSettled: true}, nil
}

// Cancel closes the remote order when one was opened. The caller cancels
// locally whatever happens here.
func (a *YeepayAdapter) Cancel(ctx context.Context, pr *PaymentRequest) error {
	var answer struct {
		Result struct {
			UniqueOrderNo string `json:"uniqueOrderNo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(pr.Answer, &answer); err != nil || answer.Result.UniqueOrderNo == "" {
		return nil
	}

	platform, perr := a.platform(pr)
	if perr != nil {
		return perr
	}

	request := map[string]string{
		"orderId":          pr.OrderRef,
		"uniqueOrderNo":    answer.Result.UniqueOrderNo,
		"parentMerchantNo": platform.MerchantNumber,
		"merchantNo":       platform.MerchantNumber,
	}

	gw, err := a.gateway(platform)
	if err != nil {
		return err
	}

	closeAnswer, err := gw.Post(ctx, yeepayCloseAPI, request)
	if err != nil {
		a.logger.Error("yeepay close failed", "locator", pr.Locator, "error", err)
		return fmt.Errorf("yeepay close: %w", err)
	}

	result, _ := closeAnswer["result"].(map[string]any)
	code, _ := result["code"].(string)
	message, _ := result["message"].(string)
	if code != "OPR0000" || message != "成功" {
		a.logger.Error("yeepay close refused", "locator", pr.Locator, "code", code, "message", message)
		return newError(CodeUnknownProtocol, "Yeepay cancel error: code=%s message=%s", code, message)
	}
	return nil
}

func (a *YeepayAdapter) Execute(ctx context.Context, pr *PaymentRequest, payerRef string) (CreateResult, error) {
	return CreateResult{}, newError(CodeNotApproved, "Protocol 'yeepay' does not execute payments")
}

// Success opens the digital envelope of a notification and cross-checks its
// fields against the stored request.
func (a *YeepayAdapter) Success(ctx context.Context, pr *PaymentRequest, data url.Values) SuccessResult {
	customerID := data.Get("customerIdentification")
	response := data.Get("response")
	if customerID == "" || response == "" {
		var missing []string
		if customerID == "" {
			missing = append(missing, "customerIdentification")
		}
		if response == "" {
			missing = append(missing, "response")
		}
		a.logger.Error("incomplete notification", "locator", pr.Locator, "missing", missing)
		return SuccessResult{Err: newError(CodeMissingInformation,
			"Missing information in data: %s", strings.Join(missing, ", "))}
	}

	platform, perr := a.platform(pr)
	if perr != nil {
		return SuccessResult{Err: perr}
	}

	if customerID != platform.AppKey {
		a.logger.Error("unknown customer id", "locator", pr.Locator, "customer", customerID)
		return SuccessResult{Err: newError(CodeVerificationMismatch, "Customer id unknown")}
	}

	private, err := ParseYeepayPrivateKey(platform.PrivateKey)
	if err != nil {
		return SuccessResult{Err: newError(CodeSignatureInvalid, "Decryption error")}
	}
	public, err := ParseYeepayPublicKey(platform.PublicKey)
	if err != nil {
		return SuccessResult{Err: newError(CodeSignatureInvalid, "Decryption error")}
	}

	envelope := &YeepayEnvelope{Private: private, Public: public}
	infoTxt, err := envelope.Decrypt(response)
	if err != nil {
		a.logger.Error("envelope decryption failed", "locator", pr.Locator, "error", err)
		return SuccessResult{Err: newError(CodeSignatureInvalid, "Decryption error")}
	}

	var info map[string]any
	if err := json.Unmarshal([]byte(infoTxt), &info); err != nil || info == nil {
		a.logger.Error("notification payload is not JSON", "locator", pr.Locator)
		raw, _ := json.Marshal(map[string]any{"customerIdentification": customerID, "response": infoTxt})
		return SuccessResult{Request: raw, Err: newError(CodeMalformedRequest, "Data is not JSON")}
	}

	raw, _ := json.Marshal(map[string]any{"customerIdentification": customerID, "response": info})
	res := SuccessResult{Request: raw}

	if errorcode, _ := info["retCode"].(string); errorcode != "" {
		a.logger.Error("operation declined", "locator", pr.Locator, "code", errorcode)
		res.Ref = errorcode
		res.Extra = map[string]any{"errorcode": errorcode}
		res.Err = newError(CodeNotApproved, "%s", YeepayError(errorcode))
		return res
	}

	for _, field := range []string{"merchantNo", "orderAmount", "uniqueOrderNo", "orderId", "status"} {
		if _, ok := info[field]; !ok {
			a.logger.Error("missing field in notification", "locator", pr.Locator, "field", field)
			res.Err = newError(CodeVerificationMismatch, "Missing %s in your confirmation request", field)
			return res
		}
	}

	merchantNo := fmt.Sprint(info["merchantNo"])
	orderID := fmt.Sprint(info["orderId"])
	status := fmt.Sprint(info["status"])
	uniqueOrder := fmt.Sprint(info["uniqueOrderNo"])
	amount, amountErr := decimal.NewFromString(fmt.Sprint(info["orderAmount"]))

	switch {
	case orderID != pr.OrderRef:
		a.logger.Error("orderId mismatch", "locator", pr.Locator, "remote", orderID, "local", pr.OrderRef)
		res.Err = newError(CodeVerificationMismatch, "orderId invalid")
	case merchantNo != platform.MerchantNumber:
		a.logger.Error("merchantNo mismatch", "locator", pr.Locator, "remote", merchantNo)
		res.Err = newError(CodeVerificationMismatch, "merchantNo invalid")
	case status != "SUCCESS":
		a.logger.Error("status not SUCCESS", "locator", pr.Locator, "status", status)
		res.Err = newError(CodeVerificationMismatch, "Status is not 'SUCCESS'")
	case amountErr != nil || !amount.Equal(pr.Total):
		a.logger.Error("amount mismatch", "locator", pr.Locator, "remote", info["orderAmount"], "local", pr.Total)
		res.Err = newError(CodeVerificationMismatch, "Amount invalid")
	case uniqueOrder == "":
		a.logger.Error("uniqueOrderNo empty", "locator", pr.Locator)
		res.Err = newError(CodeVerificationMismatch, "uniqueOrderNo empty")
	default:
		res.Ref = uniqueOrder
	}
	return res
}
