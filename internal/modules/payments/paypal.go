package payments

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codenerix/payments/internal/config"
)

// PaypalAdapter implements the PayPal REST redirect protocol. PayPal has no
// server-to-server notification leg here: the browser confirmation is
// verified against the API and immediately executed.
type PaypalAdapter struct {
	cfg    *config.Config
	logger *slog.Logger

	// gateway lets tests replace the REST client.
	gateway func(platform config.Platform, live bool) paypalGateway
}

func NewPaypalAdapter(cfg *config.Config, logger *slog.Logger) *PaypalAdapter {
	return &PaypalAdapter{
		cfg:    cfg,
		logger: logger,
		gateway: func(platform config.Platform, live bool) paypalGateway {
			return newPaypalClient(platform.ID, platform.Secret, live)
		},
	}
}

func (a *PaypalAdapter) Protocol() string { return config.ProtocolPaypal }

// CreateRequest registers an intent=sale payment. The serialized request is
// returned for audit even when PayPal refuses it.
func (a *PaypalAdapter) CreateRequest(ctx context.Context, pr *PaymentRequest) (CreateResult, error) {
	platform, ok := a.cfg.Platform(pr.Platform)
	if !ok {
		return CreateResult{}, newError(CodeUnknownPlatform, "Platform '%s' not configured in your system", pr.Platform)
	}

	baseURL := a.cfg.Meta.URL
	request := paypalPaymentRequest{
		Intent: "sale",
		Payer:  paypalPayer{PaymentMethod: "paypal"},
		RedirectURLs: paypalRedirectURLs{
			ReturnURL: ReturnURL(baseURL, pr.Reverse, pr.Locator, ActionConfirm),
			CancelURL: ReturnURL(baseURL, pr.Reverse, pr.Locator, ActionCancel),
		},
		Transactions: []paypalTransaction{{
			InvoiceNumber: pr.OrderRef,
			Description:   pr.Notes,
			Amount: paypalAmount{
				Total:    pr.Total.String(),
				Currency: strings.ToUpper(pr.Currency.ISO4217),
			},
		}},
	}

	res := CreateResult{RequestDate: time.Now()}
	res.Request, _ = json.Marshal(request)

	raw, payment, err := a.gateway(platform, pr.Real).Create(ctx, request)
	res.AnswerDate = time.Now()
	if err != nil {
		a.logger.Error("paypal create failed", "locator", pr.Locator, "error", err)
		if len(raw) > 0 {
			return res, newError(CodeNotApproved, "%s", raw)
		}
		return res, newError(CodeNotApproved, "%v", err)
	}

	res.Answer = raw
	res.Ref = payment.ID
	return res, nil
}

// Approval extracts the approval_url link from the stored create answer.
func (a *PaypalAdapter) Approval(pr *PaymentRequest) (Approval, error) {
	var answer struct {
		Links []paypalLink `json:"links"`
	}
	if err := json.Unmarshal(pr.Answer, &answer); err != nil {
		return Approval{}, err
	}
	for _, link := range answer.Links {
		if link.Rel == "approval_url" {
			return Approval{URL: link.Href}, nil
		}
	}
	return Approval{}, nil
}

// verify cross-checks a located payment against the stored request and the
// payer reference the browser returned with.
func (a *PaypalAdapter) verify(pr *PaymentRequest, payment *paypalPayment, payerID string) *PaymentError {
	if payment.State != "created" {
		a.logger.Error("payment not ready", "locator", pr.Locator, "state", payment.State)
		return newError(CodeNotApproved,
			"Payment is not ready for confirmation, status is '%s' and it should be 'created'", payment.State)
	}
	if len(payment.Transactions) == 0 {
		a.logger.Error("payment carries no transactions", "locator", pr.Locator)
		return newError(CodeVerificationMismatch, "Missing info in your confirmation request")
	}

	amount := payment.Transactions[0].Amount
	remoteTotal, err := decimal.NewFromString(amount.Total)
	if err != nil || !remoteTotal.Equal(pr.Total) {
		a.logger.Error("total mismatch", "locator", pr.Locator, "our", pr.Total, "paypal", amount.Total)
		return newError(CodeVerificationMismatch, "Total does not match: our=%s paypal=%s", pr.Total, amount.Total)
	}
	if !strings.EqualFold(amount.Currency, pr.Currency.ISO4217) {
		a.logger.Error("currency mismatch", "locator", pr.Locator,
			"our", pr.Currency.ISO4217, "paypal", amount.Currency)
		return newError(CodeVerificationMismatch, "Currency does not match: our=%s paypal=%s",
			strings.ToUpper(pr.Currency.ISO4217), strings.ToUpper(amount.Currency))
	}
	if payment.Payer.Status != "VERIFIED" {
		a.logger.Error("payer not verified", "locator", pr.Locator, "status", payment.Payer.Status)
		return newError(CodeVerificationMismatch, "Payer hasn't been VERIFIED yet, it is %s", payment.Payer.Status)
	}
	if payment.Payer.PayerInfo.PayerID != payerID {
		a.logger.Error("payer id mismatch", "locator", pr.Locator,
			"our", payerID, "paypal", payment.Payer.PayerInfo.PayerID)
		return newError(CodeVerificationMismatch, "Wrong Payer ID: our=%s paypal=%s",
			payerID, payment.Payer.PayerInfo.PayerID)
	}
	return nil
}

// Confirm verifies the browser return leg against the REST API. A valid
// confirmation authorises capture, so the service must settle.
func (a *PaypalAdapter) Confirm(ctx context.Context, pr *PaymentRequest, in ConfirmInput) (ConfirmResult, error) {
	paymentID := in.Data.Get("paymentId")
	payerID := in.Data.Get("PayerID")
	if paymentID == "" || payerID == "" {
		var missing []string
		if paymentID == "" {
			missing = append(missing, "Missing paymentId")
		}
		if payerID == "" {
			missing = append(missing, "Missing PayerId")
		}
		a.logger.Error("incomplete confirmation", "locator", pr.Locator, "missing", missing)
		return ConfirmResult{}, newError(CodeMissingInformation,
			"Missing information in data: %s", strings.Join(missing, ", "))
	}

	platform, ok := a.cfg.Platform(pr.Platform)
	if !ok {
		return ConfirmResult{}, newError(CodeUnknownPlatform, "Platform '%s' not configured in your system", pr.Platform)
	}

	payment, err := a.gateway(platform, pr.Real).Find(ctx, paymentID)
	if err != nil || payment == nil {
		a.logger.Error("payment not found", "locator", pr.Locator, "payment_id", paymentID)
		return ConfirmResult{}, newError(CodeNotFound, "Payment not found!")
	}

	if perr := a.verify(pr, payment, payerID); perr != nil {
		return ConfirmResult{}, perr
	}

	return ConfirmResult{Ref: payerID, Settle: true}, nil
}

// Cancel has no gateway side effects: an unexecuted payment simply expires.
func (a *PaypalAdapter) Cancel(ctx context.Context, pr *PaymentRequest) error { return nil }

// Execute captures the funds of a confirmed payment: the payment is located
// again, re-verified and then executed for the payer.
func (a *PaypalAdapter) Execute(ctx context.Context, pr *PaymentRequest, payerRef string) (CreateResult, error) {
	platform, ok := a.cfg.Platform(pr.Platform)
	if !ok {
		return CreateResult{}, newError(CodeUnknownPlatform, "Platform '%s' not configured in your system", pr.Platform)
	}
	if pr.Ref == nil || *pr.Ref == "" {
		return CreateResult{}, newError(CodeNotFound, "Payment not found!")
	}

	gw := a.gateway(platform, pr.Real)
	payment, err := gw.Find(ctx, *pr.Ref)
	if err != nil || payment == nil {
		a.logger.Error("payment not found", "locator", pr.Locator, "payment_id", *pr.Ref)
		return CreateResult{}, newError(CodeNotFound, "Payment not found!")
	}

	if perr := a.verify(pr, payment, payerRef); perr != nil {
		return CreateResult{}, perr
	}

	res := CreateResult{RequestDate: time.Now()}
	res.Request, _ = json.Marshal(map[string]string{"payer_id": payerRef})

	raw, err := gw.Execute(ctx, *pr.Ref, payerRef)
	res.AnswerDate = time.Now()
	if err != nil {
		a.logger.Error("paypal execute failed", "locator", pr.Locator, "error", err)
		if len(raw) > 0 {
			return res, newError(CodeNotApproved, "%s", raw)
		}
		return res, newError(CodeNotApproved, "%v", err)
	}

	res.Answer = raw
	res.Ref = *pr.Ref
	return res, nil
}

// Success is never reached for PayPal: settlement happens during the
// confirmation leg.
func (a *PaypalAdapter) Success(ctx context.Context, pr *PaymentRequest, data url.Values) SuccessResult {
	return SuccessResult{Err: newError(CodeUnknownProtocol, "Unknown protocol 'paypal'")}
}
