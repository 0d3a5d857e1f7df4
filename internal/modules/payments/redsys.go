package payments

import (
	"bytes"
	"context"
	"crypto/cipher"
	"crypto/des" //nolint:gosec // mandated by the Redsys HMAC_SHA256_V1 scheme
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codenerix/payments/internal/config"
)

const (
	redsysLiveEndpoint = "https://sis.redsys.es/sis/realizarPago"
	redsysTestEndpoint = "https://sis-t.redsys.es:25443/sis/realizarPago"

	redsysSignatureVersion = "HMAC_SHA256_V1"
)

// redsysCurrencies maps ISO 4217 alpha codes to the numeric codes the SIS
// interface expects.
var redsysCurrencies = map[string]string{
	"EUR": "978",
	"USD": "840",
	"GBP": "826",
	"JPY": "392",
	"CHF": "756",
	"CAD": "124",
}

// RedsysSignature implements the HMAC_SHA256_V1 merchant signature: the
// order reference is null padded and 3DES-CBC encrypted (zero IV) under the
// merchant key, the result keys an HMAC-SHA256 over the Base64 parameter
// blob. When the order length is already a multiple of 8 a full padding
// block is appended; the SIS endpoint computes it the same way, so the shape
// must be preserved.
func RedsysSignature(authKey []byte, orderRef, paramsB64 string, recode bool) (string, error) {
	block, err := des.NewTripleDESCipher(tripleDESKey(authKey)) //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("redsys signature: %w", err)
	}

	padLen := 8 - len(orderRef)%8
	padded := append([]byte(orderRef), bytes.Repeat([]byte{0}, padLen)...)

	opKey := make([]byte, len(padded))
	iv := make([]byte, des.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(opKey, padded)

	mac := hmac.New(sha256.New, opKey)
	mac.Write([]byte(paramsB64))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if recode {
		signature = strings.NewReplacer("+", "-", "/", "_").Replace(signature)
	}
	return signature, nil
}

// tripleDESKey expands a two-key (16 byte) 3DES key into the k1|k2|k1 form
// the stdlib cipher requires. 24 byte keys pass through.
func tripleDESKey(key []byte) []byte {
	if len(key) == 16 {
		return append(append([]byte{}, key...), key[:8]...)
	}
	return key
}

// redsysAmount converts a decimal total into the integer minor-units amount
// SIS expects, refusing any total that does not survive the round trip.
// The arithmetic stays in decimal; a float64 detour would misround totals
// like 0.07 whose binary representation sits just above the true value.
func redsysAmount(pr *PaymentRequest) (int64, *PaymentError) {
	cents := pr.Total.Mul(decimal.NewFromInt(100))
	if !cents.IsInteger() {
		return 0, newError(CodeMalformedRequest,
			"Amount doesn't match to the payment request: stored=%s - protocol=%s",
			pr.Total, cents.Ceil().Shift(-2))
	}
	return cents.IntPart(), nil
}

// RedsysAdapter implements the Redsys SIS redirect protocol. The same
// adapter serves the redsys and redsysxml keys; they differ only in the
// protocol label.
type RedsysAdapter struct {
	cfg      *config.Config
	protocol string
	logger   *slog.Logger
}

func NewRedsysAdapter(cfg *config.Config, logger *slog.Logger) *RedsysAdapter {
	return &RedsysAdapter{cfg: cfg, protocol: config.ProtocolRedsys, logger: logger}
}

// NewRedsysXMLAdapter serves platform entries configured with the redsysxml
// key. The SIS form flow is identical.
func NewRedsysXMLAdapter(cfg *config.Config, logger *slog.Logger) *RedsysAdapter {
	return &RedsysAdapter{cfg: cfg, protocol: config.ProtocolRedsysXML, logger: logger}
}

func (a *RedsysAdapter) Protocol() string { return a.protocol }

// CreateRequest needs no gateway round trip: Redsys is contacted by the
// payer's browser through the approval form. Empty audit blobs are recorded
// so the request shows as dispatched.
func (a *RedsysAdapter) CreateRequest(ctx context.Context, pr *PaymentRequest) (CreateResult, error) {
	now := time.Now()
	return CreateResult{
		Request:     json.RawMessage("{}"),
		RequestDate: now,
		Answer:      json.RawMessage("{}"),
		AnswerDate:  now,
	}, nil
}

// Approval builds the signed auto-submit form the payer posts to the SIS
// endpoint.
func (a *RedsysAdapter) Approval(pr *PaymentRequest) (Approval, error) {
	platform, ok := a.cfg.Platform(pr.Platform)
	if !ok {
		return Approval{}, newError(CodeUnknownPlatform, "Platform '%s' not configured in your system", pr.Platform)
	}

	amount, perr := redsysAmount(pr)
	if perr != nil {
		a.logger.Error("amount mismatch", "locator", pr.Locator, "total", pr.Total)
		return Approval{}, perr
	}

	curcode, ok := redsysCurrencies[pr.Currency.ISO4217]
	if !ok {
		a.logger.Error("unsupported currency", "locator", pr.Locator, "currency", pr.Currency.ISO4217)
		return Approval{}, newError(CodeUnknownProtocol,
			"Unknown currency for this protocol '%s' (available are: EUR, USD, GBP, JPY, CHF & CAD)",
			pr.Currency.ISO4217)
	}

	authKey, err := base64.StdEncoding.DecodeString(platform.AuthKey)
	if err != nil {
		return Approval{}, fmt.Errorf("redsys auth key: %w", err)
	}

	baseURL := a.cfg.Meta.URL
	params := map[string]string{
		"DS_MERCHANT_AMOUNT":          strconv.FormatInt(amount, 10),
		"DS_MERCHANT_CURRENCY":        curcode,
		"DS_MERCHANT_ORDER":           pr.OrderRef,
		"DS_MERCHANT_MERCHANTCODE":    platform.MerchantCode,
		"DS_MERCHANT_MERCHANTURL":     ReturnURL(baseURL, ReverseAutorender, pr.Locator, ActionSuccess),
		"DS_MERCHANT_URLOK":           ReturnURL(baseURL, pr.Reverse, pr.Locator, ActionConfirm),
		"DS_MERCHANT_URLKO":           ReturnURL(baseURL, pr.Reverse, pr.Locator, ActionCancel),
		"DS_MERCHANT_TERMINAL":        "1",
		"DS_MERCHANT_TRANSACTIONTYPE": "0",
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return Approval{}, err
	}
	paramsB64 := base64.StdEncoding.EncodeToString(rawParams)

	signature, err := RedsysSignature(authKey, pr.OrderRef, paramsB64, false)
	if err != nil {
		return Approval{}, err
	}

	endpoint := redsysTestEndpoint
	if pr.Real {
		endpoint = redsysLiveEndpoint
	}

	return Approval{
		URL: endpoint,
		Form: map[string]string{
			"Ds_SignatureVersion":   redsysSignatureVersion,
			"Ds_MerchantParameters": paramsB64,
			"Ds_Signature":          signature,
		},
	}, nil
}

// Confirm only acknowledges the browser's return leg: the authoritative
// settlement arrives through the notification endpoint, so the service must
// find a successful answer first.
func (a *RedsysAdapter) Confirm(ctx context.Context, pr *PaymentRequest, in ConfirmInput) (ConfirmResult, error) {
	return ConfirmResult{RequireSettled: true}, nil
}

// Cancel has no gateway side effects: the payer simply abandons the SIS
// form.
func (a *RedsysAdapter) Cancel(ctx context.Context, pr *PaymentRequest) error { return nil }

func (a *RedsysAdapter) Execute(ctx context.Context, pr *PaymentRequest, payerRef string) (CreateResult, error) {
	return CreateResult{}, newError(CodeNotApproved, "Protocol '%s' does not execute payments", a.protocol)
}

// Success verifies a SIS notification: signature version, merchant
// signature over the parameter blob, then amount. A response without an
// authorisation code is a declined operation whose SIS error code becomes
// the answer reference.
func (a *RedsysAdapter) Success(ctx context.Context, pr *PaymentRequest, data url.Values) SuccessResult {
	signature := data.Get("Ds_Signature")
	signatureVersion := data.Get("Ds_SignatureVersion")
	paramsB64 := data.Get("Ds_MerchantParameters")

	var params map[string]string
	if paramsB64 != "" {
		if raw, err := base64.StdEncoding.DecodeString(paramsB64); err == nil {
			if err := json.Unmarshal(raw, &params); err != nil {
				params = nil
			}
		}
	}

	if signature == "" || signatureVersion == "" || paramsB64 == "" || params == nil {
		var missing []string
		if params == nil {
			missing = append(missing, "Ds_MerchantParameters has wrong encoding")
		}
		if paramsB64 == "" {
			missing = append(missing, "Missing Ds_MerchantParameters")
		}
		if signature == "" {
			missing = append(missing, "Missing Ds_Signature")
		}
		if signatureVersion == "" {
			missing = append(missing, "Missing Ds_SignatureVersion")
		}
		a.logger.Error("incomplete notification", "locator", pr.Locator, "missing", missing)
		return SuccessResult{Err: newError(CodeMissingInformation,
			"Missing information in data: %s", strings.Join(missing, ", "))}
	}

	if signatureVersion != redsysSignatureVersion {
		a.logger.Error("invalid signature version", "locator", pr.Locator, "version", signatureVersion)
		return SuccessResult{Err: newError(CodeSignatureInvalid, "Invalid signature version")}
	}

	platform, ok := a.cfg.Platform(pr.Platform)
	if !ok {
		return SuccessResult{Err: newError(CodeUnknownPlatform, "Platform '%s' not configured in your system", pr.Platform)}
	}
	authKey, err := base64.StdEncoding.DecodeString(platform.AuthKey)
	if err != nil {
		return SuccessResult{Err: newError(CodeSignatureInvalid, "Invalid merchant auth key")}
	}

	internal, err := RedsysSignature(authKey, params["Ds_Order"], paramsB64, true)
	if err != nil {
		return SuccessResult{Err: newError(CodeSignatureInvalid, "Invalid merchant auth key")}
	}
	if !hmac.Equal([]byte(signature), []byte(internal)) {
		a.logger.Error("signature mismatch", "locator", pr.Locator)
		return SuccessResult{Err: newError(CodeSignatureInvalid,
			"Invalid signature version: our=%s - remote=%s", internal, signature)}
	}

	amount := params["Ds_Amount"]
	authorisation := strings.TrimSpace(params["Ds_AuthorisationCode"])

	switch {
	case amount != "" && authorisation != "":
		cents, err := strconv.ParseInt(amount, 10, 64)
		if err != nil || !decimal.NewFromInt(cents).Shift(-2).Equal(pr.Total) {
			a.logger.Error("amount mismatch", "locator", pr.Locator, "our", pr.Total, "remote", amount)
			return SuccessResult{Err: newError(CodeVerificationMismatch,
				"Amount doesn't match to the payment request: our=%s - remote=%s", pr.Total, amount)}
		}
		return SuccessResult{Ref: authorisation}

	case amount == "":
		a.logger.Error("missing amount", "locator", pr.Locator)
		return SuccessResult{Err: newError(CodeVerificationMismatch, "Missing amount in your confirmation request")}

	default:
		if errorcode := params["Ds_ErrorCode"]; errorcode != "" {
			a.logger.Error("operation declined", "locator", pr.Locator, "code", errorcode)
			return SuccessResult{
				Ref:   errorcode,
				Extra: map[string]any{"errorcode": errorcode},
				Err:   newError(CodeNotApproved, "%s", RedsysError(errorcode)),
			}
		}
		a.logger.Error("missing authorisation code", "locator", pr.Locator)
		return SuccessResult{Err: newError(CodeVerificationMismatch,
			"Missing authorisation code in your confirmation request")}
	}
}
