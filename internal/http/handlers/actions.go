package handlers

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/modules/payments"
	"github.com/codenerix/payments/internal/shared/apperr"
)

// Wire error codes of the action endpoint. Everything else surfaces as
// PCxx (confirmation) or PSxx (notification) built from the numeric
// payment error codes.
const (
	errLocatorNotFound = "P001"
	errUnknownProtocol = "P002"
	errBadRedsysAction = "P003"
	errBadPaypalAction = "P004"
	errBadYeepayAction = "P005"
)

// ActionHandler serves the mixed browser/gateway endpoint: payers return
// from the gateway with confirm/cancel, gateways notify with success.
// Browsers are redirected, gateways get JSON, and the endpoint itself
// always answers 200 so gateways do not retry forever.
type ActionHandler struct {
	Logger     *slog.Logger
	Cfg        *config.Config
	Svc        *payments.Service
	ConfirmSvc *payments.ConfirmService
	AnswerSvc  *payments.AnswerService
	Notifier   *payments.Notifier
}

func NewActionHandler(logger *slog.Logger, cfg *config.Config, svc *payments.Service,
	confirmSvc *payments.ConfirmService, answerSvc *payments.AnswerService, notifier *payments.Notifier) *ActionHandler {
	return &ActionHandler{
		Logger: logger, Cfg: cfg, Svc: svc,
		ConfirmSvc: confirmSvc, AnswerSvc: answerSvc, Notifier: notifier,
	}
}

// allowedAction reports the error code for an action a protocol does not
// serve, empty when the action is fine.
func allowedAction(protocol, action string) string {
	valid := action == payments.ActionConfirm || action == payments.ActionCancel
	switch protocol {
	case config.ProtocolPaypal:
		if !valid {
			return errBadPaypalAction
		}
	case config.ProtocolRedsys, config.ProtocolRedsysXML:
		if !valid && action != payments.ActionSuccess {
			return errBadRedsysAction
		}
	case config.ProtocolYeepay:
		if !valid && action != payments.ActionSuccess {
			return errBadYeepayAction
		}
	default:
		return errUnknownProtocol
	}
	return ""
}

// Handle is mounted for GET and POST on /payments/action/:locator/:action.
func (h *ActionHandler) Handle(c *gin.Context) {
	ctx := c.Request.Context()
	locator := c.Param("locator")
	action := c.Param("action")

	answer := map[string]any{"action": action, "locator": locator, "error": 0}
	setError := func(code any, txt string) {
		answer["error"] = code
		if txt != "" && h.Cfg.Meta.Debug {
			answer["errortxt"] = txt
		}
	}

	pr, err := h.Svc.Get(ctx, locator)
	if err != nil {
		if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.NotFound {
			h.Logger.Error("loading payment failed", "locator", locator, "error", err)
		}
		pr = nil
	}

	// Gateways that post notifications always get JSON; so does an unknown
	// locator and the reverse sentinel used by JSON-only callers.
	answerJSON := pr == nil || pr.Reverse == payments.ReverseJSON || action == payments.ActionSuccess

	switch {
	case pr == nil:
		setError(errLocatorNotFound, "")

	case allowedAction(pr.Protocol, action) != "":
		setError(allowedAction(pr.Protocol, action), "")

	case action == payments.ActionSuccess:
		ans, err := h.AnswerSvc.Success(ctx, locator, postValues(c), c.ClientIP())
		if ans != nil {
			// Verification outcomes, good and bad, are delivered to the
			// sink exactly like the reference flow delivers them.
			answer = ans
			h.Notifier.Notify(ctx, locator, ans)
			if !h.Cfg.Meta.Debug {
				delete(answer, "errortxt")
			}
		} else if pe, ok := payments.AsPaymentError(err); ok {
			setError(fmt.Sprintf("PS%02d", int(pe.Code)), pe.Msg)
		} else if err != nil {
			h.Logger.Error("notification processing failed", "locator", locator, "error", err)
			setError(fmt.Sprintf("PS%02d", int(payments.CodeUnknownProtocol)), "")
		}

	case action == payments.ActionConfirm:
		in := payments.ConfirmInput{Data: c.Request.URL.Query(), RawQuery: c.Request.URL.RawQuery}
		_, err := h.ConfirmSvc.Confirm(ctx, locator, in, c.ClientIP())
		if pe, ok := payments.AsPaymentError(err); ok {
			setError(fmt.Sprintf("PC%02d", int(pe.Code)), pe.Msg)
		} else if err != nil {
			h.Logger.Error("confirmation failed", "locator", locator, "error", err)
			setError(fmt.Sprintf("PC%02d", int(payments.CodeUnknownProtocol)), "")
		} else if pr.Protocol == config.ProtocolPaypal {
			h.Notifier.Notify(ctx, locator, nil)
		}

	default: // cancel
		in := payments.ConfirmInput{Data: c.Request.URL.Query(), RawQuery: c.Request.URL.RawQuery}
		_, err := h.ConfirmSvc.Cancel(ctx, locator, in, c.ClientIP())
		if pe, ok := payments.AsPaymentError(err); ok {
			setError(fmt.Sprintf("PC%02d", int(pe.Code)), pe.Msg)
		} else if err != nil {
			h.Logger.Error("cancellation failed", "locator", locator, "error", err)
			setError(fmt.Sprintf("PC%02d", int(payments.CodeUnknownProtocol)), "")
		}
	}

	if answerJSON {
		c.JSON(http.StatusOK, answer)
		return
	}

	h.redirect(c, pr, action, answer)
}

// redirect sends the payer's browser to the built-in confirmation page or
// to the caller's reverse URL.
func (h *ActionHandler) redirect(c *gin.Context, pr *payments.PaymentRequest, action string, answer map[string]any) {
	errVal := fmt.Sprint(answer["error"])
	errTxt, _ := answer["errortxt"].(string)

	autorender := pr.Reverse == payments.ReverseAutorender ||
		c.Query("autorender") != "" || c.PostForm("autorender") != ""

	if autorender {
		target := "/payments/confirmation/" + url.PathEscape(pr.Locator) + "/" +
			url.PathEscape(action) + "/" + url.PathEscape(errVal)
		if errTxt != "" {
			target += "?errortxt=" + url.QueryEscape(errTxt)
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	target := payments.ReturnURL(h.Cfg.Meta.URL, pr.Reverse, pr.Locator, action)
	sep := "?"
	if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	target += sep + "error=" + url.QueryEscape(errVal)
	if errTxt != "" {
		target += "&errortxt=" + url.QueryEscape(errTxt)
	}
	c.Redirect(http.StatusFound, target)
}

// postValues returns the form body of a notification post.
func postValues(c *gin.Context) url.Values {
	if err := c.Request.ParseForm(); err != nil {
		return url.Values{}
	}
	return c.Request.PostForm
}

var confirmationPage = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<head><title>Payment {{.Action}}</title></head>
<body>
<h1>Payment {{.Action}}</h1>
<p>Locator: {{.Locator}}</p>
{{if .Paid}}<p>The payment has been completed.</p>{{else}}<p>The payment is not completed.</p>{{end}}
{{if .Error}}<p>Error: {{.Error}}</p>{{end}}
{{if .ErrorTxt}}<p>{{.ErrorTxt}}</p>{{end}}
</body>
</html>
`))

// Confirmation renders the built-in status page for payments created with
// the autorender reverse.
func (h *ActionHandler) Confirmation(c *gin.Context) {
	locator := c.Param("locator")

	paid := false
	if pr, err := h.Svc.Get(c.Request.Context(), locator); err == nil {
		paid, _ = h.Svc.IsPaid(c.Request.Context(), pr.Locator)
	}

	errVal := c.Param("error")
	if errVal == "0" {
		errVal = ""
	}
	errTxt := ""
	if h.Cfg.Meta.Debug {
		errTxt = c.Query("errortxt")
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = confirmationPage.Execute(c.Writer, gin.H{
		"Locator":  locator,
		"Action":   c.Param("action"),
		"Paid":     paid,
		"Error":    errVal,
		"ErrorTxt": errTxt,
	})
}
