package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/http/middleware"
	"github.com/codenerix/payments/internal/http/validation"
	"github.com/codenerix/payments/internal/modules/payments"
	"github.com/codenerix/payments/internal/shared/apperr"
)

// PaymentHandler serves the merchant-facing JSON API: creating payment
// requests and inspecting their state.
type PaymentHandler struct {
	Logger *slog.Logger
	Cfg    *config.Config
	Svc    *payments.Service
}

func NewPaymentHandler(logger *slog.Logger, cfg *config.Config, svc *payments.Service) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Cfg: cfg, Svc: svc}
}

type createPaymentRequest struct {
	Total    decimal.Decimal `json:"total" binding:"required"`
	Currency string          `json:"currency" binding:"omitempty,len=3"`
	Platform string          `json:"platform" binding:"required"`
	Order    uint64          `json:"order"`
	Reverse  string          `json:"reverse" binding:"omitempty,max=64"`
	Notes    string          `json:"notes" binding:"omitempty,max=30"`
}

// paymentError renders a PaymentError the way the JSON API reports it; the
// detail text only leaves the system in debug mode.
func (h *PaymentHandler) paymentError(c *gin.Context, pe *payments.PaymentError) {
	payload := gin.H{"error": int(pe.Code)}
	if h.Cfg.Meta.Debug {
		payload["errortxt"] = pe.Msg
	}
	c.JSON(http.StatusBadRequest, payload)
}

// POST /payments/create
func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fields := validation.FromBindError(err, &req)
		middleware.Fail(c, apperr.InvalidErr("Invalid payment request.", fields))
		return
	}

	pr, err := h.Svc.Create(c.Request.Context(), payments.CreateInput{
		Total:    req.Total,
		Currency: req.Currency,
		Platform: req.Platform,
		Order:    req.Order,
		Reverse:  req.Reverse,
		Notes:    req.Notes,
		IP:       c.ClientIP(),
	})
	if err != nil {
		if pe, ok := payments.AsPaymentError(err); ok {
			// A persisted request with a gateway refusal still reports its
			// locator so the caller can audit it.
			if pr != nil {
				payload := gin.H{"locator": pr.Locator, "error": int(pe.Code)}
				if h.Cfg.Meta.Debug {
					payload["errortxt"] = pe.Msg
				}
				c.JSON(http.StatusBadRequest, payload)
				return
			}
			h.paymentError(c, pe)
			return
		}
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, pr)
}

// GET /payments/detail/:locator
func (h *PaymentHandler) Detail(c *gin.Context) {
	pr, err := h.Svc.Get(c.Request.Context(), c.Param("locator"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	paid, err := h.Svc.IsPaid(c.Request.Context(), pr.Locator)
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": pr, "paid": paid})
}

// GET /payments/approval/:locator
func (h *PaymentHandler) Approval(c *gin.Context) {
	approval, err := h.Svc.GetApproval(c.Request.Context(), c.Param("locator"))
	if err != nil {
		if pe, ok := payments.AsPaymentError(err); ok {
			h.paymentError(c, pe)
			return
		}
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}
