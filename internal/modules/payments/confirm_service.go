package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/shared/apperr"
)

// ConfirmService processes the browser return legs: confirm and cancel.
// Every attempt leaves a PaymentConfirmation row, errors included.
type ConfirmService struct {
	db       *gorm.DB
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger
}

func NewConfirmService(db *gorm.DB, cfg *config.Config, registry *Registry, logger *slog.Logger) *ConfirmService {
	return &ConfirmService{db: db, cfg: cfg, registry: registry, logger: logger}
}

// valuesJSON flattens query values to their first occurrence for the audit
// column.
func valuesJSON(data url.Values) datatypes.JSON {
	flat := make(map[string]string, len(data))
	for k := range data {
		flat[k] = data.Get(k)
	}
	raw, _ := json.Marshal(flat)
	return datatypes.JSON(raw)
}

// gatewayName is the display name used in payer-facing error messages.
func gatewayName(protocol string) string {
	switch protocol {
	case config.ProtocolRedsys, config.ProtocolRedsysXML:
		return "REDSYS"
	case config.ProtocolYeepay:
		return "Yeepay"
	default:
		return "Paypal"
	}
}

// Confirm handles the payer returning from the gateway with a positive
// outcome.
func (cs *ConfirmService) Confirm(ctx context.Context, locator string, in ConfirmInput, ip string) (*PaymentConfirmation, error) {
	return cs.action(ctx, locator, ActionConfirm, in, ip)
}

// Cancel handles the payer abandoning or declining the payment.
func (cs *ConfirmService) Cancel(ctx context.Context, locator string, in ConfirmInput, ip string) (*PaymentConfirmation, error) {
	return cs.action(ctx, locator, ActionCancel, in, ip)
}

func (cs *ConfirmService) action(ctx context.Context, locator, action string, in ConfirmInput, ip string) (*PaymentConfirmation, error) {
	var pr PaymentRequest
	err := cs.db.WithContext(ctx).Preload("Currency").First(&pr, "locator = ?", locator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("Locator not found.")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	conf := &PaymentConfirmation{
		PaymentID: pr.ID,
		Action:    action,
		Data:      valuesJSON(in.Data),
		IP:        ip,
	}
	if err := cs.db.WithContext(ctx).Create(conf).Error; err != nil {
		return nil, apperr.Wrap(err)
	}

	if perr := cs.precheck(ctx, &pr); perr != nil {
		return conf, cs.fail(ctx, conf, perr)
	}

	adapter, ok := cs.registry.Get(pr.Protocol)
	if !ok {
		cs.logger.Error("unknown protocol", "locator", pr.Locator, "protocol", pr.Protocol)
		return conf, cs.fail(ctx, conf, newError(CodeUnknownProtocol, "Unknown protocol '%s'", pr.Protocol))
	}

	switch action {
	case ActionConfirm:
		return conf, cs.confirm(ctx, &pr, conf, adapter, in)
	case ActionCancel:
		return conf, cs.cancel(ctx, &pr, conf, adapter)
	default:
		cs.logger.Error("wrong action", "locator", pr.Locator, "action", action)
		return conf, cs.fail(ctx, conf, newError(CodeMissingInformation, "Wrong action: %s", action))
	}
}

// precheck rejects work on payments that must not move anymore.
func (cs *ConfirmService) precheck(ctx context.Context, pr *PaymentRequest) *PaymentError {
	if pr.Cancelled {
		cs.logger.Error("payment cancelled", "locator", pr.Locator)
		return newError(CodeNotApproved, "Payment has been cancelled/declined, access denied!")
	}
	if pr.Real != cs.cfg.Meta.Real {
		cs.logger.Error("environment mismatch", "locator", pr.Locator,
			"payment_env", envName(pr.Real), "system_env", envName(cs.cfg.Meta.Real))
		return newError(CodeEnvironmentMismatch,
			"Wrong environment: this transaction is for '%s' environment and system is set to '%s'",
			envName(pr.Real), envName(cs.cfg.Meta.Real))
	}
	if pr.Protocol == config.ProtocolPaypal {
		var settled int64
		cs.db.WithContext(ctx).Model(&PaymentAnswer{}).
			Where("payment_id = ? AND ref IS NOT NULL AND error = false", pr.ID).
			Count(&settled)
		if settled > 0 {
			cs.logger.Error("payment already processed", "locator", pr.Locator)
			return newError(CodeAlreadyProcessed, "Payment already processed")
		}
	}
	return nil
}

func (cs *ConfirmService) confirm(ctx context.Context, pr *PaymentRequest, conf *PaymentConfirmation, adapter Adapter, in ConfirmInput) error {
	res, err := adapter.Confirm(ctx, pr, in)
	if err != nil {
		return cs.fail(ctx, conf, err)
	}

	if res.RequireSettled {
		return cs.confirmSettled(ctx, pr, conf)
	}
	if res.Settle {
		return cs.settle(ctx, pr, conf, adapter, res.Ref)
	}
	return nil
}

// confirmSettled accepts a confirmation only when the gateway already
// settled through the notification endpoint, and only once.
func (cs *ConfirmService) confirmSettled(ctx context.Context, pr *PaymentRequest, conf *PaymentConfirmation) error {
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked PaymentRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", pr.ID).Error; err != nil {
			return err
		}
		if locked.Cancelled {
			cs.logger.Error("payment cancelled", "locator", pr.Locator)
			return newError(CodeNotApproved, "Payment has been cancelled/declined, access denied!")
		}

		var answer PaymentAnswer
		err := tx.Where("payment_id = ? AND ref IS NOT NULL AND error = false", pr.ID).
			First(&answer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cs.logger.Error("payment not settled yet", "locator", pr.Locator)
			return newError(CodeNotApproved,
				"Payment is not executed, we didn't get yet the confirmation from %s", gatewayName(pr.Protocol))
		}
		if err != nil {
			return err
		}

		var confirmed int64
		if err := tx.Model(&PaymentConfirmation{}).
			Where("payment_id = ? AND ref IS NOT NULL", pr.ID).
			Count(&confirmed).Error; err != nil {
			return err
		}
		if confirmed > 0 {
			cs.logger.Error("payment already confirmed", "locator", pr.Locator)
			return newError(CodeAlreadyConfirmed, "Payment is already confirmed")
		}

		conf.Ref = answer.Ref
		return tx.Model(conf).Update("ref", conf.Ref).Error
	})
	if err != nil {
		return cs.fail(ctx, conf, err)
	}
	return nil
}

// settle executes the capture right after a verified confirmation (PayPal).
// The answer row is created under the payment row lock so concurrent
// confirmations cannot settle twice.
func (cs *ConfirmService) settle(ctx context.Context, pr *PaymentRequest, conf *PaymentConfirmation, adapter Adapter, payerRef string) error {
	res, execErr := adapter.Execute(ctx, pr, payerRef)
	if execErr != nil && res.Request == nil {
		// Verification failed before any capture was attempted.
		return cs.fail(ctx, conf, execErr)
	}

	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked PaymentRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", pr.ID).Error; err != nil {
			return err
		}
		if locked.Cancelled {
			cs.logger.Error("payment cancelled", "locator", pr.Locator)
			return newError(CodeNotApproved, "Payment has been cancelled/declined, access denied!")
		}
		var settled int64
		if err := tx.Model(&PaymentAnswer{}).
			Where("payment_id = ? AND ref IS NOT NULL AND error = false", pr.ID).
			Count(&settled).Error; err != nil {
			return err
		}
		if settled > 0 {
			cs.logger.Error("payment already processed", "locator", pr.Locator)
			return newError(CodeAlreadyProcessed, "Payment already processed")
		}

		conf.Ref = &payerRef
		if err := tx.Model(conf).Update("ref", conf.Ref).Error; err != nil {
			return err
		}

		pa := &PaymentAnswer{
			PaymentID: pr.ID,
			IP:        conf.IP,
		}
		if res.Request != nil {
			pa.Request = datatypes.JSON(res.Request)
			reqDate := res.RequestDate
			pa.RequestDate = &reqDate
		}
		if res.Answer != nil {
			pa.Answer = datatypes.JSON(res.Answer)
			ansDate := res.AnswerDate
			pa.AnswerDate = &ansDate
		}
		if execErr != nil {
			pa.Error = true
			if pe, ok := AsPaymentError(execErr); ok {
				pa.ErrorTxt = errorTxt(pe)
			} else {
				msg := execErr.Error()
				pa.ErrorTxt = &msg
			}
		} else if res.Ref != "" {
			ref := res.Ref
			pa.Ref = &ref
		}
		return tx.Create(pa).Error
	})
	if err != nil {
		return cs.fail(ctx, conf, err)
	}
	if execErr != nil {
		return cs.fail(ctx, conf, execErr)
	}
	return nil
}

// cancel marks the payment cancelled. Gateway side effects run first but a
// remote failure never blocks the local cancellation; it is reported after
// the fact.
func (cs *ConfirmService) cancel(ctx context.Context, pr *PaymentRequest, conf *PaymentConfirmation, adapter Adapter) error {
	cancelErr := adapter.Cancel(ctx, pr)

	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked PaymentRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", pr.ID).Error; err != nil {
			return err
		}
		return tx.Model(&locked).Update("cancelled", true).Error
	})
	if err != nil {
		return cs.fail(ctx, conf, err)
	}
	pr.Cancelled = true

	if cancelErr != nil {
		cs.logger.Error("gateway cancel failed", "locator", pr.Locator, "error", cancelErr)
		return cs.fail(ctx, conf, cancelErr)
	}
	return nil
}

// fail persists the error on the confirmation audit row and hands it back.
func (cs *ConfirmService) fail(ctx context.Context, conf *PaymentConfirmation, err error) error {
	conf.Error = true
	if pe, ok := AsPaymentError(err); ok {
		conf.ErrorTxt = errorTxt(pe)
	} else {
		msg := err.Error()
		conf.ErrorTxt = &msg
	}
	if dbErr := cs.db.WithContext(ctx).Model(conf).Updates(map[string]any{
		"error":     true,
		"error_txt": conf.ErrorTxt,
	}).Error; dbErr != nil {
		cs.logger.Error("recording confirmation error failed", "error", dbErr)
	}
	return err
}
