package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/shared/apperr"
)

// AnswerService processes server-to-server gateway notifications. The
// payment row is locked for the whole settlement so a notification can
// settle at most once, no matter how often the gateway retries.
type AnswerService struct {
	db       *gorm.DB
	cfg      *config.Config
	registry *Registry
	logger   *slog.Logger
}

func NewAnswerService(db *gorm.DB, cfg *config.Config, registry *Registry, logger *slog.Logger) *AnswerService {
	return &AnswerService{db: db, cfg: cfg, registry: registry, logger: logger}
}

// Success verifies one notification and records its outcome. The returned
// map is the wire answer for the gateway; err reports what went wrong but
// never suppresses the answer.
func (as *AnswerService) Success(ctx context.Context, locator string, data url.Values, ip string) (map[string]any, error) {
	var pr PaymentRequest
	err := as.db.WithContext(ctx).Preload("Currency").First(&pr, "locator = ?", locator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("Locator not found.")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}

	if pr.Cancelled {
		as.logger.Error("payment cancelled", "locator", pr.Locator)
		return nil, newError(CodeNotApproved, "Payment has been cancelled/declined, access denied!")
	}
	if pr.Real != as.cfg.Meta.Real {
		as.logger.Error("environment mismatch", "locator", pr.Locator,
			"payment_env", envName(pr.Real), "system_env", envName(as.cfg.Meta.Real))
		return nil, newError(CodeEnvironmentMismatch,
			"Wrong environment: this transaction is for '%s' environment and system is set to '%s'",
			envName(pr.Real), envName(as.cfg.Meta.Real))
	}

	answer := map[string]any{"result": "KO"}
	var verifyErr error

	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked PaymentRequest
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&locked, "id = ?", pr.ID).Error; err != nil {
			return err
		}
		if locked.Cancelled {
			return newError(CodeNotApproved, "Payment has been cancelled/declined, access denied!")
		}

		var settled int64
		if err := tx.Model(&PaymentAnswer{}).
			Where("payment_id = ? AND ref IS NOT NULL AND error = false", pr.ID).
			Count(&settled).Error; err != nil {
			return err
		}
		if settled > 0 {
			// Yeepay retries notifications and expects an acknowledgement;
			// everyone else gets a hard duplicate error.
			if pr.Protocol == config.ProtocolYeepay {
				answer["result"] = "ALREADY_OK"
				return nil
			}
			as.logger.Error("payment already processed", "locator", pr.Locator)
			return newError(CodeAlreadyProcessed, "Payment already processed")
		}

		now := time.Now()
		initTxt := `"INIT"`
		pa := &PaymentAnswer{
			PaymentID:   pr.ID,
			Error:       true,
			ErrorTxt:    &initTxt,
			Request:     valuesJSON(data),
			RequestDate: &now,
			IP:          ip,
		}
		if err := tx.Create(pa).Error; err != nil {
			return err
		}

		res := as.verify(ctx, &pr, data)
		verifyErr = nil

		updates := map[string]any{}
		if res.Request != nil {
			pa.Request = datatypes.JSON(res.Request)
			reqDate := time.Now()
			pa.RequestDate = &reqDate
			updates["request"] = pa.Request
			updates["request_date"] = pa.RequestDate
		}

		if res.Err != nil {
			verifyErr = res.Err
			pa.Error = true
			pa.ErrorTxt = errorTxt(res.Err)
			answer["error"] = int(res.Err.Code)
			answer["errortxt"] = res.Err.Msg
			if res.Ref != "" {
				ref := res.Ref
				pa.Ref = &ref
				updates["ref"] = pa.Ref
			}
		} else {
			pa.Error = false
			pa.ErrorTxt = nil
			ref := res.Ref
			pa.Ref = &ref
			updates["ref"] = pa.Ref
			answer["result"] = "OK"
		}
		for k, v := range res.Extra {
			answer[k] = v
		}

		rawAnswer, _ := json.Marshal(answer)
		ansDate := time.Now()
		pa.Answer = datatypes.JSON(rawAnswer)
		pa.AnswerDate = &ansDate

		updates["error"] = pa.Error
		updates["error_txt"] = pa.ErrorTxt
		updates["answer"] = pa.Answer
		updates["answer_date"] = pa.AnswerDate
		return tx.Model(pa).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return answer, verifyErr
}

// verify runs the protocol checks for one notification.
func (as *AnswerService) verify(ctx context.Context, pr *PaymentRequest, data url.Values) SuccessResult {
	if len(data) == 0 {
		as.logger.Error("empty notification", "locator", pr.Locator)
		return SuccessResult{Err: newError(CodeMissingInformation, "Request is empty")}
	}

	adapter, ok := as.registry.Get(pr.Protocol)
	if !ok {
		as.logger.Error("unknown protocol", "locator", pr.Locator, "protocol", pr.Protocol)
		return SuccessResult{Err: newError(CodeUnknownProtocol, "Unknown protocol '%s'", pr.Protocol)}
	}
	return adapter.Success(ctx, pr, data)
}
