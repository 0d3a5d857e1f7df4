package payments

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/modules/currencies"
	"github.com/codenerix/payments/internal/shared/apperr"
)

// Service owns the payment request lifecycle up to the approval hand-off.
type Service struct {
	db         *gorm.DB
	cfg        *config.Config
	registry   *Registry
	currencies *currencies.Repo
	logger     *slog.Logger
}

func NewService(db *gorm.DB, cfg *config.Config, registry *Registry, cur *currencies.Repo, logger *slog.Logger) *Service {
	return &Service{db: db, cfg: cfg, registry: registry, currencies: cur, logger: logger}
}

type CreateInput struct {
	Total    decimal.Decimal
	Currency string // ISO 4217, defaults to EUR
	Platform string
	Order    uint64 // 0 assigns the row id
	Reverse  string
	Notes    string
	IP       string
}

// envName renders the environment flag the way operators read it in logs
// and error messages.
func envName(real bool) string {
	if real {
		return "REAL"
	}
	return "TEST"
}

// Create registers a payment request and dispatches the gateway side of its
// creation. The request row survives a gateway refusal: the caller gets the
// persisted request together with the error.
func (s *Service) Create(ctx context.Context, in CreateInput) (*PaymentRequest, error) {
	if !in.Total.IsPositive() {
		return nil, newError(CodeMalformedRequest, "Total must be positive, got %s", in.Total)
	}
	if in.Order > MaxOrder {
		return nil, newError(CodeMalformedRequest, "Order number %d does not fit the order reference", in.Order)
	}

	platform, ok := s.cfg.Platform(in.Platform)
	if !ok {
		s.logger.Error("platform not configured", "platform", in.Platform)
		return nil, newError(CodeUnknownPlatform, "Platform '%s' not configured in your system", in.Platform)
	}
	if platform.Real != nil && *platform.Real != s.cfg.Meta.Real {
		s.logger.Error("environment mismatch", "platform", in.Platform,
			"platform_env", envName(*platform.Real), "system_env", envName(s.cfg.Meta.Real))
		return nil, newError(CodeEnvironmentMismatch,
			"Wrong environment: this transaction is for '%s' environment and system is set to '%s'",
			envName(*platform.Real), envName(s.cfg.Meta.Real))
	}

	adapter, ok := s.registry.Get(platform.Protocol)
	if !ok {
		s.logger.Error("unknown protocol", "platform", in.Platform, "protocol", platform.Protocol)
		return nil, newError(CodeUnknownProtocol, "Unknown protocol '%s'", platform.Protocol)
	}

	var currency currencies.Currency
	var err error
	if in.Currency == "" {
		currency, err = s.currencies.EnsureEUR(ctx)
	} else {
		currency, err = s.currencies.ByISO(ctx, in.Currency)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(CodeMalformedRequest, "Unknown currency '%s'", in.Currency)
		}
	}
	if err != nil {
		return nil, err
	}

	locator, err := NewLocator()
	if err != nil {
		return nil, err
	}

	reverse := in.Reverse
	if reverse == "" {
		reverse = ReverseAutorender
	}

	pr := &PaymentRequest{
		Locator:    locator,
		Order:      in.Order,
		Reverse:    reverse,
		CurrencyID: currency.ID,
		Currency:   currency,
		Platform:   in.Platform,
		Protocol:   platform.Protocol,
		Real:       s.cfg.Meta.Real,
		Total:      in.Total,
		Notes:      in.Notes,
		IP:         in.IP,
	}
	if pr.Order > 0 {
		pr.OrderRef = EncodeOrderRef(pr.Order)
	}

	// The row id doubles as the order number when the caller gives none;
	// reserving and encoding it happens in the same transaction so no row is
	// ever visible without its order reference.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Currency").Create(pr).Error; err != nil {
			return err
		}
		if pr.Order == 0 {
			pr.Order = uint64(pr.ID)
			pr.OrderRef = EncodeOrderRef(pr.Order)
			return tx.Model(pr).Updates(map[string]any{
				"order_no":  pr.Order,
				"order_ref": pr.OrderRef,
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res, createErr := adapter.CreateRequest(ctx, pr)

	updates := map[string]any{}
	if res.Request != nil {
		pr.Request = datatypes.JSON(res.Request)
		reqDate := res.RequestDate
		pr.RequestDate = &reqDate
		updates["request"] = pr.Request
		updates["request_date"] = pr.RequestDate
	}
	if res.Answer != nil {
		pr.Answer = datatypes.JSON(res.Answer)
		ansDate := res.AnswerDate
		pr.AnswerDate = &ansDate
		updates["answer"] = pr.Answer
		updates["answer_date"] = pr.AnswerDate
	}
	if res.Ref != "" {
		ref := res.Ref
		pr.Ref = &ref
		updates["ref"] = pr.Ref
	}
	if createErr != nil {
		pr.Error = true
		updates["error"] = true
		if pe, ok := AsPaymentError(createErr); ok {
			pr.ErrorTxt = errorTxt(pe)
		} else {
			msg := createErr.Error()
			pr.ErrorTxt = &msg
		}
		updates["error_txt"] = pr.ErrorTxt
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(pr).Updates(updates).Error; err != nil {
			return pr, err
		}
	}

	if createErr != nil {
		return pr, createErr
	}
	return pr, nil
}

// Get loads a payment request by its locator.
func (s *Service) Get(ctx context.Context, locator string) (*PaymentRequest, error) {
	var pr PaymentRequest
	err := s.db.WithContext(ctx).Preload("Currency").First(&pr, "locator = ?", locator).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFoundErr("Locator not found.")
	}
	if err != nil {
		return nil, apperr.Wrap(err)
	}
	return &pr, nil
}

// GetApproval builds the gateway hand-off for a payment that is still open.
// Cancelled or undispatched payments yield an empty approval.
func (s *Service) GetApproval(ctx context.Context, locator string) (Approval, error) {
	pr, err := s.Get(ctx, locator)
	if err != nil {
		return Approval{}, err
	}
	if pr.Cancelled || pr.Answer == nil {
		return Approval{}, nil
	}

	adapter, ok := s.registry.Get(pr.Protocol)
	if !ok {
		return Approval{}, newError(CodeUnknownProtocol, "Unknown protocol '%s'", pr.Protocol)
	}
	return adapter.Approval(pr)
}

// IsPaid reports whether a successful answer settled the payment.
func (s *Service) IsPaid(ctx context.Context, locator string) (bool, error) {
	pr, err := s.Get(ctx, locator)
	if err != nil {
		return false, err
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&PaymentAnswer{}).
		Where("payment_id = ? AND ref IS NOT NULL AND error = false", pr.ID).
		Count(&count).Error
	if err != nil {
		return false, apperr.Wrap(err)
	}
	return count > 0, nil
}

// Answers lists the gateway notifications recorded for a payment.
func (s *Service) Answers(ctx context.Context, locator string) ([]PaymentAnswer, error) {
	pr, err := s.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	var answers []PaymentAnswer
	if err := s.db.WithContext(ctx).Where("payment_id = ?", pr.ID).Order("id").Find(&answers).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return answers, nil
}

// Confirmations lists the browser return legs recorded for a payment.
func (s *Service) Confirmations(ctx context.Context, locator string) ([]PaymentConfirmation, error) {
	pr, err := s.Get(ctx, locator)
	if err != nil {
		return nil, err
	}
	var confirmations []PaymentConfirmation
	if err := s.db.WithContext(ctx).Where("payment_id = ?", pr.ID).Order("id").Find(&confirmations).Error; err != nil {
		return nil, apperr.Wrap(err)
	}
	return confirmations, nil
}
