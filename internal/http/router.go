package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/codenerix/payments/internal/config"
	"github.com/codenerix/payments/internal/http/handlers"
	"github.com/codenerix/payments/internal/http/middleware"
	"github.com/codenerix/payments/internal/modules/currencies"
	"github.com/codenerix/payments/internal/modules/payments"
)

// NewRouter wires the payment services and mounts the public API. The sink
// receives settlement events; pass nil to only log them.
func NewRouter(logger *slog.Logger, db *gorm.DB, cfg *config.Config, sink payments.EventSink) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.ErrorHandler(logger))

	registry := payments.NewRegistry(
		payments.NewPaypalAdapter(cfg, logger),
		payments.NewRedsysAdapter(cfg, logger),
		payments.NewRedsysXMLAdapter(cfg, logger),
		payments.NewYeepayAdapter(cfg, logger),
	)

	currencyRepo := currencies.NewRepo(db)
	svc := payments.NewService(db, cfg, registry, currencyRepo, logger)
	confirmSvc := payments.NewConfirmService(db, cfg, registry, logger)
	answerSvc := payments.NewAnswerService(db, cfg, registry, logger)
	notifier := payments.NewNotifier(sink, logger)

	paymentHandler := handlers.NewPaymentHandler(logger, cfg, svc)
	platformHandler := handlers.NewPlatformHandler(cfg, currencyRepo)
	actionHandler := handlers.NewActionHandler(logger, cfg, svc, confirmSvc, answerSvc, notifier)

	api := r.Group("/payments")
	{
		api.POST("/create", paymentHandler.Create)
		api.GET("/detail/:locator", paymentHandler.Detail)
		api.GET("/approval/:locator", paymentHandler.Approval)
		api.GET("/platforms", platformHandler.List)
		api.GET("/currencies", platformHandler.ListCurrencies)

		api.GET("/action/:locator/:action", actionHandler.Handle)
		api.POST("/action/:locator/:action", actionHandler.Handle)
		api.GET("/confirmation/:locator/:action/:error", actionHandler.Confirmation)
	}

	return r
}
