// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wali/internal/http/handlers"
	"wali/internal/http/middleware"
	"wali/internal/modules/dispatch"
	"wali/internal/modules/order"
	"wali/internal/modules/payment"
	"wali/internal/modules/pricing"
)

type ServerDeps struct {
	Order      *order.Service
	Pricing    *pricing.Service
	Payments   *payment.Reconciler
	Dispatch   *dispatch.Service
	AdminToken string
}

func NewRouter(deps ServerDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(), middleware.Recovery())

	r.GET("/health", handlers.Health)

	api := r.Group("/api")
	quoteHandler := handlers.NewQuoteHandler(deps.Pricing)
	api.POST("/quotes", quoteHandler.Quote)

	orderHandler := handlers.NewOrderHandler(deps.Order)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.GET("/orders/:id/events", orderHandler.Events)
	api.POST("/orders/:id/transitions", orderHandler.Transition)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)
	api.POST("/orders/:id/reprice", orderHandler.Reprice)

	if deps.Dispatch != nil {
		courierHandler := handlers.NewCourierHandler(deps.Dispatch)
		api.GET("/orders/:id/couriers", courierHandler.Candidates)
		api.PUT("/couriers/:id/position", courierHandler.UpdatePosition)
		api.DELETE("/couriers/:id/position", courierHandler.RemovePosition)
	}

	webhookHandler := handlers.NewWebhookHandler(deps.Payments)
	r.POST("/webhooks/payments/:provider", webhookHandler.Payment)

	adminHandler := handlers.NewAdminHandler(deps.Pricing)
	admin := r.Group("/admin", middleware.AdminToken(deps.AdminToken))
	admin.POST("/pricing/reload", adminHandler.ReloadPricing)

	return r
}

type Server struct {
	srv *http.Server
}

func NewServer(addr string, deps ServerDeps) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	slog.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
