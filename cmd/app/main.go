package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-ai-billing/internal/config"
	"story-ai-billing/internal/domain/model"
	"story-ai-billing/internal/domain/ports/adapter"
	"story-ai-billing/internal/infra/adapters/content"
	"story-ai-billing/internal/infra/adapters/notify"
	pg "story-ai-billing/internal/infra/db/postgres"
	"story-ai-billing/internal/infra/gateway/freedompay"
	"story-ai-billing/internal/infra/gateway/stripe"
	"story-ai-billing/internal/infra/logging"
	"story-ai-billing/internal/infra/metrics"
	red "story-ai-billing/internal/infra/redis"
	"story-ai-billing/internal/infra/sched"
	"story-ai-billing/internal/infra/web"
	"story-ai-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	paymentRepo := pg.NewPaymentRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	profileRepo := pg.NewRecurringProfileRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Payment providers ----
	providers := map[string]adapter.PaymentProvider{}
	if cfg.Payment.FreedomPay.SecretKey != "" {
		fp, err := freedompay.NewClient(freedompay.Config{
			MerchantID: cfg.Payment.FreedomPay.MerchantID,
			SecretKey:  cfg.Payment.FreedomPay.SecretKey,
			BaseURL:    cfg.Payment.FreedomPay.BaseURL,
			CheckURL:   cfg.Payment.FreedomPay.CheckURL,
			ResultURL:  cfg.Payment.FreedomPay.ResultURL,
			SuccessURL: cfg.Payment.FreedomPay.SuccessURL,
			FailureURL: cfg.Payment.FreedomPay.FailureURL,
		})
		if err != nil {
			log.Fatalf("freedompay: %v", err)
		}
		providers[model.ProviderFreedomPay] = fp
	}
	if cfg.Payment.Stripe.APIKey != "" {
		st, err := stripe.NewClient(stripe.Config{
			APIKey:        cfg.Payment.Stripe.APIKey,
			WebhookSecret: cfg.Payment.Stripe.WebhookSecret,
			SuccessURL:    cfg.Payment.Stripe.SuccessURL,
			CancelURL:     cfg.Payment.Stripe.CancelURL,
		})
		if err != nil {
			log.Fatalf("stripe: %v", err)
		}
		providers[model.ProviderStripe] = st
	}
	recurringProvider, ok := providers[model.ProviderFreedomPay]
	if !ok {
		recurringProvider = providers[model.ProviderStripe]
	}

	// ---- Content generator (OpenAI -> Gemini -> canned) ----
	var generator adapter.ContentGenerator
	switch {
	case cfg.AI.OpenAIKey != "":
		generator, err = content.NewOpenAIGenerator(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("openai generator: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("content generator: openai")
	case cfg.AI.GeminiKey != "":
		generator, err = content.NewGeminiGenerator(ctx, cfg.AI.GeminiKey, cfg.AI.DefaultModel)
		if err != nil {
			log.Fatalf("gemini generator: %v", err)
		}
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("content generator: gemini")
	default:
		generator = content.NoopGenerator{}
		logger.Warn().Msg("no AI key configured, using canned chapters")
	}

	// ---- Ops notifier ----
	var notifier adapter.Notifier = notify.NoopNotifier{}
	if cfg.Notify.TelegramToken != "" {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
		if err != nil {
			log.Fatalf("telegram notifier: %v", err)
		}
		notifier = tg
	}

	// ---- Use cases ----
	catalog := model.DefaultCatalog()
	if len(cfg.Payment.Catalog) > 0 {
		catalog = cfg.Payment.Catalog
	}
	pricingUC := usecase.NewPricingUseCase(cfg.Payment.Rates)
	userUC := usecase.NewUserUseCase(userRepo)
	chapterUC := usecase.NewChapterUseCase(userRepo, generator, logger)
	checkoutUC := usecase.NewCheckoutUseCase(paymentRepo, catalog, providers, cfg.Payment.DefaultProvider, pricingUC, logger)
	settlementUC := usecase.NewSettlementUseCase(txManager, paymentRepo, userRepo, catalog,
		func(ctx context.Context, p *model.Payment) {
			metrics.IncPayment(p.Provider, "completed")
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
			metrics.AddCreditsSettled(p.CreditsAdded)
			notifier.PaymentCompleted(ctx, p)
		}, logger)
	ledgerUC := usecase.NewLedgerUseCase(paymentRepo, logger)
	recurringUC := usecase.NewRecurringUseCase(profileRepo, paymentRepo, recurringProvider, settlementUC, catalog, locker, logger)
	callbackUC := usecase.NewCallbackUseCase(
		cfg.Payment.FreedomPay.SecretKey,
		cfg.Payment.Stripe.WebhookSecret,
		ledgerUC, settlementUC, recurringUC, logger,
	)

	// ---- Background workers ----
	go func() {
		_ = sched.NewRecurringWorker(cfg.Scheduler.RecurringInterval, recurringUC, logger).Run(ctx)
	}()
	go func() {
		_ = sched.NewPaymentReconciler(paymentRepo, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.PendingExpiryAfter, logger).Run(ctx)
	}()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, 0)
	server := web.NewServer(checkoutUC, callbackUC, chapterUC, userUC, recurringUC, auth, cfg.Payment.FreedomPay.SecretKey, logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}
