package main

import (
	"context"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/robfig/cron"
	"go.uber.org/zap"

	"coachbot/clients/coachapi"
	"coachbot/internal/bot"
	"coachbot/internal/config"
	"coachbot/internal/i18n"
	"coachbot/internal/logger"
	"coachbot/internal/server"
	"coachbot/internal/session"
	"coachbot/internal/telemetry"
	"coachbot/internal/validation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Ошибка конфигурации: %v", err)
	}

	zlog, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := telemetry.Setup(ctx, "coachbot", cfg.OTLPEndpoint, cfg.OTLPInsecure, zlog)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			zlog.Warn("Ошибка остановки трассировки", zap.Error(err))
		}
	}()

	fallback := i18n.ParseLanguage(cfg.DefaultLocale, i18n.LangRussian)
	tr, err := i18n.New(fallback, zlog)
	if err != nil {
		zlog.Fatal("Ошибка загрузки локализации", zap.Error(err))
	}
	if cfg.LocalesDir != "" {
		if err := tr.LoadDir(cfg.LocalesDir); err != nil {
			zlog.Fatal("Ошибка загрузки локализации", zap.Error(err))
		}
		if err := tr.Watch(ctx, cfg.LocalesDir); err != nil {
			zlog.Warn("Перезагрузка локализации отключена", zap.Error(err))
		}
	}

	v := validation.New()
	api := coachapi.NewClient(cfg.APIBaseURL, cfg.APITimeout, coachapi.WithLogger(zlog))
	sessions := session.NewStore(api, v, fallback, zlog)

	tg, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		zlog.Fatal("Ошибка подключения к Telegram", zap.Error(err))
	}
	tg.Debug = cfg.BotDebug
	zlog.Info("Бот авторизован", zap.String("username", tg.Self.UserName))

	b := bot.New(tg, sessions, tr, v, zlog, bot.Options{
		PageSize:  cfg.PageSize,
		SendRate:  cfg.SendRate,
		SendBurst: cfg.SendBurst,
	})

	sweeper := cron.New()
	if err := sweeper.AddFunc(cfg.SweepSchedule, func() { b.Sweep(cfg.SessionTTL) }); err != nil {
		zlog.Fatal("Неверное расписание SWEEP_SCHEDULE", zap.String("schedule", cfg.SweepSchedule), zap.Error(err))
	}
	sweeper.Start()
	defer sweeper.Stop()

	if cfg.UseWebhook() {
		runWebhook(ctx, cfg, tg, b, zlog)
	} else {
		runPolling(ctx, tg, b, zlog)
	}
	zlog.Info("Бот остановлен")
}

func runPolling(ctx context.Context, tg *tgbotapi.BotAPI, b *bot.Bot, zlog *zap.Logger) {
	if _, err := tg.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		zlog.Warn("Не удалось снять webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := tg.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		tg.StopReceivingUpdates()
	}()

	zlog.Info("Запущен long polling")
	b.Run(ctx, updates)
}

func runWebhook(ctx context.Context, cfg *config.Config, tg *tgbotapi.BotAPI, b *bot.Bot, zlog *zap.Logger) {
	path := webhookPath(cfg.WebhookURL)

	params := tgbotapi.Params{"url": cfg.WebhookURL}
	params.AddNonEmpty("secret_token", cfg.WebhookSecret)
	if _, err := tg.MakeRequest("setWebhook", params); err != nil {
		zlog.Fatal("Ошибка регистрации webhook", zap.Error(err))
	}

	updates := make(chan tgbotapi.Update, 100)
	srv := server.New(server.Config{
		Addr:   cfg.ListenAddr,
		Path:   path,
		Secret: cfg.WebhookSecret,
	}, func(update tgbotapi.Update) {
		select {
		case updates <- update:
		case <-ctx.Done():
		}
	}, zlog)

	go func() {
		if err := srv.Start(); err != nil {
			zlog.Error("Ошибка webhook сервера", zap.Error(err))
		}
	}()

	b.Run(ctx, updates)

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		zlog.Warn("Ошибка остановки сервера", zap.Error(err))
	}
}

// webhookPath достаёт путь из WEBHOOK_URL
func webhookPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "/webhook"
	}
	return u.Path
}
