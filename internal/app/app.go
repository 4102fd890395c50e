// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт клиент MongoDB, репозиторий, сервисы,
// обработчики, фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"points-bot/internal/bot"
	"points-bot/internal/bot/filters"
	"points-bot/internal/config"
	"points-bot/internal/db/mongodb"
	"points-bot/internal/features/cleanup"
	"points-bot/internal/features/points"
	"points-bot/internal/gateway"
	"points-bot/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Mongo     *mongo.Client
	BotAPI    *tgbotapi.BotAPI
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	client, err := mongodb.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	repo := points.NewRepository(client.Database(cfg.DBName).Collection("members"))
	if err := repo.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("ошибка подготовки индексов: %w", err)
	}

	// === 2. Telegram Bot API ===
	// Свой http.Client с таймаутом: один зависший вызов API не должен
	// останавливать фоновые чистки навсегда
	httpClient := &http.Client{Timeout: cfg.GatewayTimeout}
	botAPI, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramBotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	// === 3. Шлюз Telegram (членство, кики, админы) ===
	gw := gateway.NewTelegram(botAPI)

	// === 4. Сервисы ===
	pointsService := points.NewService(repo, cfg.ExcludedUsername)

	// === 5. Обработчики ===
	pointsHandler := points.NewHandler(pointsService, gw, botAPI,
		cfg.PointsMin, cfg.PointsMax, cfg.TopLimit)

	// === 6. Фильтры ===
	chatFilter := filters.NewChatFilter(cfg.ExcludedUsername)

	// === 7. Собираем бота ===
	b := bot.New(botAPI, cfg, pointsHandler, chatFilter)

	// === 8. Фоновые чистки ===
	reconciler := cleanup.NewReconciler(repo, gw, cfg.OrphanGracePeriod)
	enforcer := cleanup.NewEnforcer(repo, gw, cfg.DormancyThreshold)
	janitor := cleanup.NewJanitor(repo, cfg.OrphanGracePeriod)

	scheduler := jobs.NewScheduler(cfg, reconciler, enforcer, janitor, func(text string) {
		b.SendToChat(cfg.LogChatID, text)
	})

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		Mongo:     client,
		BotAPI:    botAPI,
	}, nil
}
