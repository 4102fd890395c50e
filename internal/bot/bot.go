// Package bot содержит главный модуль бота — инициализацию, запуск и остановку.
// bot.go принимает апдейты Telegram, фильтрует их и раздаёт обработчикам.
package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"points-bot/internal/bot/filters"
	"points-bot/internal/bot/middleware"
	"points-bot/internal/config"
	"points-bot/internal/features/points"
)

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	pointsHandler *points.Handler

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	pointsHandler *points.Handler,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:           api,
		cfg:           cfg,
		chatFilter:    chatFilter,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		pointsHandler: pointsHandler,
		parser:        NewCommandParser(api.Self.UserName),
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": b.cfg.BotMaxInflight,
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			b.rateLimiter.Close()
			return

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return
			}

			// лимит параллелизма
			b.inflight <- struct{}{}
			go func(upd tgbotapi.Update) {
				defer func() { <-b.inflight }()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer middleware.RecoverFromPanic()

	message := update.Message
	if message == nil {
		return
	}

	if !b.chatFilter.Allow(message) {
		return
	}

	middleware.LogMessage(message)

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)

	if isCommand {
		// Командами можно заспамить — режем частоту на пользователя
		if !b.rateLimiter.Allow(message.From.ID) {
			log.WithField("user_id", message.From.ID).Debug("rate limited")
			return
		}
		b.routeCommand(ctx, message, cmd, args)
		return
	}

	// Не команда: в группе любое сообщение — это активность
	if message.Chat.IsGroup() || message.Chat.IsSuperGroup() {
		b.pointsHandler.TrackMessage(ctx, message)
	}
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, message *tgbotapi.Message, cmd string, args []string) {
	log.WithFields(log.Fields{
		"cmd":  cmd,
		"args": args,
	}).Debug("routing command")

	switch cmd {
	case "start", "help":
		b.sendMessage(message.Chat.ID,
			"🤖 Бот активен. Команды: /points [n] (админ, ответом), /mypoints (в личке), /top")

	case "points", "очки":
		b.pointsHandler.HandleGrant(ctx, message, args)

	case "mypoints", "моиочки":
		b.pointsHandler.HandleMyPoints(ctx, message)

	case "top", "топ":
		b.pointsHandler.HandleTop(ctx, message)
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// SendToChat отправляет сообщение в произвольный чат (итоги чисток в LOG_CHAT_ID).
func (b *Bot) SendToChat(chatID int64, text string) {
	if chatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Debug("Не удалось отправить сообщение")
	}
}

// CommandParser парсит команды с префиксами !, . и /.
// Суффикс @botname ("/top@MyBot" в группах) отбрасывается.
type CommandParser struct {
	validPrefixes []string
	botUsername   string
}

// NewCommandParser создаёт парсер команд.
func NewCommandParser(botUsername string) *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"!", ".", "/"},
		botUsername:   botUsername,
	}
}

// ParseCommand разбирает текст на команду и аргументы.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(strings.TrimSpace(text))
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])

	// "/top@MyBot" → "top"; чужие "/top@OtherBot" игнорируем
	if at := strings.IndexByte(command, '@'); at >= 0 {
		mention := command[at+1:]
		command = command[:at]
		if p.botUsername != "" && !strings.EqualFold(mention, p.botUsername) {
			return "", nil, false
		}
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
