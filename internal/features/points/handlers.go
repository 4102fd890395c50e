// Package points — handlers.go обрабатывает команды очков:
// /points (начисление в ответ на сообщение), /mypoints, /top.
package points

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"points-bot/internal/common"
	"points-bot/internal/gateway"
)

// Handler обрабатывает команды очков.
type Handler struct {
	service *Service
	gw      gateway.Gateway
	bot     *tgbotapi.BotAPI

	// Границы разового начисления (клампим до передачи в сервис)
	minGrant int64
	maxGrant int64
	topLimit int64
}

// NewHandler создаёт обработчик команд очков.
func NewHandler(service *Service, gw gateway.Gateway, bot *tgbotapi.BotAPI, minGrant, maxGrant, topLimit int64) *Handler {
	return &Handler{
		service:  service,
		gw:       gw,
		bot:      bot,
		minGrant: minGrant,
		maxGrant: maxGrant,
		topLimit: topLimit,
	}
}

// HandleGrant — команда /points [n] в ответ на сообщение участника.
// Только для админов группы. Без аргумента начисляет 1 очко.
func (h *Handler) HandleGrant(ctx context.Context, message *tgbotapi.Message, args []string) {
	if message.Chat == nil || message.From == nil {
		return
	}
	if message.Chat.IsPrivate() {
		h.sendMessage(message.Chat.ID, "Команда работает только в группе")
		return
	}
	if message.ReplyToMessage == nil || message.ReplyToMessage.From == nil {
		h.sendMessage(message.Chat.ID, common.ErrReplyRequired.Error())
		return
	}

	// Права проверяем по живому списку админов в Telegram, не по базе
	admins, err := h.gw.ListAdministrators(ctx, message.Chat.ID)
	if err != nil {
		log.WithError(err).WithField("chat_id", message.Chat.ID).Warn("Не удалось проверить права")
		h.sendMessage(message.Chat.ID, "❌ Не удалось проверить права, попробуйте позже")
		return
	}
	if !containsID(admins, message.From.ID) {
		h.sendMessage(message.Chat.ID, common.ErrNotAdmin.Error())
		return
	}

	amount := h.parseAmount(args)
	target := message.ReplyToMessage.From

	total, err := h.service.GrantPoints(ctx,
		UserInfo{
			ID:        target.ID,
			Username:  target.UserName,
			FirstName: target.FirstName,
			LastName:  target.LastName,
		},
		ChatInfo{ID: message.Chat.ID, Title: message.Chat.Title},
		amount,
	)
	if err != nil {
		log.WithError(err).WithField("user_id", target.ID).Error("Ошибка начисления очков")
		h.sendMessage(message.Chat.ID, "❌ Не удалось начислить очки")
		return
	}

	h.sendHTML(message.Chat.ID, fmt.Sprintf(
		"✅ %s теперь имеет <b>%s</b>",
		html.EscapeString(target.FirstName), common.FormatPoints(total),
	))
}

// HandleMyPoints — команда /mypoints. Работает только в личке.
func (h *Handler) HandleMyPoints(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.From == nil {
		return
	}
	if !message.Chat.IsPrivate() {
		h.sendMessage(message.Chat.ID, common.ErrPrivateOnly.Error())
		return
	}

	total := h.service.GetTotal(ctx, message.From.ID)
	h.sendMessage(message.Chat.ID, fmt.Sprintf("🌍 Всего очков: %d", total))
}

// HandleTop — команда /top. Рейтинг участников по общему счёту.
func (h *Handler) HandleTop(ctx context.Context, message *tgbotapi.Message) {
	members, err := h.service.ListRanked(ctx, h.topLimit)
	if err != nil {
		log.WithError(err).Error("Ошибка получения рейтинга")
		h.sendMessage(message.Chat.ID, "❌ Не удалось получить рейтинг")
		return
	}
	if len(members) == 0 {
		h.sendMessage(message.Chat.ID, "Пока никого нет в рейтинге")
		return
	}

	var b strings.Builder
	b.WriteString("<b>🏆 Рейтинг:</b>\n")
	for i, m := range members {
		fmt.Fprintf(&b, "%d. %s — %s\n",
			i+1, html.EscapeString(m.DisplayName()), common.FormatPoints(m.Total))
	}
	h.sendHTML(message.Chat.ID, b.String())
}

// TrackMessage — пассивный учёт: обычное сообщение в группе
// обновляет last_message_at, очки не меняются.
func (h *Handler) TrackMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil || message.Chat == nil {
		return
	}
	err := h.service.RecordActivity(ctx,
		UserInfo{
			ID:        message.From.ID,
			Username:  message.From.UserName,
			FirstName: message.From.FirstName,
			LastName:  message.From.LastName,
		},
		ChatInfo{ID: message.Chat.ID, Title: message.Chat.Title},
		0,
	)
	if err != nil {
		log.WithError(err).WithField("user_id", message.From.ID).Warn("Не удалось учесть активность")
	}
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// parseAmount разбирает аргумент команды и клампит его в [minGrant, maxGrant].
func (h *Handler) parseAmount(args []string) int64 {
	amount := h.minGrant
	if len(args) > 0 {
		if v, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			amount = v
		}
	}
	if amount < h.minGrant {
		amount = h.minGrant
	}
	if amount > h.maxGrant {
		amount = h.maxGrant
	}
	return amount
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (h *Handler) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
