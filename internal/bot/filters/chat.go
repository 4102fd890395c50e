// Package filters — входной фильтр апдейтов.
// Бот работает в любых группах и в личке; каналы, служебные
// сообщения и псевдоаккаунт анонимных админов отбрасываются здесь,
// до всей остальной обработки.
package filters

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

type ChatFilter struct {
	// Сообщения от этого username не обрабатываем никогда
	excludedUsername string
}

func NewChatFilter(excludedUsername string) *ChatFilter {
	return &ChatFilter{excludedUsername: excludedUsername}
}

// Allow решает, обрабатывать ли сообщение.
func (f *ChatFilter) Allow(message *tgbotapi.Message) bool {
	if message == nil || message.Chat == nil {
		return false
	}
	if message.From == nil {
		// Служебное сообщение или пост канала
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
			"chat_type": message.Chat.Type,
		}).Debug("deny: nil message.From")
		return false
	}

	if f.excludedUsername != "" && message.From.UserName == f.excludedUsername {
		log.WithFields(log.Fields{
			"component": "ChatFilter",
			"chat_id":   message.Chat.ID,
		}).Debug("deny: excluded pseudo-account")
		return false
	}

	if message.Chat.IsPrivate() || message.Chat.IsGroup() || message.Chat.IsSuperGroup() {
		return true
	}

	log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   message.Chat.ID,
		"chat_type": message.Chat.Type,
	}).Debug("deny: unsupported chat type")
	return false
}
