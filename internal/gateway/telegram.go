// Package gateway — telegram.go реализует Gateway поверх go-telegram-bot-api.
package gateway

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// telegramGateway — боевая реализация Gateway.
// Таймаут на каждый вызов обеспечивает http.Client бота (см. app.New).
type telegramGateway struct {
	api *tgbotapi.BotAPI
}

// NewTelegram создаёт Gateway поверх готового Telegram API клиента.
func NewTelegram(api *tgbotapi.BotAPI) Gateway {
	return &telegramGateway{api: api}
}

func (g *telegramGateway) MembershipStatus(ctx context.Context, chatID, userID int64) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", classify("MembershipStatus", err)
	}

	cm, err := g.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return "", classify("MembershipStatus", err)
	}
	return Status(cm.Status), nil
}

func (g *telegramGateway) RemoveMember(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return classify("RemoveMember", err)
	}

	_, err := g.api.Request(tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return classify("RemoveMember", err)
	}
	return nil
}

func (g *telegramGateway) RestoreMember(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return classify("RestoreMember", err)
	}

	_, err := g.api.Request(tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{
			ChatID: chatID,
			UserID: userID,
		},
		OnlyIfBanned: true,
	})
	if err != nil {
		return classify("RestoreMember", err)
	}
	return nil
}

func (g *telegramGateway) ListAdministrators(ctx context.Context, chatID int64) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify("ListAdministrators", err)
	}

	admins, err := g.api.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, classify("ListAdministrators", err)
	}

	ids := make([]int64, 0, len(admins))
	for _, a := range admins {
		if a.User != nil {
			ids = append(ids, a.User.ID)
		}
	}
	return ids, nil
}

// classify переводит ошибку Telegram API в закрытую категорию.
//
// Правила:
//   - migrate_to_chat_id в ответе → KindMigrated (надо чинить записи);
//   - 403 → KindForbidden (бота выгнали или заблокировали);
//   - 429 / retry_after / 5xx / сеть / отменённый контекст → KindTransient;
//   - остальное → KindOther.
func classify(op string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.ResponseParameters.MigrateToChatID != 0 {
			return &Error{
				Kind:      KindMigrated,
				Op:        op,
				NewChatID: apiErr.ResponseParameters.MigrateToChatID,
				Err:       err,
			}
		}
		switch {
		case apiErr.Code == 403:
			return &Error{Kind: KindForbidden, Op: op, Err: err}
		case apiErr.Code == 429 || apiErr.ResponseParameters.RetryAfter > 0:
			if apiErr.ResponseParameters.RetryAfter > 0 {
				log.WithFields(log.Fields{
					"op":          op,
					"retry_after": apiErr.ResponseParameters.RetryAfter,
				}).Warn("Telegram просит замедлиться")
			}
			return &Error{Kind: KindTransient, Op: op, Err: err}
		case apiErr.Code >= 500:
			return &Error{Kind: KindTransient, Op: op, Err: err}
		default:
			return &Error{Kind: KindOther, Op: op, Err: err}
		}
	}

	// Не-API ошибки: сеть, таймаут http.Client, отменённый контекст.
	return &Error{Kind: KindTransient, Op: op, Err: fmt.Errorf("вызов не дошёл до Telegram: %w", err)}
}
