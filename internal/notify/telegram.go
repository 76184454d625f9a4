package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Telegram posts events to one chat through the Bot API.
type Telegram struct {
	bot    *telego.Bot
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, ev Event) error {
	if t == nil || t.bot == nil {
		return nil
	}
	_, err := t.bot.SendMessage(ctx, tu.Message(tu.ID(t.chatID), ev.Text()))
	return err
}
