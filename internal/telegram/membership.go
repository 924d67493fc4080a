package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/tubefetch/internal/config"
)

// Membership checks the required-channel precondition through the bot API.
type Membership struct {
	cfg config.Config
	api *tgbotapi.BotAPI
}

func NewMembership(cfg config.Config, api *tgbotapi.BotAPI) *Membership {
	return &Membership{cfg: cfg, api: api}
}

func (m *Membership) IsMember(ctx context.Context, telegramID int64) (bool, error) {
	chatCfg := tgbotapi.ChatConfigWithUser{UserID: telegramID}
	switch {
	case m.cfg.RequiredChannelID != 0:
		chatCfg.ChatID = m.cfg.RequiredChannelID
	case m.cfg.RequiredChannel != "":
		chatCfg.SuperGroupUsername = "@" + strings.TrimPrefix(m.cfg.RequiredChannel, "@")
	default:
		return false, fmt.Errorf("required channel not configured")
	}

	member, err := m.api.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: chatCfg})
	if err != nil {
		return false, fmt.Errorf("get chat member: %w", err)
	}

	switch strings.ToLower(member.Status) {
	case "creator", "administrator", "member":
		return true, nil
	default:
		return false, nil
	}
}

// ChannelLink is the join URL shown alongside the verification prompt.
func (m *Membership) ChannelLink() string {
	if m.cfg.RequiredChannel != "" {
		return "https://t.me/" + strings.TrimPrefix(m.cfg.RequiredChannel, "@")
	}
	return ""
}
