package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/tubefetch/internal/config"
	"github.com/mediavault/tubefetch/internal/models"
)

// Notifier sends best-effort chat messages. Send failures are logged and
// swallowed; they never fail the workflow that triggered them.
type Notifier struct {
	cfg config.Config
	api *tgbotapi.BotAPI
	log *slog.Logger
}

func NewNotifier(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, api: api, log: log}
}

func (n *Notifier) Send(userTelegramID int64, text string) {
	msg := tgbotapi.NewMessage(userTelegramID, text)
	if _, err := n.api.Send(msg); err != nil {
		n.log.Error("notify user", "user", userTelegramID, "err", err)
	}
}

// NotifyOperators alerts every configured operator about a topup request
// awaiting a decision, with inline approve/reject controls.
func (n *Notifier) NotifyOperators(req *models.TopupRequest, requester *models.User) {
	who := fmt.Sprintf("user %d", req.UserID)
	if requester != nil {
		who = requester.DisplayName()
		if who == "" {
			who = fmt.Sprintf("user %d", requester.TelegramID)
		}
	}
	text := fmt.Sprintf(
		"💳 Topup request #%d\n\nFrom: %s\nPackage: %d tokens\nPrice: %s\nProof received: yes",
		req.ID, who, req.TokenAmount, formatPrice(req.PriceMinorUnits),
	)
	keyboard := operatorDecisionKeyboard(req.ID)
	for operatorID := range n.cfg.AdminUserIDs {
		msg := tgbotapi.NewMessage(operatorID, text)
		msg.ReplyMarkup = keyboard
		if _, err := n.api.Send(msg); err != nil {
			n.log.Error("notify operator", "operator", operatorID, "request", req.ID, "err", err)
		}
	}
}
