package telegram

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/tubefetch/internal/models"
)

func mainMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 My Tokens", encodeAction(cbTokens, "")),
			tgbotapi.NewInlineKeyboardButtonData("📜 History", encodeAction(cbHistory, "")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Topup", encodeAction(cbTopupMenu, "")),
			tgbotapi.NewInlineKeyboardButtonData("🎁 Daily Bonus", encodeAction(cbBonus, "")),
		),
	)
}

func registrationKeyboard(channelLink string) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{}
	if channelLink != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📢 Join Channel", channelLink),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Verify", encodeAction(cbVerify, "")),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func formatKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 MP3", encodeAction(cbFormat, "mp3")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📹 360p", encodeAction(cbFormat, "360p")),
			tgbotapi.NewInlineKeyboardButtonData("📺 720p", encodeAction(cbFormat, "720p")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎬 1080p", encodeAction(cbFormat, "1080p")),
			tgbotapi.NewInlineKeyboardButtonData("⭐ Best", encodeAction(cbFormat, "best")),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Cancel", encodeAction(cbCancel, "")),
		),
	)
}

func deliveryKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📨 Telegram", encodeAction(cbDeliver, string(models.DeliveryDirect))),
			tgbotapi.NewInlineKeyboardButtonData("☁️ Storage Link", encodeAction(cbDeliver, string(models.DeliveryStorage))),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🚫 Cancel", encodeAction(cbCancel, "")),
		),
	)
}

func topupKeyboard(packages []models.TokenPackage) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(packages)+1)
	for _, pkg := range packages {
		label := fmt.Sprintf("%d Tokens — %s", pkg.Tokens, formatPrice(pkg.PriceMinorUnits))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, encodeAction(cbPackage, pkg.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", encodeAction(cbMenu, "")),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func topupConfirmKeyboard(packageID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📤 Send Proof", encodeAction(cbProof, packageID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("« Back", encodeAction(cbTopupMenu, "")),
		),
	)
}

func operatorDecisionKeyboard(requestID int64) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatInt(requestID, 10)
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", encodeAction(cbApprove, id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", encodeAction(cbReject, id)),
		),
	)
}

func formatPrice(minorUnits int) string {
	return fmt.Sprintf("Rp %d", minorUnits)
}
