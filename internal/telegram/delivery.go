package telegram

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mediavault/tubefetch/internal/media"
	"github.com/mediavault/tubefetch/internal/storage"
)

// Delivery implements both delivery channels: direct Telegram uploads and
// storage links via the S3 uploader.
type Delivery struct {
	api     *tgbotapi.BotAPI
	storage *storage.Uploader
	log     *slog.Logger
}

func NewDelivery(api *tgbotapi.BotAPI, storage *storage.Uploader, log *slog.Logger) *Delivery {
	return &Delivery{api: api, storage: storage, log: log}
}

func (d *Delivery) ToDirect(ctx context.Context, art *media.Artifact, recipient int64, audio bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := tgbotapi.FilePath(art.Path)
	var msg tgbotapi.Chattable
	if audio {
		cfg := tgbotapi.NewAudio(recipient, file)
		cfg.Caption = art.Title
		msg = cfg
	} else {
		cfg := tgbotapi.NewVideo(recipient, file)
		cfg.Caption = art.Title
		cfg.SupportsStreaming = true
		msg = cfg
	}

	if _, err := d.api.Send(msg); err != nil {
		return fmt.Errorf("send file to telegram: %w", err)
	}
	d.log.Info("delivered via telegram", "recipient", recipient, "title", art.Title)
	return nil
}

func (d *Delivery) ToStorage(ctx context.Context, art *media.Artifact) (string, error) {
	link, err := d.storage.Upload(ctx, art)
	if err != nil {
		return "", err
	}
	d.log.Info("delivered via storage", "title", art.Title, "link", link)
	return link, nil
}
