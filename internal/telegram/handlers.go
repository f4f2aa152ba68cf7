package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"speedtest-bot/internal/pipeline"
)

const helpText = `Hello! I measure the internet speed of this host.

/speedtest <location> – run a speed test and record it under <location>. Without a location your last one is reused.
/export <location> – CSV of the recorded tests for <location>, or of all tests.
/export_parquet <location> – the same as a Parquet file.
/chart – bar chart of every recorded test.
/stats <location> – averages per location.`

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !msg.IsCommand() {
		b.sendMessage(msg.Chat.ID, "Send /help to see what I can do.")
		return
	}
	b.logger.Info().
		Int64("user_id", msg.From.ID).
		Str("username", msg.From.UserName).
		Str("command", msg.Command()).
		Str("args", msg.CommandArguments()).
		Msg("incoming command")
	b.handleCommand(ctx, msg)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start", "help":
		b.sendMessage(chatID, helpText)
	case "speedtest":
		b.handleSpeedtest(ctx, msg, args)
	case "export", "rekapcsv":
		b.reply(chatID, b.pipeline.ExportFiltered(args))
	case "export_parquet":
		b.reply(chatID, b.pipeline.ExportParquet(args))
	case "chart":
		b.reply(chatID, b.pipeline.RenderChart())
	case "stats":
		b.reply(chatID, b.pipeline.Stats(args))
	default:
		b.sendMessage(chatID, fmt.Sprintf("Unknown command /%s. Send /help for the list.", msg.Command()))
	}
}

func (b *Bot) handleSpeedtest(ctx context.Context, msg *tgbotapi.Message, args string) {
	// Resolved once so the announcement names the tag that gets recorded.
	loc := b.pipeline.ResolveLocation(msg.From.ID, args)
	b.sendMessage(msg.Chat.ID, fmt.Sprintf("Running speed test for %s, please wait...", loc))
	b.reply(msg.Chat.ID, b.pipeline.MeasureAt(ctx, loc))
}

// reply sends an Outcome as text, a document or a photo.
func (b *Bot) reply(chatID int64, out pipeline.Outcome) {
	if out.Err != nil {
		b.logger.Debug().Err(out.Err).Int64("chat_id", chatID).Msg("replying with failure outcome")
	}
	file := tgbotapi.FileBytes{Name: out.FileName, Bytes: out.Data}

	var c tgbotapi.Chattable
	switch out.Kind {
	case pipeline.KindDocument:
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = out.Text
		c = doc
	case pipeline.KindPhoto:
		photo := tgbotapi.NewPhoto(chatID, file)
		photo.Caption = out.Text
		c = photo
	default:
		b.sendMessage(chatID, out.Text)
		return
	}
	if _, err := b.s.Send(c); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Str("file", out.FileName).Msg("failed to send file")
		b.sendMessage(chatID, "Failed to upload the file, please try again.")
	}
}
