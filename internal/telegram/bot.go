package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"speedtest-bot/internal/pipeline"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Pipeline is the command surface the bot dispatches to.
type Pipeline interface {
	ResolveLocation(callerID int64, text string) string
	MeasureAt(ctx context.Context, location string) pipeline.Outcome
	ExportFiltered(locationText string) pipeline.Outcome
	ExportParquet(locationText string) pipeline.Outcome
	RenderChart() pipeline.Outcome
	Stats(locationText string) pipeline.Outcome
}

type Bot struct {
	api      *tgbotapi.BotAPI
	s        sender
	pipeline Pipeline
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

func New(botToken string, p Pipeline, logger zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", "telegram").Logger()
	logger.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")
	return &Bot{
		api:      api,
		s:        api,
		pipeline: p,
		logger:   logger,
	}, nil
}

// Start polls for updates until ctx is cancelled. Every update is handled on
// its own goroutine so a running speed test does not block other callers.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(msg *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleIncomingMessage(ctx, msg)
			}(update.Message)
		}
	}
}

// SendText delivers a plain message, e.g. the result of a scheduled run.
func (b *Bot) SendText(chatID int64, text string) {
	b.sendMessage(chatID, text)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}
