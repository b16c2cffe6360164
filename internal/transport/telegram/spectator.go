// Package telegram posts a running commentary of games to a Telegram chat.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mroshb/trivia_arena/internal/distributor"
	"github.com/mroshb/trivia_arena/internal/events"
	"github.com/mroshb/trivia_arena/internal/models"
	"github.com/mroshb/trivia_arena/pkg/logger"
	"github.com/mroshb/trivia_arena/pkg/utils"
	"go.uber.org/zap"
)

const (
	maxSendAttempts = 3
	queueSize       = 256
)

var errQueueFull = errors.New("spectator queue is full")

// Sender is the part of the bot API the spectator uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Spectator is a distributor sink that mirrors the public game channel of
// every room into one chat. Deliver renders and queues, Run sends.
type Spectator struct {
	api    Sender
	chatID int64
	queue  chan string
	log    *zap.SugaredLogger
}

func NewSpectator(api Sender, chatID int64) *Spectator {
	return &Spectator{
		api:    api,
		chatID: chatID,
		queue:  make(chan string, queueSize),
		log:    logger.Named("telegram"),
	}
}

// Connect authorizes the bot token and returns a spectator for chatID.
func Connect(token string, chatID int64, debug bool) (*Spectator, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug
	logger.Info("Authorized on account", "username", api.Self.UserName)
	return NewSpectator(api, chatID), nil
}

func (s *Spectator) Name() string { return "telegram" }

func (s *Spectator) Deliver(ctx context.Context, msg distributor.Message) error {
	if msg.Channel != events.ChannelGame && msg.EventType != events.TypeHostChanged {
		return nil
	}

	e, err := events.Decode(msg.Payload)
	if err != nil {
		return err
	}
	text := render(e)
	if text == "" {
		return nil
	}

	select {
	case s.queue <- text:
		return nil
	default:
		return errQueueFull
	}
}

// Run sends queued messages until ctx is done.
func (s *Spectator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-s.queue:
			if err := s.send(ctx, text); err != nil {
				s.log.Errorw("Dropping spectator message", "chatId", s.chatID, "error", err)
			}
		}
	}
}

func (s *Spectator) send(ctx context.Context, text string) error {
	out := tgbotapi.NewMessage(s.chatID, text)
	out.ParseMode = tgbotapi.ModeHTML

	var err error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if _, err = s.api.Send(out); err == nil {
			return nil
		}
		s.log.Warnw("Failed to send message", "chatId", s.chatID, "attempt", attempt, "error", err)
		if !utils.IsTransientNetworkError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}
	return err
}

func render(e events.Event) string {
	room := html.EscapeString(e.Meta().RoomCode)

	switch ev := e.(type) {
	case *events.GameStarting:
		return fmt.Sprintf("🎮 <b>Room %s</b> is starting: %d questions, %ds each", room, ev.TotalQuestions, ev.TimerSeconds)

	case *events.QuestionStart:
		var b strings.Builder
		fmt.Fprintf(&b, "❓ <b>Room %s</b> question %d/%d\n%s\n", room, ev.QuestionIndex+1, ev.TotalQuestions, html.EscapeString(ev.Question.Text))
		for _, o := range ev.Question.Options {
			fmt.Fprintf(&b, "\n%d. %s", o.AnswerIndex+1, html.EscapeString(o.AnswerText))
		}
		return b.String()

	case *events.QuestionEnd:
		var b strings.Builder
		fmt.Fprintf(&b, "✅ <b>Room %s</b> answer: %s", room, html.EscapeString(ev.CorrectAnswerText))
		writeStandings(&b, ev.Leaderboard)
		return b.String()

	case *events.GameFinished:
		var b strings.Builder
		fmt.Fprintf(&b, "🏆 <b>Room %s</b> finished", room)
		writeStandings(&b, ev.Podium)
		return b.String()

	case *events.HostChanged:
		return fmt.Sprintf("👑 <b>Room %s</b> has a new host: %s", room, html.EscapeString(ev.NewHostNickname))
	}
	return ""
}

func writeStandings(b *strings.Builder, entries []models.LeaderboardEntry) {
	for _, e := range entries {
		fmt.Fprintf(b, "\n%d. %s (%d)", e.Rank, html.EscapeString(e.Nickname), e.TotalScore)
	}
}
