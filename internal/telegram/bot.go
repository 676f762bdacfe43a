// Package telegram runs the game as a Telegram bot using long polling.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memecoinsphinx/sphinx/internal/game"
	"github.com/memecoinsphinx/sphinx/internal/messenger"
)

const (
	pollTimeoutSeconds = 60
	deliverTimeout     = 30 * time.Second
)

// Game handles one inbound event for a player.
type Game interface {
	Handle(ctx context.Context, userID string, ev game.Event) (game.Reply, error)
}

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	Sender
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Options configures a Bot.
type Options struct {
	Logger *slog.Logger
}

// inbound is one update addressed to a player. The session belongs to the
// sender, replies go to the chat the message came from.
type inbound struct {
	userID string
	chatID string
	ev     game.Event
}

// Bot polls Telegram for updates and feeds them to the game. Each player
// with pending updates gets its own goroutine that handles them in arrival
// order and exits once its queue is empty, so a slow turn never holds up
// anyone else.
type Bot struct {
	api       API
	game      Game
	messenger *Messenger
	logger    *slog.Logger

	mu     sync.Mutex
	queues map[string][]inbound
	wg     sync.WaitGroup
}

// Dial connects to the Bot API with token.
func Dial(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	return api, nil
}

// New creates a bot.
func New(api API, g Game, images messenger.ImageSet, opts Options) *Bot {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bot{
		api:       api,
		game:      g,
		messenger: NewMessenger(api, images),
		logger:    opts.Logger,
		queues:    make(map[string][]inbound),
	}
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for in-flight updates to finish.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)
	defer b.wg.Wait()

	b.logger.Info("Telegram bot polling")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("Telegram bot stopping")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			in, ok := eventFromUpdate(upd)
			if !ok {
				continue
			}
			b.enqueue(ctx, in)
		}
	}
}

// enqueue appends in to its player's queue, starting a drainer when the
// player has none running.
func (b *Bot) enqueue(ctx context.Context, in inbound) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, running := b.queues[in.userID]
	b.queues[in.userID] = append(q, in)
	if running {
		return
	}
	b.wg.Add(1)
	go b.drain(ctx, in.userID)
}

// drain handles a player's updates until the queue is empty. Updates still
// queued when ctx is cancelled are dropped.
func (b *Bot) drain(ctx context.Context, userID string) {
	defer b.wg.Done()
	for {
		b.mu.Lock()
		q := b.queues[userID]
		if len(q) == 0 || ctx.Err() != nil {
			if len(q) > 0 {
				b.logger.Warn("Dropping queued updates", "user_id", userID, "count", len(q))
			}
			delete(b.queues, userID)
			b.mu.Unlock()
			return
		}
		in := q[0]
		b.queues[userID] = q[1:]
		b.mu.Unlock()

		b.handleUpdate(ctx, in)
	}
}

func (b *Bot) handleUpdate(ctx context.Context, in inbound) {
	reply := b.handle(ctx, in.userID, in.ev)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliverTimeout)
	defer cancel()
	if err := messenger.Deliver(dctx, b.messenger, in.chatID, reply.Messages); err != nil {
		b.logger.Error("Failed to deliver reply", "error", err, "user_id", in.userID, "chat_id", in.chatID)
	}
}

// handle runs one event, turning failures and panics into the generic notice.
func (b *Bot) handle(ctx context.Context, userID string, ev game.Event) (reply game.Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("Panic while handling update", "panic", rec, "user_id", userID)
			reply = game.InternalErrorReply()
		}
	}()

	reply, err := b.game.Handle(ctx, userID, ev)
	if err != nil {
		b.logger.Error("Update failed", "error", err, "user_id", userID)
		return game.InternalErrorReply()
	}
	return reply
}

// eventFromUpdate maps a Telegram update to a player and event. Players are
// Telegram users, so two people in one group keep separate games. Updates
// without message text are ignored.
func eventFromUpdate(upd tgbotapi.Update) (inbound, bool) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return inbound{}, false
	}
	in := inbound{chatID: strconv.FormatInt(msg.Chat.ID, 10)}
	// Channel posts carry no sender.
	if msg.From != nil {
		in.userID = strconv.FormatInt(msg.From.ID, 10)
	} else {
		in.userID = in.chatID
	}
	if msg.IsCommand() {
		in.ev = game.CommandEvent(msg.Command(), msg.Text)
	} else {
		in.ev = game.TextEvent{Text: msg.Text}
	}
	return in, true
}
