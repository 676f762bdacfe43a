// Package game drives the riddle game: it routes each inbound event through
// the session state machine and decides what the sphinx says back.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/memecoinsphinx/sphinx/internal/agent"
	"github.com/memecoinsphinx/sphinx/internal/domain"
	"github.com/memecoinsphinx/sphinx/internal/events"
	"github.com/memecoinsphinx/sphinx/internal/messenger"
	"github.com/memecoinsphinx/sphinx/internal/reward"
	"github.com/memecoinsphinx/sphinx/internal/session"
)

// DefaultCooldown is the wait after a defeat when Options.Cooldown is unset.
const DefaultCooldown = 30 * time.Second

// ErrInternal marks broken invariants. Transports answer it with a generic
// notice; the process keeps running.
var ErrInternal = errors.New("internal game error")

// Responder phrases the sphinx's free-text replies.
type Responder interface {
	Respond(ctx context.Context, p agent.Prompt) (agent.Response, error)
}

// Reply is the orchestrator's answer to one event.
type Reply struct {
	Outcome  domain.Outcome
	State    domain.GameState
	Messages []messenger.Message
}

// Options configures an Orchestrator.
type Options struct {
	Cooldown  time.Duration
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Orchestrator holds no session state of its own; everything lives in the
// session store.
type Orchestrator struct {
	store      *session.Store
	responder  Responder
	dispatcher reward.Dispatcher
	publisher  events.Publisher
	cooldown   time.Duration
	logger     *slog.Logger
}

// New creates an orchestrator.
func New(store *session.Store, responder Responder, dispatcher reward.Dispatcher, opts Options) *Orchestrator {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NopPublisher{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		store:      store,
		responder:  responder,
		dispatcher: dispatcher,
		publisher:  opts.Publisher,
		cooldown:   opts.Cooldown,
		logger:     opts.Logger,
	}
}

// Handle processes one event for userID. Events of the same user are
// serialized; different users proceed in parallel.
func (o *Orchestrator) Handle(ctx context.Context, userID string, ev Event) (Reply, error) {
	unlock := o.store.Lock(userID)
	defer unlock()

	var (
		reply Reply
		err   error
	)
	switch e := ev.(type) {
	case StartEvent:
		reply, err = o.start(userID)
	case TextEvent:
		reply, err = o.text(ctx, userID, e.Text)
	case HintEvent:
		reply, err = o.hint(userID)
	case RulesEvent:
		reply = o.plain(messenger.Text(o.Rules(), messenger.FormatMarkdown))
	case StatsEvent:
		reply = o.plain(messenger.Text(statsText(o.store.Get(userID).Stats), messenger.FormatMarkdown))
	case SurrenderEvent:
		reply, err = o.surrender(ctx, userID)
	default:
		err = fmt.Errorf("%w: unsupported event %T", ErrInternal, ev)
	}
	if err != nil {
		o.logger.Error("event handling failed", "user_id", userID, "event", fmt.Sprintf("%T", ev), "error", err)
		return Reply{}, err
	}

	reply.State = o.store.Get(userID).State
	o.logger.Debug("event handled",
		"user_id", userID,
		"event", fmt.Sprintf("%T", ev),
		"outcome", reply.Outcome,
		"state", reply.State,
	)
	return reply, nil
}

// Rules returns the rules text for the configured limits.
func (o *Orchestrator) Rules() string {
	return rulesText(o.store.MaxAttempts(), domain.CeilSeconds(o.cooldown))
}

// InternalErrorReply is what transports send when Handle fails.
func InternalErrorReply() Reply {
	return Reply{Outcome: domain.OutcomePlain, Messages: []messenger.Message{messenger.Text(internalErrorText, messenger.FormatPlain)}}
}

func (o *Orchestrator) plain(msgs ...messenger.Message) Reply {
	return Reply{Outcome: domain.OutcomePlain, Messages: msgs}
}

func (o *Orchestrator) start(userID string) (Reply, error) {
	err := o.store.StartGame(userID)
	var cdErr *session.CooldownError
	if errors.As(err, &cdErr) {
		return o.plain(messenger.Text(cooldownText(cdErr.Seconds()), messenger.FormatPlain)), nil
	}
	if err != nil {
		return Reply{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	hint, err := o.serveHint(userID)
	if err != nil {
		return Reply{}, err
	}
	o.logger.Info("game started", "user_id", userID, "attempts_remaining", o.store.MaxAttempts())
	return o.plain(
		messenger.Photo(messenger.ImageWelcome, welcomeCaption+"\n\n"+o.Rules()),
		hint,
	), nil
}

// serveHint advances the round and renders the hint, or the exhaustion notice.
func (o *Orchestrator) serveHint(userID string) (messenger.Message, error) {
	hint, ok, err := o.store.NextHint(userID)
	if err != nil {
		return messenger.Message{}, fmt.Errorf("%w: serve hint: %w", ErrInternal, err)
	}
	if !ok {
		return messenger.Text(noMoreHintsText, messenger.FormatPlain), nil
	}
	o.store.RecordHintGiven(userID)

	n := 0
	if round := o.store.Get(userID).Round; round != nil {
		n = round.HintCursor
	}
	return messenger.Text(hintText(n, hint), messenger.FormatMarkdown), nil
}

func (o *Orchestrator) text(ctx context.Context, userID, text string) (Reply, error) {
	switch o.store.Get(userID).State {
	case domain.StateInProgress:
		return o.guess(ctx, userID, text)
	case domain.StateWaitingForWallet:
		return o.wallet(ctx, userID, text)
	default:
		return o.idle(userID), nil
	}
}

// idle answers a player who has no running game: the cooldown is checked,
// and expired lazily, first.
func (o *Orchestrator) idle(userID string) Reply {
	if in, secs := o.store.CheckCooldown(userID); in {
		return o.plain(messenger.Text(cooldownText(secs), messenger.FormatPlain))
	}
	if o.store.Get(userID).State == domain.StateWaitingForWallet {
		return o.plain(messenger.Text(awaitingWalletText, messenger.FormatPlain))
	}
	return o.plain(messenger.Text(notStartedText, messenger.FormatPlain))
}

func (o *Orchestrator) guess(ctx context.Context, userID, text string) (Reply, error) {
	correct, err := o.store.CheckAnswer(userID, text)
	if err != nil {
		return Reply{}, fmt.Errorf("%w: check answer: %w", ErrInternal, err)
	}
	if correct {
		return o.victory(ctx, userID)
	}

	snap := o.store.Get(userID)
	if snap.AttemptsRemaining <= 1 {
		return o.defeat(ctx, userID)
	}

	// The reply is produced before anything is committed so a failing
	// responder leaves the session untouched.
	taunt := wrongGuessFallback(snap.AttemptsRemaining - 1)
	if o.responder != nil {
		hintCursor := 0
		if snap.Round != nil {
			hintCursor = snap.Round.HintCursor
		}
		resp, err := o.responder.Respond(ctx, agent.Prompt{
			UserID:            userID,
			Message:           text,
			AttemptsRemaining: snap.AttemptsRemaining - 1,
			HintCursor:        hintCursor,
			Outcome:           domain.OutcomeWrongGuess,
		})
		if err != nil {
			o.logger.Warn("responder failed, session unchanged", "user_id", userID, "error", err)
			return o.plain(messenger.Text(apologyText, messenger.FormatPlain)), nil
		}
		taunt = resp.Text
	}

	if _, _, err := o.store.UseAttempt(userID); err != nil {
		return Reply{}, fmt.Errorf("%w: use attempt: %w", ErrInternal, err)
	}
	hint, err := o.serveHint(userID)
	if err != nil {
		return Reply{}, err
	}
	return Reply{
		Outcome:  domain.OutcomeWrongGuess,
		Messages: []messenger.Message{messenger.Text(taunt, messenger.FormatPlain), hint},
	}, nil
}

func (o *Orchestrator) victory(ctx context.Context, userID string) (Reply, error) {
	if err := o.store.EnterWaitingForWallet(userID); err != nil {
		return Reply{}, fmt.Errorf("%w: enter waiting for wallet: %w", ErrInternal, err)
	}
	snap := o.store.Get(userID)
	subject, _ := o.store.CurrentSubject(userID)
	o.logger.Info("player won", "user_id", userID, "subject", subject, "attempts_remaining", snap.AttemptsRemaining)

	e := events.New(events.TypeVictory, userID)
	e.Subject = subject
	e.AttemptsUsed = o.store.MaxAttempts() - snap.AttemptsRemaining + 1
	o.publish(ctx, e)

	return Reply{
		Outcome:  domain.OutcomeVictory,
		Messages: []messenger.Message{messenger.Photo(messenger.ImageVictory, victoryCaption)},
	}, nil
}

func (o *Orchestrator) defeat(ctx context.Context, userID string) (Reply, error) {
	if _, _, err := o.store.UseAttempt(userID); err != nil {
		return Reply{}, fmt.Errorf("%w: use attempt: %w", ErrInternal, err)
	}
	subject, err := o.endRound(userID)
	if err != nil {
		return Reply{}, err
	}
	o.logger.Info("player lost", "user_id", userID, "subject", subject)

	e := events.New(events.TypeDefeat, userID)
	e.Subject = subject
	e.AttemptsUsed = o.store.MaxAttempts()
	o.publish(ctx, e)

	return Reply{
		Outcome:  domain.OutcomeDefeat,
		Messages: []messenger.Message{messenger.Photo(messenger.ImageDefeat, defeatCaption(subject, domain.CeilSeconds(o.cooldown)))},
	}, nil
}

func (o *Orchestrator) surrender(ctx context.Context, userID string) (Reply, error) {
	if o.store.Get(userID).State != domain.StateInProgress {
		if in, secs := o.store.CheckCooldown(userID); in {
			return o.plain(messenger.Text(cooldownText(secs), messenger.FormatPlain)), nil
		}
		return o.plain(messenger.Text(noGameText, messenger.FormatPlain)), nil
	}

	subject, err := o.endRound(userID)
	if err != nil {
		return Reply{}, err
	}
	o.logger.Info("player surrendered", "user_id", userID, "subject", subject)

	e := events.New(events.TypeSurrender, userID)
	e.Subject = subject
	o.publish(ctx, e)

	return Reply{
		Outcome:  domain.OutcomeDefeat,
		Messages: []messenger.Message{messenger.Photo(messenger.ImageDefeat, surrenderCaption(subject, domain.CeilSeconds(o.cooldown)))},
	}, nil
}

// endRound puts the session into cooldown and returns the revealed subject.
func (o *Orchestrator) endRound(userID string) (string, error) {
	subject, ok := o.store.CurrentSubject(userID)
	if !ok {
		return "", fmt.Errorf("%w: no subject to reveal", ErrInternal)
	}
	o.store.EnterCooldown(userID, o.cooldown)
	return subject, nil
}

func (o *Orchestrator) hint(userID string) (Reply, error) {
	if o.store.Get(userID).State != domain.StateInProgress {
		return o.idle(userID), nil
	}
	msg, err := o.serveHint(userID)
	if err != nil {
		return Reply{}, err
	}
	return o.plain(msg), nil
}

func (o *Orchestrator) wallet(ctx context.Context, userID, text string) (Reply, error) {
	addr, err := reward.ValidateAddress(text)
	if err != nil {
		return o.plain(messenger.Text(invalidWalletText, messenger.FormatPlain)), nil
	}
	subject, ok := o.store.CurrentSubject(userID)
	if !ok {
		return Reply{}, fmt.Errorf("%w: waiting for wallet without a subject", ErrInternal)
	}

	var key string
	if round := o.store.Get(userID).Round; round != nil {
		key = round.ID
	}

	receipt, err := o.dispatcher.SendReward(ctx, reward.Request{UserID: userID, Wallet: addr, Symbol: subject, Key: key})
	var pending *reward.PendingError
	if errors.As(err, &pending) {
		o.logger.Warn("reward pending", "user_id", userID, "wallet", addr.Hex(), "tx_hash", pending.TxHash, "error", err)
		e := events.New(events.TypeRewardPending, userID)
		e.Subject, e.Wallet, e.TxHash = subject, addr.Hex(), pending.TxHash
		o.publish(ctx, e)
		return o.plain(messenger.Text(rewardPendingText(pending.TxHash), messenger.FormatMarkdown)), nil
	}
	if err != nil {
		o.logger.Error("reward dispatch failed", "user_id", userID, "wallet", addr.Hex(), "error", err)
		e := events.New(events.TypeRewardFailed, userID)
		e.Subject, e.Wallet, e.Error = subject, addr.Hex(), err.Error()
		o.publish(ctx, e)
		return o.plain(messenger.Text(rewardFailedText, messenger.FormatPlain)), nil
	}

	if err := o.store.CompletePayout(userID); err != nil {
		return Reply{}, fmt.Errorf("%w: complete payout: %w", ErrInternal, err)
	}
	o.logger.Info("reward sent", "user_id", userID, "wallet", addr.Hex(), "tx_hash", receipt.TxHash)

	e := events.New(events.TypeRewardSent, userID)
	e.Subject, e.Wallet, e.TxHash = subject, addr.Hex(), receipt.TxHash
	o.publish(ctx, e)

	return o.plain(messenger.Text(rewardSentText(addr.Hex(), receipt.TxHash), messenger.FormatMarkdown)), nil
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if err := o.publisher.Publish(ctx, e); err != nil {
		o.logger.Warn("failed to publish outcome event", "user_id", e.UserID, "type", e.Type, "error", err)
	}
}
