package game

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memecoinsphinx/sphinx/internal/agent"
	"github.com/memecoinsphinx/sphinx/internal/domain"
	"github.com/memecoinsphinx/sphinx/internal/events"
	"github.com/memecoinsphinx/sphinx/internal/messenger"
	"github.com/memecoinsphinx/sphinx/internal/reward"
	"github.com/memecoinsphinx/sphinx/internal/riddle"
	"github.com/memecoinsphinx/sphinx/internal/session"
)

const validWallet = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeResponder struct {
	mu      sync.Mutex
	err     error
	prompts []agent.Prompt
}

func (f *fakeResponder) Respond(_ context.Context, p agent.Prompt) (agent.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, p)
	if f.err != nil {
		return agent.Response{}, f.err
	}
	return agent.Response{Text: "Wrong, mortal!", Outcome: domain.OutcomeWrongGuess}, nil
}

type fakeDispatcher struct {
	mu       sync.Mutex
	err      error
	requests []reward.Request
}

func (f *fakeDispatcher) SendReward(_ context.Context, req reward.Request) (reward.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return reward.Receipt{}, f.err
	}
	return reward.Receipt{TxHash: "0xfeed", Symbol: req.Symbol, Wallet: req.Wallet.Hex()}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	orch       *Orchestrator
	store      *session.Store
	clock      *fakeClock
	responder  *fakeResponder
	dispatcher *fakeDispatcher
	publisher  *recordingPublisher
}

// newHarness always draws DOGE, the first built-in subject.
func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	db := riddle.NewDatabase(riddle.DefaultCatalog(), func(int) int { return 0 })
	store := session.NewStore(db, session.Options{MaxAttempts: 3, Now: clock.Now})
	h := &harness{
		store:      store,
		clock:      clock,
		responder:  &fakeResponder{},
		dispatcher: &fakeDispatcher{},
		publisher:  &recordingPublisher{},
	}
	h.orch = New(store, h.responder, h.dispatcher, Options{Cooldown: 30 * time.Second, Publisher: h.publisher})
	return h
}

func (h *harness) handle(t *testing.T, ev Event) Reply {
	t.Helper()
	reply, err := h.orch.Handle(context.Background(), "u1", ev)
	require.NoError(t, err)
	return reply
}

func joined(r Reply) string {
	var parts []string
	for _, m := range r.Messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "\n")
}

func TestStartSendsWelcomeAndFirstHint(t *testing.T) {
	h := newHarness(t)

	reply := h.handle(t, StartEvent{})
	require.Len(t, reply.Messages, 2)
	assert.Equal(t, messenger.KindPhoto, reply.Messages[0].Kind)
	assert.Equal(t, messenger.ImageWelcome, reply.Messages[0].Image)
	assert.Contains(t, reply.Messages[1].Text, "Riddle 1")
	assert.Contains(t, reply.Messages[1].Text, "original meme")
	assert.Equal(t, domain.StateInProgress, reply.State)

	s := h.store.Get("u1")
	assert.Equal(t, 3, s.AttemptsRemaining)
	assert.Equal(t, 1, s.Round.HintCursor)
	assert.Equal(t, 1, s.HintsGiven)
}

// Scenario A: three wrong guesses end in defeat naming the subject.
func TestThreeWrongGuessesEndInDefeat(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})

	reply := h.handle(t, TextEvent{Text: "PEPE"})
	assert.Equal(t, domain.OutcomeWrongGuess, reply.Outcome)
	assert.Equal(t, 2, h.store.Get("u1").AttemptsRemaining)
	require.Len(t, reply.Messages, 2)
	assert.Equal(t, "Wrong, mortal!", reply.Messages[0].Text)
	assert.Contains(t, reply.Messages[1].Text, "Riddle 2")

	reply = h.handle(t, TextEvent{Text: "SHIB"})
	assert.Equal(t, domain.OutcomeWrongGuess, reply.Outcome)
	assert.Equal(t, 1, h.store.Get("u1").AttemptsRemaining)
	assert.Contains(t, joined(reply), "Riddle 3")

	reply = h.handle(t, TextEvent{Text: "BONK"})
	assert.Equal(t, domain.OutcomeDefeat, reply.Outcome)
	assert.Equal(t, domain.StateCooldown, reply.State)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, messenger.ImageDefeat, reply.Messages[0].Image)
	assert.Contains(t, reply.Messages[0].Text, "DOGE")

	s := h.store.Get("u1")
	assert.Equal(t, 0, s.AttemptsRemaining)
	assert.Equal(t, 0, s.Stats.CurrentStreak)
	assert.Equal(t, []events.Type{events.TypeDefeat}, h.publisher.types())
	assert.Len(t, h.responder.prompts, 2, "the defeat caption does not need the responder")
}

// Scenario B: a first-try win costs no attempts.
func TestFirstGuessWins(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})

	reply := h.handle(t, TextEvent{Text: "  doge "})
	assert.Equal(t, domain.OutcomeVictory, reply.Outcome)
	assert.Equal(t, domain.StateWaitingForWallet, reply.State)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, messenger.ImageVictory, reply.Messages[0].Image)

	s := h.store.Get("u1")
	assert.Equal(t, 3, s.AttemptsRemaining)
	assert.Equal(t, 1, s.Stats.GamesWon)
	assert.Equal(t, []events.Type{events.TypeVictory}, h.publisher.types())
	assert.Empty(t, h.responder.prompts)
}

// Scenario C: an invalid wallet is rejected locally, a valid one is paid.
func TestWalletHandshake(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})
	h.handle(t, TextEvent{Text: "DOGE"})

	reply := h.handle(t, TextEvent{Text: "not-a-wallet"})
	assert.Equal(t, domain.StateWaitingForWallet, reply.State)
	assert.Contains(t, joined(reply), "valid EVM wallet")
	assert.Empty(t, h.dispatcher.requests)

	reply = h.handle(t, TextEvent{Text: validWallet})
	assert.Equal(t, domain.StateNotStarted, reply.State)
	assert.Contains(t, joined(reply), "0xfeed")
	require.Len(t, h.dispatcher.requests, 1)
	assert.Equal(t, "DOGE", h.dispatcher.requests[0].Symbol)
	assert.True(t, strings.EqualFold(validWallet, h.dispatcher.requests[0].Wallet.Hex()))
	assert.Nil(t, h.store.Get("u1").Round)
	assert.Equal(t, []events.Type{events.TypeVictory, events.TypeRewardSent}, h.publisher.types())
}

func TestRewardFailureKeepsWaitingForWallet(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})
	h.handle(t, TextEvent{Text: "DOGE"})

	h.dispatcher.err = &reward.DispatchError{Op: "send", Err: errors.New("insufficient funds")}
	reply := h.handle(t, TextEvent{Text: validWallet})
	assert.Equal(t, domain.StateWaitingForWallet, reply.State)
	assert.Contains(t, joined(reply), "retry")

	h.dispatcher.err = nil
	reply = h.handle(t, TextEvent{Text: validWallet})
	assert.Equal(t, domain.StateNotStarted, reply.State)
	assert.Len(t, h.dispatcher.requests, 2)
	assert.Equal(t, []events.Type{events.TypeVictory, events.TypeRewardFailed, events.TypeRewardSent}, h.publisher.types())
}

func TestRewardPendingRetriesWithSameKey(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})
	h.handle(t, TextEvent{Text: "DOGE"})
	roundID := h.store.Get("u1").Round.ID
	require.NotEmpty(t, roundID)

	h.dispatcher.err = &reward.PendingError{TxHash: "0xslow", Err: context.DeadlineExceeded}
	reply := h.handle(t, TextEvent{Text: validWallet})
	assert.Equal(t, domain.StateWaitingForWallet, reply.State)
	assert.Contains(t, joined(reply), "0xslow")
	assert.Contains(t, joined(reply), "on its way")

	h.dispatcher.err = nil
	reply = h.handle(t, TextEvent{Text: validWallet})
	assert.Equal(t, domain.StateNotStarted, reply.State)

	require.Len(t, h.dispatcher.requests, 2)
	assert.Equal(t, roundID, h.dispatcher.requests[0].Key)
	assert.Equal(t, roundID, h.dispatcher.requests[1].Key)
	assert.Equal(t, []events.Type{events.TypeVictory, events.TypeRewardPending, events.TypeRewardSent}, h.publisher.types())
}

// Scenario D: chatter during cooldown reports the remaining time only.
func TestCooldownReportsRemainingTime(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})
	for _, guess := range []string{"A", "B", "C"} {
		h.handle(t, TextEvent{Text: guess})
	}
	h.clock.Advance(20 * time.Second)
	before := h.store.Get("u1")

	reply := h.handle(t, TextEvent{Text: "let me play"})
	assert.Contains(t, joined(reply), "10 more seconds")
	assert.Equal(t, domain.StateCooldown, reply.State)
	assert.Equal(t, before.AttemptsRemaining, h.store.Get("u1").AttemptsRemaining)

	reply = h.handle(t, StartEvent{})
	assert.Contains(t, joined(reply), "10 more seconds")
	assert.Equal(t, domain.StateCooldown, reply.State)

	h.clock.Advance(10 * time.Second)
	reply = h.handle(t, TextEvent{Text: "hello?"})
	assert.Equal(t, domain.StateNotStarted, reply.State)
	assert.Contains(t, joined(reply), "/start")

	reply = h.handle(t, StartEvent{})
	assert.Equal(t, domain.StateInProgress, reply.State)
	assert.Equal(t, 3, h.store.Get("u1").AttemptsRemaining)
}

func TestResponderFailureLeavesSessionUntouched(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})
	before := h.store.Get("u1")

	h.responder.err = context.DeadlineExceeded
	reply := h.handle(t, TextEvent{Text: "PEPE"})
	assert.Equal(t, domain.OutcomePlain, reply.Outcome)
	assert.Contains(t, joined(reply), "Try again")

	after := h.store.Get("u1")
	assert.Equal(t, before.AttemptsRemaining, after.AttemptsRemaining)
	assert.Equal(t, before.Round.HintCursor, after.Round.HintCursor)
	assert.Equal(t, domain.StateInProgress, after.State)
}

func TestNotStartedPromptsForStart(t *testing.T) {
	h := newHarness(t)

	reply := h.handle(t, TextEvent{Text: "hi sphinx"})
	assert.Equal(t, domain.StateNotStarted, reply.State)
	assert.Contains(t, joined(reply), "/start")
}

func TestHintDoesNotSpendAttempts(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})

	reply := h.handle(t, HintEvent{})
	assert.Contains(t, joined(reply), "Riddle 2")
	reply = h.handle(t, HintEvent{})
	assert.Contains(t, joined(reply), "Riddle 3")
	reply = h.handle(t, HintEvent{})
	assert.Contains(t, joined(reply), "no riddles left")
	reply = h.handle(t, HintEvent{})
	assert.Contains(t, joined(reply), "no riddles left")

	assert.Equal(t, 3, h.store.Get("u1").AttemptsRemaining)

	// Exhausted hints still leave room for guesses.
	reply = h.handle(t, TextEvent{Text: "PEPE"})
	assert.Equal(t, domain.OutcomeWrongGuess, reply.Outcome)
	assert.Contains(t, joined(reply), "no riddles left")
}

func TestSurrender(t *testing.T) {
	h := newHarness(t)

	reply := h.handle(t, SurrenderEvent{})
	assert.Contains(t, joined(reply), "no riddle to abandon")

	h.handle(t, StartEvent{})
	reply = h.handle(t, SurrenderEvent{})
	assert.Equal(t, domain.OutcomeDefeat, reply.Outcome)
	assert.Equal(t, domain.StateCooldown, reply.State)
	assert.Contains(t, joined(reply), "DOGE")
	assert.Equal(t, []events.Type{events.TypeSurrender}, h.publisher.types())

	reply = h.handle(t, SurrenderEvent{})
	assert.Contains(t, joined(reply), "more seconds")
}

func TestStatsAndRules(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})
	h.handle(t, TextEvent{Text: "doge"})
	h.handle(t, TextEvent{Text: validWallet})

	reply := h.handle(t, StatsEvent{})
	text := joined(reply)
	assert.Contains(t, text, "Games played: 1")
	assert.Contains(t, text, "Games won: 1")
	assert.Contains(t, text, "Win rate: 100%")

	reply = h.handle(t, RulesEvent{})
	assert.Contains(t, joined(reply), "*3* attempts")
	assert.Contains(t, joined(reply), "30 seconds")
}

type unknownEvent struct{ StartEvent }

func TestUnknownEventIsInternalError(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Handle(context.Background(), "u1", unknownEvent{})
	assert.ErrorIs(t, err, ErrInternal)
}

func TestConcurrentGuessesFromOneUserSerialize(t *testing.T) {
	h := newHarness(t)
	h.handle(t, StartEvent{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.orch.Handle(context.Background(), "u1", TextEvent{Text: "WRONG"})
		}()
	}
	wg.Wait()

	s := h.store.Get("u1")
	assert.Equal(t, domain.StateCooldown, s.State)
	assert.Equal(t, 0, s.AttemptsRemaining)
	assert.Equal(t, []events.Type{events.TypeDefeat}, h.publisher.types())
}

func TestParseText(t *testing.T) {
	tests := []struct {
		in   string
		want Event
	}{
		{"/start", StartEvent{}},
		{" /START@SphinxBot ", StartEvent{}},
		{"/hint", HintEvent{}},
		{"/help", RulesEvent{}},
		{"/stats now", StatsEvent{}},
		{"/surrender", SurrenderEvent{}},
		{"/dance", TextEvent{Text: "/dance"}},
		{"doge", TextEvent{Text: "doge"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseText(tt.in), tt.in)
	}
}
