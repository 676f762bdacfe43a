// Package session keeps per-user game sessions in memory.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/memecoinsphinx/sphinx/internal/domain"
	"github.com/memecoinsphinx/sphinx/internal/riddle"
)

// DefaultMaxAttempts is used when Options.MaxAttempts is not positive.
const DefaultMaxAttempts = 3

var (
	// ErrNotInProgress is returned by operations that need a running game.
	ErrNotInProgress = errors.New("game not in progress")
	// ErrNotWaitingForWallet is returned when a payout is completed for a
	// session that is not collecting a wallet.
	ErrNotWaitingForWallet = errors.New("session is not waiting for a wallet")
)

// CooldownError reports a start attempt during an active cooldown.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("still cooling down: %ds remaining", e.Seconds())
}

// Seconds returns the remaining cooldown in whole seconds, rounded up.
func (e *CooldownError) Seconds() int {
	return domain.CeilSeconds(e.Remaining)
}

// Options configures a Store.
type Options struct {
	MaxAttempts int
	Now         func() time.Time
	Logger      *slog.Logger
}

type entry struct {
	turn    sync.Mutex // held for the duration of one inbound event
	evicted bool       // guarded by turn
	mu      sync.Mutex // guards session
	session domain.UserSession
}

// Store owns every UserSession. Sessions are created on first access and
// kept for the lifetime of the process. Cooldowns expire lazily: the state
// only changes when the session is next examined.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*entry
	riddles     *riddle.Database
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// NewStore creates a session store drawing rounds from riddles.
func NewStore(riddles *riddle.Database, opts Options) *Store {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		entries:     make(map[string]*entry),
		riddles:     riddles,
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
		logger:      opts.Logger,
	}
}

// MaxAttempts returns the configured number of guesses per game.
func (s *Store) MaxAttempts() int {
	return s.maxAttempts
}

func (s *Store) entry(userID string) *entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		now := s.now()
		e = &entry{session: domain.UserSession{
			UserID:            userID,
			State:             domain.StateNotStarted,
			AttemptsRemaining: s.maxAttempts,
			CreatedAt:         now,
			UpdatedAt:         now,
		}}
		s.entries[userID] = e
	}
	return e
}

func (s *Store) update(userID string, fn func(*domain.UserSession) error) error {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := fn(&e.session); err != nil {
		return err
	}
	e.session.UpdatedAt = s.now()
	return nil
}

func (s *Store) read(userID string, fn func(*domain.UserSession)) {
	e := s.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.session)
}

// Lock serializes event handling for one user. The returned function
// releases the lock. Events for different users never contend.
func (s *Store) Lock(userID string) (unlock func()) {
	for {
		e := s.entry(userID)
		e.turn.Lock()
		if !e.evicted {
			return e.turn.Unlock
		}
		e.turn.Unlock()
	}
}

// EvictIdle drops sessions untouched for longer than ttl that are not in the
// middle of a game or a wallet exchange, and returns their user IDs. Sessions
// whose event lock is held are skipped.
func (s *Store) EvictIdle(ttl time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var evicted []string
	for userID, e := range s.entries {
		if !e.turn.TryLock() {
			continue
		}
		e.mu.Lock()
		idle := now.Sub(e.session.UpdatedAt) > ttl && settled(&e.session, now)
		e.mu.Unlock()
		if idle {
			e.evicted = true
			delete(s.entries, userID)
			evicted = append(evicted, userID)
		}
		e.turn.Unlock()
	}
	return evicted
}

// Get returns a snapshot of the user's session.
func (s *Store) Get(userID string) domain.UserSession {
	var snap domain.UserSession
	s.read(userID, func(us *domain.UserSession) {
		snap = us.Clone()
	})
	return snap
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// StartGame begins a new game. It fails with *CooldownError while an
// unexpired cooldown is active and leaves the session untouched.
func (s *Store) StartGame(userID string) error {
	return s.update(userID, func(us *domain.UserSession) error {
		if left := us.CooldownRemaining(s.now()); left > 0 {
			return &CooldownError{Remaining: left}
		}

		round, err := s.riddles.NewRound()
		if err != nil {
			return fmt.Errorf("start game: %w", err)
		}

		us.State = domain.StateInProgress
		us.AttemptsRemaining = s.maxAttempts
		us.CooldownUntil = time.Time{}
		us.Round = &round
		us.LastSubjectID = round.SubjectID
		us.HintsGiven = 0
		us.Stats.GamesPlayed++

		s.logger.Debug("game started", "user_id", userID, "subject", round.SubjectID)
		return nil
	})
}

// RecordHintGiven counts a served hint. It does not gate on attempts.
func (s *Store) RecordHintGiven(userID string) {
	_ = s.update(userID, func(us *domain.UserSession) error {
		us.HintsGiven++
		return nil
	})
}

// NextHint serves the next hint of the user's current round.
// ok is false once the round's hints are exhausted.
func (s *Store) NextHint(userID string) (hint string, ok bool, err error) {
	err = s.update(userID, func(us *domain.UserSession) error {
		if us.State != domain.StateInProgress {
			return ErrNotInProgress
		}
		var herr error
		hint, ok, herr = s.riddles.NextHint(us.Round)
		return herr
	})
	return hint, ok, err
}

// CheckAnswer compares guess with the subject of the user's current round.
func (s *Store) CheckAnswer(userID, guess string) (bool, error) {
	var correct bool
	var err error
	s.read(userID, func(us *domain.UserSession) {
		if us.State != domain.StateInProgress {
			err = ErrNotInProgress
			return
		}
		if !us.Round.HasSubject() {
			err = riddle.ErrNoActiveSubject
			return
		}
		correct = s.riddles.CheckAnswer(us.Round.SubjectID, guess)
	})
	return correct, err
}

// UseAttempt consumes one guess. Attempts never drop below zero; once
// exhausted every further call reports hasAttemptsLeft=false.
func (s *Store) UseAttempt(userID string) (hasAttemptsLeft bool, remaining int, err error) {
	err = s.update(userID, func(us *domain.UserSession) error {
		if us.State != domain.StateInProgress {
			return ErrNotInProgress
		}
		if us.AttemptsRemaining > 0 {
			us.AttemptsRemaining--
		}
		remaining = us.AttemptsRemaining
		hasAttemptsLeft = remaining > 0
		return nil
	})
	return hasAttemptsLeft, remaining, err
}

// EnterCooldown moves the session into cooldown for d, whatever its state.
// The round is discarded; its subject stays available via CurrentSubject.
func (s *Store) EnterCooldown(userID string, d time.Duration) {
	_ = s.update(userID, func(us *domain.UserSession) error {
		if us.State == domain.StateInProgress {
			us.Stats.RecordLoss()
		}
		us.State = domain.StateCooldown
		us.CooldownUntil = s.now().Add(d)
		us.Round = nil
		s.logger.Info("session cooling down", "user_id", userID, "until", us.CooldownUntil)
		return nil
	})
}

// EnterWaitingForWallet marks the round solved and starts wallet collection.
func (s *Store) EnterWaitingForWallet(userID string) error {
	return s.update(userID, func(us *domain.UserSession) error {
		if !us.Round.HasSubject() {
			return riddle.ErrNoActiveSubject
		}
		if us.State == domain.StateInProgress {
			us.Stats.RecordWin(s.maxAttempts - us.AttemptsRemaining + 1)
		}
		us.Round.Resolved = true
		us.State = domain.StateWaitingForWallet
		return nil
	})
}

// CompletePayout ends wallet collection after a successful reward dispatch.
func (s *Store) CompletePayout(userID string) error {
	return s.update(userID, func(us *domain.UserSession) error {
		if us.State != domain.StateWaitingForWallet {
			return ErrNotWaitingForWallet
		}
		us.State = domain.StateNotStarted
		us.Round = nil
		return nil
	})
}

// settled reports whether a session is idle between games.
func settled(us *domain.UserSession, now time.Time) bool {
	switch us.State {
	case domain.StateNotStarted:
		return true
	case domain.StateCooldown:
		return us.CooldownRemaining(now) == 0
	default:
		return false
	}
}

// CheckCooldown reports whether the user is cooling down and for how many
// more seconds. An expired cooldown is cleared as a side effect.
func (s *Store) CheckCooldown(userID string) (inCooldown bool, remainingSeconds int) {
	_ = s.update(userID, func(us *domain.UserSession) error {
		if us.State != domain.StateCooldown {
			return nil
		}
		left := us.CooldownRemaining(s.now())
		if left > 0 {
			inCooldown = true
			remainingSeconds = domain.CeilSeconds(left)
			return nil
		}
		us.State = domain.StateNotStarted
		us.CooldownUntil = time.Time{}
		return nil
	})
	return inCooldown, remainingSeconds
}

// CurrentSubject returns the subject of the user's latest game, if any.
func (s *Store) CurrentSubject(userID string) (string, bool) {
	var id string
	s.read(userID, func(us *domain.UserSession) {
		if us.Round.HasSubject() {
			id = us.Round.SubjectID
			return
		}
		id = us.LastSubjectID
	})
	return id, id != ""
}
