package fairness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"instantwin/internal/logger"
)

// ErrNonceConflict means the session moved on (or was rotated) between the
// start of a round and its settlement.
var ErrNonceConflict = errors.New("session nonce conflict")

// Manager owns the session of every player-game pairing.
type Manager struct {
	store SessionStore
	log   *slog.Logger
}

func NewManager(store SessionStore) *Manager {
	return &Manager{
		store: store,
		log:   logger.Component("fairness"),
	}
}

func SessionKey(game, playerID string) string {
	return game + ":" + playerID
}

// Current returns the live session, creating one on first entry.
func (m *Manager) Current(ctx context.Context, game, playerID string) (Session, error) {
	const op = "fairness.Manager.Current"

	key := SessionKey(game, playerID)
	s, ok, err := m.store.Load(ctx, key)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if ok {
		return s, nil
	}

	fresh, err := NewSession("")
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	created, err := m.store.Create(ctx, key, fresh)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if created {
		m.log.Debug("session created", "game", game, "player", playerID, "commitment", fresh.ServerSeedHash)
		return fresh, nil
	}

	// lost the race to another creator
	s, ok, err = m.store.Load(ctx, key)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return Session{}, fmt.Errorf("%s: session vanished", op)
	}
	return s, nil
}

// Advance moves the nonce past the round that was secured by used.
func (m *Manager) Advance(ctx context.Context, game, playerID string, used Session) (Session, error) {
	const op = "fairness.Manager.Advance"

	next := used.Advance()
	ok, err := m.store.Swap(ctx, SessionKey(game, playerID), used, next)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return Session{}, fmt.Errorf("%s: %w", op, ErrNonceConflict)
	}
	return next, nil
}

// Rotate discards the current session and reveals its server seed. An empty
// clientSeed generates one.
func (m *Manager) Rotate(ctx context.Context, game, playerID, clientSeed string) (Reveal, Commitment, error) {
	const op = "fairness.Manager.Rotate"

	cur, err := m.Current(ctx, game, playerID)
	if err != nil {
		return Reveal{}, Commitment{}, fmt.Errorf("%s: %w", op, err)
	}

	fresh, err := NewSession(clientSeed)
	if err != nil {
		return Reveal{}, Commitment{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := m.store.Swap(ctx, SessionKey(game, playerID), cur, fresh)
	if err != nil {
		return Reveal{}, Commitment{}, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return Reveal{}, Commitment{}, fmt.Errorf("%s: %w", op, ErrNonceConflict)
	}

	m.log.Info("session rotated", "game", game, "player", playerID, "rounds", cur.Nonce)
	return cur.Reveal(), fresh.Public(), nil
}
