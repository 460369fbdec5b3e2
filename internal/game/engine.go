package game

import (
	"fmt"
	"sort"
	"time"

	"instantwin/internal/fairness"
)

// GameEngine holds the rules of one game. Engines are stateless: all round
// state lives on the Round, so any instance can resolve any round.
type GameEngine interface {
	GetType() GameType
	// Validate rejects bad parameters before any state is touched.
	Validate(bet Bet) error
	// Resolve derives the raw outcome from the committed seeds, applies the
	// house-edge bias at r.Intensity and leaves the round ACTIVE or SETTLING.
	Resolve(r *Round, seeds fairness.Session) error
	// Act applies a player action to an ACTIVE round.
	Act(r *Round, action Action, now time.Time) error
}

// Expirer is implemented by engines whose ACTIVE rounds end on their own,
// such as crash once the hidden point has passed.
type Expirer interface {
	Expire(r *Round, now time.Time) bool
}

type GameFactory struct {
	engines map[GameType]GameEngine
}

func NewGameFactory(engines ...GameEngine) *GameFactory {
	gf := &GameFactory{engines: make(map[GameType]GameEngine)}
	for _, e := range engines {
		gf.RegisterEngine(e)
	}
	return gf
}

// DefaultFactory registers every game.
func DefaultFactory() *GameFactory {
	return NewGameFactory(
		NewCrashEngine(GameTypeCrash),
		NewCrashEngine(GameTypeAviator),
		NewLimboEngine(),
		NewDiceEngine(),
		NewSlotsEngine(DefaultPaytable()),
		NewMinesEngine(),
		NewPenaltyEngine(),
		NewPlinkoEngine(),
	)
}

func (gf *GameFactory) RegisterEngine(engine GameEngine) {
	gf.engines[engine.GetType()] = engine
}

func (gf *GameFactory) GetEngine(gameType GameType) (GameEngine, bool) {
	engine, exists := gf.engines[gameType]
	return engine, exists
}

func (gf *GameFactory) mustEngine(gameType GameType) (GameEngine, error) {
	engine, ok := gf.engines[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, gameType)
	}
	return engine, nil
}

func (gf *GameFactory) Types() []GameType {
	out := make([]GameType, 0, len(gf.engines))
	for t := range gf.engines {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameters, fmt.Sprintf(format, args...))
}
