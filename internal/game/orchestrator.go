package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"instantwin/internal/fairness"
	"instantwin/internal/ledger"
	"instantwin/internal/logger"
	"instantwin/internal/payout"
	"instantwin/internal/settings"
	"instantwin/internal/wallet"
)

var (
	MIN_STAKE = decimal.RequireFromString("0.01")
	MAX_STAKE = decimal.RequireFromString("10000")
)

// STUCK_ROUND_AGE is how long a round may sit in COMMITTED or RESOLVING
// before Reconcile finishes it.
const STUCK_ROUND_AGE = 30 * time.Second

type Config struct {
	Games     *GameFactory
	Wallet    wallet.Wallet
	Ledger    ledger.Ledger
	Settings  settings.IntensityProvider
	Sessions  *fairness.Manager
	Rounds    RoundStore
	Publisher ledger.Publisher // optional
	Hub       *Hub             // optional
	Clock     func() time.Time // optional
	NewID     func() string    // optional
}

// Orchestrator drives every round through
// COMMITTED -> RESOLVING -> (ACTIVE ->) SETTLING -> SETTLED.
// All work for one player is serialized.
type Orchestrator struct {
	games     *GameFactory
	wallet    wallet.Wallet
	ledger    ledger.Ledger
	settings  settings.IntensityProvider
	sessions  *fairness.Manager
	rounds    RoundStore
	publisher ledger.Publisher
	hub       *Hub
	locks     *Locker
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
}

func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Games == nil || cfg.Wallet == nil || cfg.Ledger == nil || cfg.Settings == nil || cfg.Sessions == nil || cfg.Rounds == nil {
		return nil, fmt.Errorf("%w: orchestrator is missing a collaborator", ErrConfiguration)
	}
	o := &Orchestrator{
		games:     cfg.Games,
		wallet:    cfg.Wallet,
		ledger:    cfg.Ledger,
		settings:  cfg.Settings,
		sessions:  cfg.Sessions,
		rounds:    cfg.Rounds,
		publisher: cfg.Publisher,
		hub:       cfg.Hub,
		locks:     NewLocker(),
		now:       cfg.Clock,
		newID:     cfg.NewID,
		log:       logger.Component("game"),
	}
	if o.publisher == nil {
		o.publisher = ledger.NopPublisher{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o, nil
}

func (o *Orchestrator) Games() *GameFactory { return o.games }

func (o *Orchestrator) Now() time.Time { return o.now() }

func validateStake(stake decimal.Decimal) error {
	if !stake.IsPositive() {
		return invalid("stake must be positive")
	}
	if !stake.Shift(2).IsInteger() {
		return invalid("stake has more than two decimal places")
	}
	if stake.LessThan(MIN_STAKE) || stake.GreaterThan(MAX_STAKE) {
		return invalid("stake must be between %s and %s", MIN_STAKE, MAX_STAKE)
	}
	return nil
}

// Start opens a round. Instant games come back SETTLED; crash without auto
// cash-out, mines and penalty come back ACTIVE.
func (o *Orchestrator) Start(ctx context.Context, playerID string, gameType GameType, bet Bet) (*Round, error) {
	const op = "game.Orchestrator.Start"

	engine, err := o.games.mustEngine(gameType)
	if err != nil {
		return nil, err
	}
	if playerID == "" {
		return nil, invalid("player id is required")
	}
	if err := validateStake(bet.Stake); err != nil {
		return nil, err
	}
	if err := engine.Validate(bet); err != nil {
		if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrInvalidParameters) {
			return nil, err
		}
		return nil, invalid("%v", err)
	}

	unlock := o.locks.Lock(playerID)
	defer unlock()

	snap, err := o.settings.Snapshot(ctx, string(gameType))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrConfiguration, err)
	}
	if !snap.Enabled {
		return nil, ErrGameDisabled
	}

	if err := o.ensurePlayerIdle(ctx, playerID); err != nil {
		return nil, err
	}

	balance, err := o.wallet.Balance(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if balance.LessThan(bet.Stake) {
		return nil, ErrInsufficientFunds
	}

	seeds, err := o.sessions.Current(ctx, string(gameType), playerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, asConfiguration(err))
	}
	if _, err := o.sessions.Advance(ctx, string(gameType), playerID, seeds); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r := &Round{
		ID:             o.newID(),
		PlayerID:       playerID,
		Game:           gameType,
		Status:         StatusCommitted,
		Bet:            bet,
		Intensity:      snap.Intensity,
		ServerSeedHash: seeds.ServerSeedHash,
		ClientSeed:     seeds.ClientSeed,
		Nonce:          seeds.Nonce,
		Payout:         decimal.Zero,
		StartedAt:      o.now(),
	}
	if err := o.rounds.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := o.wallet.Apply(ctx, playerID, r.ID+":stake", bet.Stake.Neg()); err != nil {
		if derr := o.rounds.Delete(ctx, r); derr != nil {
			o.log.Error("failed to drop uncommitted round", "round_id", r.ID, logger.Err(derr))
		}
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("%s: debit stake: %w", op, err)
	}

	o.log.Info("round started",
		"round_id", r.ID,
		"player", playerID,
		"game", gameType,
		"stake", bet.Stake.StringFixed(2),
		"nonce", r.Nonce,
		"intensity", r.Intensity,
	)

	if err := o.resolve(ctx, engine, r, seeds); err != nil {
		return r, err
	}
	return r, nil
}

// resolve runs the engine on a committed round and settles it if it ended.
func (o *Orchestrator) resolve(ctx context.Context, engine GameEngine, r *Round, seeds fairness.Session) error {
	const op = "game.Orchestrator.resolve"

	r.Status = StatusResolving
	if err := engine.Resolve(r, seeds); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if r.Status == StatusSettling {
		return o.settle(ctx, r)
	}
	if err := o.rounds.Save(ctx, r); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ensurePlayerIdle fails with ErrRoundInProgress while the player has an
// open round in any game, so one round is in flight per player.
func (o *Orchestrator) ensurePlayerIdle(ctx context.Context, playerID string) error {
	for _, t := range o.games.Types() {
		if err := o.ensureIdle(ctx, o.games.engines[t], playerID, t); err != nil {
			return err
		}
	}
	return nil
}

// ensureIdle fails with ErrRoundInProgress while the player has an open round
// in this game. Expired crash rounds and pending settlements are finished on
// the way.
func (o *Orchestrator) ensureIdle(ctx context.Context, engine GameEngine, playerID string, gameType GameType) error {
	r, err := o.rounds.Active(ctx, playerID, gameType)
	if errors.Is(err, ErrRoundNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("game.Orchestrator.ensureIdle: %w", err)
	}
	if exp, ok := engine.(Expirer); ok && exp.Expire(r, o.now()) {
		return o.settle(ctx, r)
	}
	switch r.Status {
	case StatusSettled:
		return nil
	case StatusSettling:
		return o.settle(ctx, r)
	}
	return ErrRoundInProgress
}

// Act applies a player action. A cash-out on a settled round returns the
// stored result and never pays twice.
func (o *Orchestrator) Act(ctx context.Context, playerID, roundID string, action Action) (*Round, error) {
	unlock := o.locks.Lock(playerID)
	defer unlock()

	r, err := o.load(ctx, playerID, roundID)
	if err != nil {
		return nil, err
	}

	switch r.Status {
	case StatusSettled:
		if action.Kind == ACTION_CASHOUT {
			return r, nil
		}
		return r, ErrRoundSettled
	case StatusSettling:
		return r, o.settle(ctx, r)
	case StatusActive:
	default:
		return r, ErrRoundInProgress
	}

	engine, err := o.games.mustEngine(r.Game)
	if err != nil {
		return nil, err
	}
	now := o.now()
	if exp, ok := engine.(Expirer); ok && exp.Expire(r, now) {
		return r, o.settle(ctx, r)
	}
	if err := engine.Act(r, action, now); err != nil {
		return nil, err
	}
	if r.Status == StatusSettling {
		return r, o.settle(ctx, r)
	}
	if err := o.rounds.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("game.Orchestrator.Act: %w", err)
	}
	return r, nil
}

// Get returns one of the player's rounds, settling it first if it expired.
func (o *Orchestrator) Get(ctx context.Context, playerID, roundID string) (*Round, error) {
	unlock := o.locks.Lock(playerID)
	defer unlock()

	r, err := o.load(ctx, playerID, roundID)
	if err != nil {
		return nil, err
	}
	return r, o.expire(ctx, r)
}

// Active returns the player's open round in gameType, if any.
func (o *Orchestrator) Active(ctx context.Context, playerID string, gameType GameType) (*Round, error) {
	unlock := o.locks.Lock(playerID)
	defer unlock()

	r, err := o.rounds.Active(ctx, playerID, gameType)
	if err != nil {
		return nil, err
	}
	return r, o.expire(ctx, r)
}

func (o *Orchestrator) load(ctx context.Context, playerID, roundID string) (*Round, error) {
	r, err := o.rounds.Get(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if r.PlayerID != playerID {
		return nil, ErrRoundNotFound
	}
	return r, nil
}

func (o *Orchestrator) expire(ctx context.Context, r *Round) error {
	if r.Status != StatusActive {
		return nil
	}
	engine, err := o.games.mustEngine(r.Game)
	if err != nil {
		return err
	}
	if exp, ok := engine.(Expirer); ok && exp.Expire(r, o.now()) {
		return o.settle(ctx, r)
	}
	return nil
}

// settle records the round, credits the payout and marks it SETTLED. Each
// step is idempotent, so a failed settlement can simply be run again.
func (o *Orchestrator) settle(ctx context.Context, r *Round) error {
	const op = "game.Orchestrator.settle"

	if r.Settled() {
		return nil
	}
	if r.SettledAt.IsZero() {
		r.SettledAt = o.now()
		r.Payout = payout.Amount(r.Bet.Stake, r.Multiplier)
		r.Won = r.Payout.IsPositive()
	}
	r.Status = StatusSettling
	if err := o.rounds.Save(ctx, r); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if !r.Recorded {
		if err := o.ledger.Record(ctx, o.settlement(r)); err != nil {
			o.log.Error("settlement write failed, round left pending",
				"round_id", r.ID,
				"player", r.PlayerID,
				"game", r.Game,
				logger.Err(err),
			)
			return fmt.Errorf("%s: %w: %w", op, ErrLedgerWrite, err)
		}
		r.Recorded = true
		if err := o.rounds.Save(ctx, r); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if !r.Credited {
		if r.Payout.IsPositive() {
			if _, err := o.wallet.Apply(ctx, r.PlayerID, r.ID+":payout", r.Payout); err != nil {
				return fmt.Errorf("%s: credit payout: %w", op, err)
			}
		}
		r.Credited = true
	}

	r.Status = StatusSettled
	if err := o.rounds.Save(ctx, r); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	o.log.Info("round settled",
		"round_id", r.ID,
		"player", r.PlayerID,
		"game", r.Game,
		"stake", r.Bet.Stake.StringFixed(2),
		"multiplier", r.Multiplier,
		"payout", r.Payout.StringFixed(2),
	)
	o.publish(ctx, r)
	return nil
}

func (o *Orchestrator) settlement(r *Round) ledger.Settlement {
	outcome := ledger.OutcomeLost
	if r.Won {
		outcome = ledger.OutcomeWon
	}
	return ledger.Settlement{
		RoundID:         r.ID,
		PlayerID:        r.PlayerID,
		Game:            string(r.Game),
		Stake:           r.Bet.Stake,
		Multiplier:      r.Multiplier,
		Payout:          r.Payout,
		Outcome:         outcome,
		Params:          mustJSON(r.Bet),
		RawOutcome:      r.Raw,
		AdjustedOutcome: r.Adjusted,
		Intensity:       r.Intensity,
		ServerSeedHash:  r.ServerSeedHash,
		ClientSeed:      r.ClientSeed,
		Nonce:           r.Nonce,
		SettledAt:       r.SettledAt,
	}
}

func (o *Orchestrator) publish(ctx context.Context, r *Round) {
	if err := o.publisher.Publish(ctx, o.settlement(r)); err != nil {
		o.log.Warn("settlement publish failed", "round_id", r.ID, logger.Err(err))
	}
	if o.hub != nil {
		o.hub.PublishSettlement(SettlementMessage{
			RoundID:    r.ID,
			PlayerID:   r.PlayerID,
			Game:       r.Game,
			Stake:      r.Bet.Stake,
			Multiplier: r.Multiplier,
			Payout:     r.Payout,
			Won:        r.Won,
		})
	}
}

// Reconcile finishes every round that is not settled but should be: pending
// settlements, expired crash rounds and rounds interrupted between debit and
// resolution. It returns how many rounds it settled.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	const op = "game.Orchestrator.Reconcile"

	ids, err := o.rounds.Open(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	settled := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		done, err := o.reconcileOne(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if done {
			settled++
		}
	}
	if settled > 0 {
		o.log.Info("reconciled rounds", "settled", settled, "failed", len(errs))
	}
	return settled, errors.Join(errs...)
}

func (o *Orchestrator) reconcileOne(ctx context.Context, id string) (bool, error) {
	peek, err := o.rounds.Get(ctx, id)
	if errors.Is(err, ErrRoundNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	unlock := o.locks.Lock(peek.PlayerID)
	defer unlock()

	r, err := o.rounds.Get(ctx, id)
	if err != nil {
		return false, nil
	}
	engine, err := o.games.mustEngine(r.Game)
	if err != nil {
		return false, err
	}

	switch r.Status {
	case StatusSettling:
		return true, o.settle(ctx, r)
	case StatusActive:
		if exp, ok := engine.(Expirer); ok && exp.Expire(r, o.now()) {
			return true, o.settle(ctx, r)
		}
		return false, nil
	case StatusCommitted, StatusResolving:
		if o.now().Sub(r.StartedAt) < STUCK_ROUND_AGE {
			return false, nil
		}
		return o.recover(ctx, engine, r)
	}
	return false, nil
}

// recover finishes a round that was interrupted after it was saved. The debit
// is replayed under the same reference, so it applies at most once; the
// outcome is re-derived from the session that secured the round.
func (o *Orchestrator) recover(ctx context.Context, engine GameEngine, r *Round) (bool, error) {
	const op = "game.Orchestrator.recover"

	if _, err := o.wallet.Apply(ctx, r.PlayerID, r.ID+":stake", r.Bet.Stake.Neg()); err != nil {
		if errors.Is(err, wallet.ErrInsufficientFunds) {
			o.log.Warn("dropping round that was never debited", "round_id", r.ID)
			return false, o.rounds.Delete(ctx, r)
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	cur, err := o.sessions.Current(ctx, string(r.Game), r.PlayerID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if cur.ServerSeedHash != r.ServerSeedHash {
		return false, fmt.Errorf("%s: round %s: %w", op, r.ID, fairness.ErrNonceConflict)
	}
	seeds := cur
	seeds.Nonce = r.Nonce

	if err := o.resolve(ctx, engine, r, seeds); err != nil {
		return false, err
	}
	return r.Settled(), nil
}

func (o *Orchestrator) Commitment(ctx context.Context, playerID string, gameType GameType) (fairness.Commitment, error) {
	if _, err := o.games.mustEngine(gameType); err != nil {
		return fairness.Commitment{}, err
	}
	s, err := o.sessions.Current(ctx, string(gameType), playerID)
	if err != nil {
		return fairness.Commitment{}, asConfiguration(err)
	}
	return s.Public(), nil
}

// Rotate reveals the current server seed and commits to a new one, using
// clientSeed (or a random one) from now on. It is refused while a round in
// this game is open, since that round still depends on the old seed.
func (o *Orchestrator) Rotate(ctx context.Context, playerID string, gameType GameType, clientSeed string) (fairness.Reveal, fairness.Commitment, error) {
	engine, err := o.games.mustEngine(gameType)
	if err != nil {
		return fairness.Reveal{}, fairness.Commitment{}, err
	}

	unlock := o.locks.Lock(playerID)
	defer unlock()

	if err := o.ensureIdle(ctx, engine, playerID, gameType); err != nil {
		return fairness.Reveal{}, fairness.Commitment{}, err
	}
	reveal, next, err := o.sessions.Rotate(ctx, string(gameType), playerID, clientSeed)
	if err != nil {
		return fairness.Reveal{}, fairness.Commitment{}, asConfiguration(err)
	}
	return reveal, next, nil
}

func (o *Orchestrator) History(ctx context.Context, playerID string, limit int) ([]ledger.Settlement, error) {
	return o.ledger.List(ctx, playerID, limit)
}

func (o *Orchestrator) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	return o.wallet.Balance(ctx, playerID)
}

// Verify replays a settled round from its revealed server seed.
func (o *Orchestrator) Verify(ctx context.Context, roundID, serverSeed string) (Verification, error) {
	s, err := o.ledger.Get(ctx, roundID)
	if ledger.IsNotFound(err) {
		return Verification{}, ErrRoundNotFound
	}
	if err != nil {
		return Verification{}, fmt.Errorf("game.Orchestrator.Verify: %w", err)
	}
	engine, err := o.games.mustEngine(GameType(s.Game))
	if err != nil {
		return Verification{}, err
	}
	return VerifySettlement(engine, s, serverSeed)
}

func asConfiguration(err error) error {
	if errors.Is(err, fairness.ErrRandomness) {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return err
}
