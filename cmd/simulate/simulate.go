package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"instantwin/internal/fairness"
	"instantwin/internal/game"
	"instantwin/internal/payout"
)

// strategy fixes the bet and the player's moves for one game.
type strategy struct {
	CrashCashout float64
	LimboTarget  float64
	DiceOver     int
	Mines        int
	Reveals      int
	Goals        int
	PlinkoRows   int
	PlinkoRisk   payout.PlinkoRisk
}

func defaultStrategy() strategy {
	return strategy{
		CrashCashout: 2,
		LimboTarget:  2,
		DiceOver:     50,
		Mines:        3,
		Reveals:      3,
		Goals:        2,
		PlinkoRows:   12,
		PlinkoRisk:   payout.PlinkoRiskMedium,
	}
}

func (s strategy) bet(g game.GameType) game.Bet {
	b := game.Bet{Stake: decimal.NewFromInt(1)}
	switch g {
	case game.GameTypeCrash, game.GameTypeAviator:
		b.AutoCashout = s.CrashCashout
	case game.GameTypeLimbo:
		b.Target = s.LimboTarget
	case game.GameTypeDice:
		b.Threshold, b.Over = s.DiceOver, true
	case game.GameTypeMines:
		b.Mines = s.Mines
	case game.GameTypePlinko:
		b.Rows, b.Risk = s.PlinkoRows, s.PlinkoRisk
	}
	return b
}

// play drives an ACTIVE round to settlement.
func (s strategy) play(engine game.GameEngine, r *game.Round) error {
	now := r.StartedAt
	for step := 0; r.Status == game.StatusActive; step++ {
		var action game.Action
		switch r.Game {
		case game.GameTypeMines:
			if len(r.Mines.Revealed) >= s.Reveals {
				action = game.Action{Kind: game.ACTION_CASHOUT}
			} else {
				action = game.Action{Kind: game.ACTION_REVEAL, Cell: step}
			}
		case game.GameTypePenalty:
			if r.Penalty.Goals >= s.Goals {
				action = game.Action{Kind: game.ACTION_CASHOUT}
			} else {
				action = game.Action{Kind: game.ACTION_SHOOT, Direction: step % game.PENALTY_DIRECTIONS}
			}
		default:
			return fmt.Errorf("%s round left active", r.Game)
		}
		if err := engine.Act(r, action, now); err != nil {
			return err
		}
	}
	return nil
}

type result struct {
	Game      game.GameType `yaml:"game"`
	Intensity float64       `yaml:"intensity"`
	Rounds    int           `yaml:"rounds"`
	Wins      int           `yaml:"wins"`
	RTP       float64       `yaml:"rtp"`
	MaxMulti  float64       `yaml:"max_multiplier"`
}

// simulate plays rounds of g at one intensity with a fresh seed pair.
func simulate(engine game.GameEngine, s strategy, intensity float64, rounds int) (result, error) {
	res := result{Game: engine.GetType(), Intensity: intensity, Rounds: rounds}

	bet := s.bet(res.Game)
	if err := engine.Validate(bet); err != nil {
		return res, err
	}
	seeds, err := fairness.NewSession("simulation")
	if err != nil {
		return res, err
	}

	var total float64
	started := time.Now()
	for i := 0; i < rounds; i++ {
		r := &game.Round{
			ID:        fmt.Sprintf("sim-%d", i),
			Game:      res.Game,
			Status:    game.StatusResolving,
			Bet:       bet,
			Intensity: intensity,
			Nonce:     seeds.Nonce,
			StartedAt: started,
		}
		if err := engine.Resolve(r, seeds); err != nil {
			return res, err
		}
		if err := s.play(engine, r); err != nil {
			return res, err
		}
		total += r.Multiplier
		if r.Multiplier > 0 {
			res.Wins++
		}
		if r.Multiplier > res.MaxMulti {
			res.MaxMulti = r.Multiplier
		}
		seeds = seeds.Advance()
	}
	if rounds > 0 {
		res.RTP = total / float64(rounds)
	}
	return res, nil
}

// simulateAll runs every game and intensity pair concurrently. Results keep
// the input order.
func simulateAll(factory *game.GameFactory, games []game.GameType, intensities []float64, s strategy, rounds int) ([]result, error) {
	results := make([]result, len(games)*len(intensities))
	errs := make([]error, len(results))

	var wg sync.WaitGroup
	for gi, g := range games {
		engine, ok := factory.GetEngine(g)
		if !ok {
			return nil, fmt.Errorf("%w: %q", game.ErrUnknownGame, g)
		}
		for ii, intensity := range intensities {
			idx := gi*len(intensities) + ii
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[idx], errs[idx] = simulate(engine, s, intensity, rounds)
			}()
		}
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s at %.2f: %w", results[i].Game, results[i].Intensity, err)
		}
	}
	return results, nil
}
