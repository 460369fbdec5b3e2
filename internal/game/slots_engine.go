package game

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"instantwin/internal/edge"
	"instantwin/internal/fairness"
)

const SLOT_REELS = 3

type Symbol struct {
	Name    string  `yaml:"name" json:"name"`
	Weight  int     `yaml:"weight" json:"weight"`
	Payout  float64 `yaml:"payout" json:"payout"` // three of a kind
	Pair    float64 `yaml:"pair" json:"pair"`     // exactly two of a kind
	Premium bool    `yaml:"premium" json:"premium"`
}

type Paytable struct {
	Symbols []Symbol `yaml:"symbols" json:"symbols"`
}

// DefaultPaytable returns about 94% at intensity 0.
func DefaultPaytable() Paytable {
	return Paytable{Symbols: []Symbol{
		{Name: "cherry", Weight: 30, Payout: 2},
		{Name: "lemon", Weight: 25, Payout: 5},
		{Name: "orange", Weight: 20, Payout: 10},
		{Name: "bell", Weight: 12, Payout: 100, Pair: 3, Premium: true},
		{Name: "bar", Weight: 8, Payout: 200, Pair: 6, Premium: true},
		{Name: "seven", Weight: 5, Payout: 1000, Pair: 15, Premium: true},
	}}
}

// LoadPaytable reads a YAML paytable:
//
//	symbols:
//	  - {name: cherry, weight: 30, payout: 2}
//	  - {name: seven, weight: 5, payout: 1000, pair: 15, premium: true}
func LoadPaytable(r io.Reader) (Paytable, error) {
	var p Paytable
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		return Paytable{}, fmt.Errorf("game.LoadPaytable: %w", err)
	}
	if err := p.validate(); err != nil {
		return Paytable{}, fmt.Errorf("game.LoadPaytable: %w", err)
	}
	return p, nil
}

func (p Paytable) validate() error {
	if len(p.Symbols) == 0 {
		return fmt.Errorf("%w: paytable has no symbols", ErrConfiguration)
	}
	positive := false
	for _, s := range p.Symbols {
		if s.Weight < 0 || s.Payout < 0 || s.Pair < 0 {
			return fmt.Errorf("%w: symbol %q has a negative value", ErrConfiguration, s.Name)
		}
		if s.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return fmt.Errorf("%w: paytable has no positive weight", ErrConfiguration)
	}
	return nil
}

func (p Paytable) weights() ([]int, []bool) {
	w := make([]int, len(p.Symbols))
	premium := make([]bool, len(p.Symbols))
	for i, s := range p.Symbols {
		w[i] = s.Weight
		premium[i] = s.Premium
	}
	return w, premium
}

// Multiplier scores one spin of symbol indexes.
func (p Paytable) Multiplier(reels []int) float64 {
	counts := make(map[int]int, len(reels))
	for _, idx := range reels {
		counts[idx]++
	}
	best := 0.0
	for idx, n := range counts {
		if idx < 0 || idx >= len(p.Symbols) {
			continue
		}
		var m float64
		switch n {
		case SLOT_REELS:
			m = p.Symbols[idx].Payout
		case SLOT_REELS - 1:
			m = p.Symbols[idx].Pair
		}
		if m > best {
			best = m
		}
	}
	return best
}

type slotsOutcome struct {
	Reels   []int    `json:"reels"`
	Symbols []string `json:"symbols"`
}

type SlotsEngine struct {
	paytable Paytable
}

func NewSlotsEngine(p Paytable) *SlotsEngine {
	return &SlotsEngine{paytable: p}
}

func (e *SlotsEngine) GetType() GameType { return GameTypeSlots }

func (e *SlotsEngine) Paytable() Paytable { return e.paytable }

func (e *SlotsEngine) Validate(Bet) error {
	return e.paytable.validate()
}

// Resolve draws one uniform per reel. The raw spin uses the published weights;
// the adjusted spin reuses the same draws against the intensity-damped ones.
func (e *SlotsEngine) Resolve(r *Round, seeds fairness.Session) error {
	base, premium := e.paytable.weights()
	adjustedWeights := edge.SlotWeights(base, premium, r.Intensity)

	s := seeds.Stream()
	raw := make([]int, SLOT_REELS)
	adjusted := make([]int, SLOT_REELS)
	for i := range raw {
		u := s.Next()
		raw[i] = fairness.WeightedIndex(base, u)
		adjusted[i] = fairness.WeightedIndex(adjustedWeights, u)
	}

	r.setOutcome(e.outcome(raw), e.outcome(adjusted))
	r.finish(e.paytable.Multiplier(adjusted))
	return nil
}

func (e *SlotsEngine) outcome(reels []int) slotsOutcome {
	names := make([]string, len(reels))
	for i, idx := range reels {
		if idx >= 0 && idx < len(e.paytable.Symbols) {
			names[i] = e.paytable.Symbols[idx].Name
		}
	}
	return slotsOutcome{Reels: reels, Symbols: names}
}

func (e *SlotsEngine) Act(*Round, Action, time.Time) error {
	return invalid("slots has no actions")
}
