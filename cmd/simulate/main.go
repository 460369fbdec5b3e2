package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"instantwin/internal/game"
	"instantwin/internal/logger"
	"instantwin/internal/payout"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		rounds      int
		games       []string
		intensities []float64
		paytable    string
		format      string
		risk        string
		s           = defaultStrategy()
	)

	cmd := &cobra.Command{
		Use:           "simulate",
		Short:         "Measure return to player per game across bias intensities",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger.Init(&logger.Options{Level: logger.ParseLevel(os.Getenv("LOG_LEVEL"))})
			log := logger.Component("simulate")

			if rounds <= 0 {
				return fmt.Errorf("rounds must be positive")
			}
			if s.Reveals < 1 || s.Goals < 1 {
				return fmt.Errorf("reveals and goals must be at least 1")
			}
			for _, i := range intensities {
				if i < 0 || i > 1 {
					return fmt.Errorf("intensity %v outside [0, 1]", i)
				}
			}
			s.PlinkoRisk = payout.PlinkoRisk(risk)

			factory, err := buildFactory(paytable)
			if err != nil {
				return err
			}
			selected := factory.Types()
			if len(games) > 0 {
				selected = selected[:0]
				for _, g := range games {
					selected = append(selected, game.GameType(g))
				}
			}

			log.Info("simulating", "games", len(selected), "intensities", len(intensities), "rounds", rounds)
			results, err := simulateAll(factory, selected, intensities, s, rounds)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), format, results)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&rounds, "rounds", "n", 100000, "rounds per game and intensity")
	f.StringSliceVarP(&games, "games", "g", nil, "games to simulate (default all)")
	f.Float64SliceVarP(&intensities, "intensity", "i", []float64{0, 0.25, 0.5, 0.75, 1}, "bias intensities")
	f.StringVar(&paytable, "paytable", os.Getenv("SLOTS_PAYTABLE_FILE"), "slots paytable YAML")
	f.StringVarP(&format, "format", "o", "table", "output format: table or yaml")
	f.Float64Var(&s.CrashCashout, "crash-cashout", s.CrashCashout, "crash and aviator auto cashout")
	f.Float64Var(&s.LimboTarget, "limbo-target", s.LimboTarget, "limbo target multiplier")
	f.IntVar(&s.DiceOver, "dice-over", s.DiceOver, "dice threshold, betting over")
	f.IntVar(&s.Mines, "mines", s.Mines, "mines on the grid")
	f.IntVar(&s.Reveals, "reveals", s.Reveals, "mines cells revealed before cashing out")
	f.IntVar(&s.Goals, "goals", s.Goals, "penalty goals before cashing out")
	f.IntVar(&s.PlinkoRows, "plinko-rows", s.PlinkoRows, "plinko rows")
	f.StringVar(&risk, "plinko-risk", string(s.PlinkoRisk), "plinko risk: low, medium or high")
	return cmd
}

func buildFactory(paytable string) (*game.GameFactory, error) {
	factory := game.DefaultFactory()
	if paytable == "" {
		return factory, nil
	}
	file, err := os.Open(paytable)
	if err != nil {
		return nil, fmt.Errorf("open paytable: %w", err)
	}
	defer file.Close()

	p, err := game.LoadPaytable(file)
	if err != nil {
		return nil, err
	}
	factory.RegisterEngine(game.NewSlotsEngine(p))
	return factory, nil
}

func render(w io.Writer, format string, results []result) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(results)
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "GAME\tINTENSITY\tROUNDS\tWIN RATE\tRTP\tMAX")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%.2f\t%d\t%.2f%%\t%.4f\t%.2fx\n",
				r.Game, r.Intensity, r.Rounds, 100*float64(r.Wins)/float64(r.Rounds), r.RTP, r.MaxMulti)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
