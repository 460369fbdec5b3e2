package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"instantwin/internal/game"
)

func TestSimulate_EveryGameSettles(t *testing.T) {
	factory := game.DefaultFactory()
	results, err := simulateAll(factory, factory.Types(), []float64{0, 1}, defaultStrategy(), 200)
	require.NoError(t, err)
	require.Len(t, results, 2*len(factory.Types()))

	for _, r := range results {
		assert.Equal(t, 200, r.Rounds, r.Game)
		assert.GreaterOrEqual(t, r.RTP, 0.0, r.Game)
		assert.LessOrEqual(t, r.Wins, r.Rounds, r.Game)
	}
}

func TestSimulate_IntensityNeverRaisesDiceReturn(t *testing.T) {
	engine, _ := game.DefaultFactory().GetEngine(game.GameTypeDice)
	fair, err := simulate(engine, defaultStrategy(), 0, 5000)
	require.NoError(t, err)
	biased, err := simulate(engine, defaultStrategy(), 1, 5000)
	require.NoError(t, err)

	assert.Less(t, biased.RTP, fair.RTP)
	assert.Less(t, biased.Wins, fair.Wins)
}

func TestSimulate_InvalidStrategy(t *testing.T) {
	s := defaultStrategy()
	s.Mines = 0
	engine, _ := game.DefaultFactory().GetEngine(game.GameTypeMines)
	_, err := simulate(engine, s, 0, 10)
	assert.ErrorIs(t, err, game.ErrInvalidParameters)
}

func TestSimulateAll_UnknownGame(t *testing.T) {
	_, err := simulateAll(game.DefaultFactory(), []game.GameType{"roulette"}, []float64{0}, defaultStrategy(), 1)
	assert.ErrorIs(t, err, game.ErrUnknownGame)
}

func TestRender(t *testing.T) {
	results := []result{{Game: game.GameTypeDice, Intensity: 0.5, Rounds: 10, Wins: 4, RTP: 0.796, MaxMulti: 1.99}}

	var table bytes.Buffer
	require.NoError(t, render(&table, "table", results))
	assert.Contains(t, table.String(), "dice")
	assert.Contains(t, table.String(), "40.00%")

	var out bytes.Buffer
	require.NoError(t, render(&out, "yaml", results))
	var decoded []result
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, results, decoded)

	assert.Error(t, render(&bytes.Buffer{}, "csv", results))
}
