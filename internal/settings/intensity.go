package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"instantwin/internal/edge"
)

const (
	INTENSITY_KEY = "edge:intensity"
	DISABLED_KEY  = "edge:disabled"
)

var ErrReadOnly = errors.New("settings source is read-only")

// GameSettings is the snapshot a round captures once at start.
type GameSettings struct {
	Intensity float64 `json:"intensity"`
	Enabled   bool    `json:"enabled"`
}

func Defaults(intensity float64) GameSettings {
	return GameSettings{Intensity: edge.Clamp(intensity), Enabled: true}
}

type IntensityProvider interface {
	Snapshot(ctx context.Context, game string) (GameSettings, error)
}

// Writer is implemented by sources the admin API can change at runtime.
type Writer interface {
	SetIntensity(ctx context.Context, game string, intensity float64) error
	SetEnabled(ctx context.Context, game string, enabled bool) error
}

// Static keeps settings in memory.
type Static struct {
	mu       sync.RWMutex
	fallback GameSettings
	games    map[string]GameSettings
}

func NewStatic(defaultIntensity float64) *Static {
	return &Static{fallback: Defaults(defaultIntensity), games: make(map[string]GameSettings)}
}

func (s *Static) Snapshot(_ context.Context, game string) (GameSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if g, ok := s.games[game]; ok {
		return g, nil
	}
	return s.fallback, nil
}

func (s *Static) SetIntensity(_ context.Context, game string, intensity float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok {
		g = s.fallback
	}
	g.Intensity = edge.Clamp(intensity)
	s.games[game] = g
	return nil
}

func (s *Static) SetEnabled(_ context.Context, game string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[game]
	if !ok {
		g = s.fallback
	}
	g.Enabled = enabled
	s.games[game] = g
	return nil
}

// RedisIntensity reads intensities from the edge:intensity hash and disabled
// games from the edge:disabled hash. Missing fields fall back to the default.
type RedisIntensity struct {
	client   *redis.Client
	fallback GameSettings
}

func NewRedisIntensity(client *redis.Client, defaultIntensity float64) *RedisIntensity {
	return &RedisIntensity{client: client, fallback: Defaults(defaultIntensity)}
}

func (r *RedisIntensity) Snapshot(ctx context.Context, game string) (GameSettings, error) {
	const op = "settings.RedisIntensity.Snapshot"

	pipe := r.client.Pipeline()
	intensityCmd := pipe.HGet(ctx, INTENSITY_KEY, game)
	disabledCmd := pipe.HExists(ctx, DISABLED_KEY, game)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return GameSettings{}, fmt.Errorf("%s: %w", op, err)
	}

	out := r.fallback
	if raw, err := intensityCmd.Result(); err == nil {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return GameSettings{}, fmt.Errorf("%s: bad intensity %q for %s: %w", op, raw, game, err)
		}
		out.Intensity = edge.Clamp(v)
	}
	if disabled, err := disabledCmd.Result(); err == nil && disabled {
		out.Enabled = false
	}
	return out, nil
}

func (r *RedisIntensity) SetIntensity(ctx context.Context, game string, intensity float64) error {
	v := strconv.FormatFloat(edge.Clamp(intensity), 'f', -1, 64)
	if err := r.client.HSet(ctx, INTENSITY_KEY, game, v).Err(); err != nil {
		return fmt.Errorf("settings.RedisIntensity.SetIntensity: %w", err)
	}
	return nil
}

func (r *RedisIntensity) SetEnabled(ctx context.Context, game string, enabled bool) error {
	var err error
	if enabled {
		err = r.client.HDel(ctx, DISABLED_KEY, game).Err()
	} else {
		err = r.client.HSet(ctx, DISABLED_KEY, game, "1").Err()
	}
	if err != nil {
		return fmt.Errorf("settings.RedisIntensity.SetEnabled: %w", err)
	}
	return nil
}

type fileGame struct {
	Intensity *float64 `yaml:"intensity"`
	Enabled   *bool    `yaml:"enabled"`
}

type fileLayout struct {
	Default fileGame            `yaml:"default"`
	Games   map[string]fileGame `yaml:"games"`
}

// FileIntensity serves settings from a YAML file:
//
//	default:
//	  intensity: 0.1
//	games:
//	  crash:
//	    intensity: 0.4
//	  penalty:
//	    enabled: false
type FileIntensity struct {
	path string

	mu       sync.RWMutex
	fallback GameSettings
	games    map[string]GameSettings
}

func NewFileIntensity(path string) (*FileIntensity, error) {
	f := &FileIntensity{path: path}
	if err := f.Reload(); err != nil {
		return nil, err
	}
	return f, nil
}

// Reload re-reads the file. On error the previous settings stay in effect.
func (f *FileIntensity) Reload() error {
	const op = "settings.FileIntensity.Reload"

	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	var layout fileLayout
	if err := yaml.Unmarshal(data, &layout); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	fallback := layout.Default.apply(Defaults(0))
	games := make(map[string]GameSettings, len(layout.Games))
	for name, g := range layout.Games {
		games[name] = g.apply(fallback)
	}

	f.mu.Lock()
	f.fallback = fallback
	f.games = games
	f.mu.Unlock()
	return nil
}

func (g fileGame) apply(base GameSettings) GameSettings {
	if g.Intensity != nil {
		base.Intensity = edge.Clamp(*g.Intensity)
	}
	if g.Enabled != nil {
		base.Enabled = *g.Enabled
	}
	return base
}

func (f *FileIntensity) Snapshot(_ context.Context, game string) (GameSettings, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if g, ok := f.games[game]; ok {
		return g, nil
	}
	return f.fallback, nil
}

func (f *FileIntensity) SetIntensity(context.Context, string, float64) error { return ErrReadOnly }
func (f *FileIntensity) SetEnabled(context.Context, string, bool) error      { return ErrReadOnly }
