package fairness

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	SERVER_SEED_BYTES = 32 // 64 hex characters
	CLIENT_SEED_BYTES = 16
)

// ErrRandomness is returned when the system randomness source cannot be read.
var ErrRandomness = errors.New("randomness source unavailable")

// Session is the per player-game seed triple. It is a value type: Advance
// returns a new Session instead of mutating the receiver.
type Session struct {
	ServerSeed     string    `json:"server_seed"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Nonce          int       `json:"nonce"`
	CreatedAt      time.Time `json:"created_at"`
}

// Commitment is the part of a Session that may be shown before a round.
type Commitment struct {
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"`
}

// Reveal is handed out when a session is rotated away.
type Reveal struct {
	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int    `json:"nonce"` // rounds played with this seed pair
}

// randRead is swapped in tests to simulate an exhausted randomness source.
var randRead = rand.Read

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := randRead(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomness, err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateSeed creates a cryptographically secure 64 character server seed.
func GenerateSeed() (string, error) {
	return randomHex(SERVER_SEED_BYTES)
}

// NewSession creates a fresh session. An empty clientSeed is replaced by a random one.
func NewSession(clientSeed string) (Session, error) {
	const op = "fairness.NewSession"

	serverSeed, err := GenerateSeed()
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}

	if clientSeed == "" {
		clientSeed, err = randomHex(CLIENT_SEED_BYTES)
		if err != nil {
			return Session{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	return Session{
		ServerSeed:     serverSeed,
		ServerSeedHash: HashCommitment(serverSeed),
		ClientSeed:     clientSeed,
		Nonce:          0,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Advance returns the session with the nonce moved past the round just settled.
func (s Session) Advance() Session {
	s.Nonce++
	return s
}

// Verify reports whether the stored hash still commits to the stored seed.
func (s Session) Verify() bool {
	return s.ServerSeed != "" && HashCommitment(s.ServerSeed) == s.ServerSeedHash
}

func (s Session) Public() Commitment {
	return Commitment{
		ServerSeedHash: s.ServerSeedHash,
		ClientSeed:     s.ClientSeed,
		Nonce:          s.Nonce,
	}
}

func (s Session) Reveal() Reveal {
	return Reveal{
		ServerSeed:     s.ServerSeed,
		ServerSeedHash: s.ServerSeedHash,
		ClientSeed:     s.ClientSeed,
		Nonce:          s.Nonce,
	}
}

// Digest is the round digest for the current nonce.
func (s Session) Digest() string {
	return RoundDigest(s.ServerSeed, s.ClientSeed, s.Nonce)
}

// Stream is the float stream for the current nonce.
func (s Session) Stream() *Stream {
	return NewStream(s.ServerSeed, s.ClientSeed, s.Nonce)
}

// VerifyCommitment checks a revealed server seed against the hash shown before play.
func VerifyCommitment(serverSeed, serverSeedHash string) bool {
	return HashCommitment(serverSeed) == serverSeedHash
}
