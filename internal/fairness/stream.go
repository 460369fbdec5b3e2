package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
)

const BYTES_PER_FLOAT = 4

// Stream yields deterministic floats in [0,1) from a seed triple. Each block is
// HMAC-SHA256(serverSeed, "clientSeed:nonce:cursor") and provides eight floats.
// Anyone holding the revealed seeds can replay the exact sequence.
type Stream struct {
	serverSeed string
	clientSeed string
	nonce      int
	cursor     int
	buf        []byte
}

func NewStream(serverSeed, clientSeed string, nonce int) *Stream {
	return &Stream{
		serverSeed: serverSeed,
		clientSeed: clientSeed,
		nonce:      nonce,
	}
}

func (s *Stream) refill() {
	h := hmac.New(sha256.New, []byte(s.serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", s.clientSeed, s.nonce, s.cursor)
	s.buf = h.Sum(nil)
	s.cursor++
}

// Next returns the next float in [0,1).
func (s *Stream) Next() float64 {
	if len(s.buf) < BYTES_PER_FLOAT {
		s.refill()
	}

	f := 0.0
	div := 256.0
	for _, b := range s.buf[:BYTES_PER_FLOAT] {
		f += float64(b) / div
		div *= 256
	}
	s.buf = s.buf[BYTES_PER_FLOAT:]
	return f
}

// Floats returns the next n floats.
func (s *Stream) Floats(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Next()
	}
	return out
}
