package fairness

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Hash returns the lowercase hex SHA-256 digest of message.
func Hash(message string) string {
	sum := sha256.Sum256([]byte(message))
	return hex.EncodeToString(sum[:])
}

// HashCommitment creates the commitment shown to the player before a round.
func HashCommitment(serverSeed string) string {
	return Hash(serverSeed)
}

// RoundDigest combines the seed triple into the digest the hash-routed games read from.
func RoundDigest(serverSeed, clientSeed string, nonce int) string {
	return Hash(serverSeed + ":" + clientSeed + ":" + strconv.Itoa(nonce))
}
