package services

import (
	"crypto/rand"
	"fmt"

	"github.com/oklog/ulid/v2"
)

const (
	// keyAlphabet generates API keys and claim tokens.
	keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// codeAlphabet excludes the ambiguous I, O, 0, and 1 so verification
	// codes survive retyping from a screenshot.
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var codeWords = []string{
	"reef", "dune", "fern", "glen", "cove", "mesa", "pine", "wren",
	"kelp", "moss", "clay", "tide", "peak", "vale", "bark", "dawn",
	"fog", "hail", "iris", "jade", "kite", "loch", "nook", "opal",
}

func randString(alphabet string, n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

func randIndex(n int) int {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return int(b[0]) % n
}

// newAPIKey issues an agent API key: clk_ plus 32 opaque characters.
func newAPIKey() string { return "clk_" + randString(keyAlphabet, 32) }

// newClaimToken issues a one-time claim URL token.
func newClaimToken() string { return randString(keyAlphabet, 16) }

// newVerificationCode issues a human-readable code like reef-X4B2.
func newVerificationCode() string {
	return codeWords[randIndex(len(codeWords))] + "-" + randString(codeAlphabet, 4)
}

// newMessageID issues a ULID; lexicographic order is creation order.
func newMessageID() string { return ulid.Make().String() }
