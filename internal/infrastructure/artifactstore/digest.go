package artifactstore

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DigestAlgorithm names the hash used for artifact digests.
const DigestAlgorithm = "blake2b-256"

var ErrDigestMismatch = errors.New("artifact digest mismatch")

// Digest returns the lowercase hex blake2b-256 digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest compares data against an expected hex digest.
func VerifyDigest(data []byte, want string) error {
	got := Digest(data)
	if got != strings.ToLower(want) {
		return fmt.Errorf("%w: got %s, want %s", ErrDigestMismatch, got, want)
	}
	return nil
}

func validDigest(s string) bool {
	b, err := hex.DecodeString(s)
	return err == nil && len(b) == blake2b.Size256
}
