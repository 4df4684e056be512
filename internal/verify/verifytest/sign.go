// Package verifytest generates Minisign material for tests.
package verifytest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

// Sign produces a legacy ("Ed") Minisign public key and a detached signature
// over payload without touching the filesystem.
func Sign(t testing.TB, payload []byte) (pubKey string, signature []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	keyID := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pubBin := append(append([]byte("Ed"), keyID...), pub...)
	pubKey = "untrusted comment: test key\n" + base64.StdEncoding.EncodeToString(pubBin)

	sig := ed25519.Sign(priv, payload)
	trusted := "trusted comment: timestamp:1730000000"
	global := ed25519.Sign(priv, append(append([]byte{}, sig...), []byte(trusted[17:])...))

	sigBin := append(append([]byte("Ed"), keyID...), sig...)
	signature = []byte("untrusted comment: signature\n" +
		base64.StdEncoding.EncodeToString(sigBin) + "\n" +
		trusted + "\n" +
		base64.StdEncoding.EncodeToString(global) + "\n")
	return pubKey, signature
}
