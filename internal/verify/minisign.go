package verify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	minisign "github.com/jedisct1/go-minisign"
)

// MinisignVerifier checks detached Minisign signatures over fetched payloads.
type MinisignVerifier struct {
	publicKey minisign.PublicKey
}

// NewMinisignVerifier parses a Minisign public key. Both the two-line form
// (comment header plus key) and the bare base64 key line are accepted.
func NewMinisignVerifier(pubKey string) (*MinisignVerifier, error) {
	pubKey = strings.TrimSpace(pubKey)
	if pubKey == "" {
		return nil, errors.New("minisign public key is required")
	}
	var (
		publicKey minisign.PublicKey
		err       error
	)
	if strings.Contains(pubKey, "\n") {
		publicKey, err = minisign.DecodePublicKey(pubKey)
	} else {
		publicKey, err = minisign.NewPublicKey(pubKey)
	}
	if err != nil {
		return nil, fmt.Errorf("parse minisign public key: %w", err)
	}
	return &MinisignVerifier{publicKey: publicKey}, nil
}

// Verify validates signature (the contents of a .minisig file) against payload.
func (v *MinisignVerifier) Verify(ctx context.Context, payload, signature []byte) error {
	if v == nil {
		return errors.New("signature verifier not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(signature) == 0 {
		return errors.New("signature is empty")
	}
	decoded, err := minisign.DecodeSignature(string(signature))
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	ok, err := v.publicKey.Verify(payload, decoded)
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	if !ok {
		return errors.New("signature verification failed")
	}
	return nil
}
