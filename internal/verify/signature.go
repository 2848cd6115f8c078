package verify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedisct1/go-minisign"
)

// LoadMinisignKey accepts either a path to a .pub file or the base64 key itself.
func LoadMinisignKey(keyOrPath string) (minisign.PublicKey, error) {
	trimmed := strings.TrimSpace(keyOrPath)
	if trimmed == "" {
		return minisign.PublicKey{}, errors.New("minisign public key is empty")
	}
	if _, err := os.Stat(trimmed); err == nil {
		pk, err := minisign.NewPublicKeyFromFile(trimmed)
		if err != nil {
			return minisign.PublicKey{}, fmt.Errorf("read minisign pubkey: %w", err)
		}
		return pk, nil
	}
	pk, err := minisign.NewPublicKey(trimmed)
	if err != nil {
		return minisign.PublicKey{}, fmt.Errorf("parse minisign pubkey: %w", err)
	}
	return pk, nil
}

// VerifyMinisign checks content against a minisign signature file body.
func VerifyMinisign(content, sigFile []byte, pubKey minisign.PublicKey) error {
	if !strings.HasPrefix(strings.TrimSpace(string(sigFile)), "untrusted comment:") {
		return errors.New("minisign: signature file is not in minisign format")
	}
	sig, err := minisign.DecodeSignature(string(sigFile))
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}

	valid, err := pubKey.Verify(content, sig)
	if err != nil {
		return fmt.Errorf("minisign: verification error: %w", err)
	}
	if !valid {
		return fmt.Errorf("minisign: signature verification failed")
	}

	return nil
}
