// Package pubkey holds the ECDSA P-256 public key baked into the
// bootloader image and used by internal/bootfsm and internal/integrity
// to verify application signatures in the AUTH state.
package pubkey

import (
	_ "embed"
	"encoding/hex"
	"strings"
)

//go:embed pubkey.text
var hexKey string

// Embedded is the NIST P-256 base point, a valid on-curve placeholder so
// the bootloader boots out of the box. It verifies nothing meaningful:
// no application signed with a real project key will pass AUTH against it.
//
// Deprecated: replace pubkey.text with your own project's public key
// (hex-encoded, x||y, 64 bytes) before shipping. Leaving this default
// in place means AUTH can never pass for a genuinely signed image.
func Embedded() [64]byte {
	var key [64]byte
	raw, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		// pubkey.text is build-time constant content; a malformed file is
		// a packaging bug, not a runtime condition to recover from.
		panic("pubkey: pubkey.text does not decode as hex: " + err.Error())
	}
	if len(raw) != len(key) {
		panic("pubkey: pubkey.text must decode to 64 bytes")
	}
	copy(key[:], raw)
	return key
}
