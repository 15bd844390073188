package pubkey

import (
	"crypto/elliptic"
	"math/big"
	"testing"
)

func TestEmbeddedIsOnCurve(t *testing.T) {
	key := Embedded()
	x := new(big.Int).SetBytes(key[:32])
	y := new(big.Int).SetBytes(key[32:])
	if !elliptic.P256().IsOnCurve(x, y) {
		t.Fatal("Embedded() is not a point on P-256")
	}
}

func TestEmbeddedIsStable(t *testing.T) {
	if Embedded() != Embedded() {
		t.Fatal("Embedded() should return the same constant every call")
	}
}
