package clhsm

import (
	"math/big"
	"testing"
)

func TestZeroizeBytes(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	ZeroizeBytes(buf)
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %d", i, b)
		}
	}
}

func TestZeroizeInt(t *testing.T) {
	x, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	words := x.Bits()
	ZeroizeInt(x)
	if x.Sign() != 0 {
		t.Fatalf("value not cleared: %s", x)
	}
	for i, w := range words {
		if w != 0 {
			t.Fatalf("limb %d not cleared", i)
		}
	}
	ZeroizeInt(nil)
}
