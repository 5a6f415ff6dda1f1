// File: wsframe/masker_test.go
package wsframe_test

import (
	"bytes"
	"testing"

	"github.com/momentics/wscore/wsframe"
)

func TestMask_Involution(t *testing.T) {
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	original := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04, 0x05}, 7)
	buf := append([]byte(nil), original...)

	wsframe.Mask(buf, key)
	if bytes.Equal(buf, original) {
		t.Fatal("masking did not change the buffer")
	}
	wsframe.Mask(buf, key)
	if !bytes.Equal(buf, original) {
		t.Fatal("double masking did not restore the original payload")
	}
}

func TestMask_KnownVector(t *testing.T) {
	key := [4]byte{0x37, 0xFA, 0x21, 0x3D}
	buf := []byte("Hello")
	wsframe.Mask(buf, key)
	want := []byte{0x7F, 0x9F, 0x4D, 0x51, 0x58}
	if !bytes.Equal(buf, want) {
		t.Fatalf("got % x, want % x", buf, want)
	}
}

func TestRandomMasker_ProducesVaryingKeys(t *testing.T) {
	m := wsframe.NewRandomMasker()
	seen := make(map[[4]byte]bool)
	for i := 0; i < 16; i++ {
		seen[m.NextKey()] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected varying mask keys across draws")
	}
}

func TestFixedMasker_AlwaysSameKey(t *testing.T) {
	m := wsframe.FixedMasker{Key: [4]byte{9, 9, 9, 9}}
	if m.NextKey() != m.NextKey() {
		t.Fatal("FixedMasker must return a constant key")
	}
}
