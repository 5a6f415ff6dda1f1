// File: wsframe/generator_test.go
package wsframe_test

import (
	"bytes"
	"testing"

	"github.com/momentics/wscore/wsframe"
)

func TestEncode_S1_UnmaskedTextHello(t *testing.T) {
	got, err := wsframe.Encode(nil, true, false, false, false, wsframe.OpText, []byte("Hello"), false, [4]byte{})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x81, 0x05, 0x48, 0x65, 0x6C, 0x6C, 0x6F}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

func TestEncode_S3_MaskedTextHello(t *testing.T) {
	key := [4]byte{0x37, 0xFA, 0x21, 0x3D}
	got, err := wsframe.Encode(nil, true, false, false, false, wsframe.OpText, []byte("Hello"), true, key)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x81, 0x85, 0x37, 0xFA, 0x21, 0x3D, 0x7F, 0x9F, 0x4D, 0x51, 0x58}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x, want % x", got, want)
	}
}

func TestEncode_RejectsOversizeControlFrame(t *testing.T) {
	payload := bytes.Repeat([]byte{0x01}, 126)
	_, err := wsframe.Encode(nil, true, false, false, false, wsframe.OpPing, payload, false, [4]byte{})
	if err == nil {
		t.Fatal("expected error for oversize control payload")
	}
}

func TestEncode_MinimalLengthForm(t *testing.T) {
	cases := []struct {
		n        int
		wantLen  int
		wantMark byte
	}{
		{125, 2, 125},
		{126, 4, 126},
		{0xFFFF, 4, 126},
		{0x10000, 10, 127},
	}
	for _, c := range cases {
		payload := bytes.Repeat([]byte{0x01}, c.n)
		got, err := wsframe.Encode(nil, true, false, false, false, wsframe.OpBinary, payload, false, [4]byte{})
		if err != nil {
			t.Fatalf("n=%d: %v", c.n, err)
		}
		if got[1] != c.wantMark {
			t.Fatalf("n=%d: length marker byte = %d, want %d", c.n, got[1], c.wantMark)
		}
		if len(got)-c.n != c.wantLen {
			t.Fatalf("n=%d: header length = %d, want %d", c.n, len(got)-c.n, c.wantLen)
		}
	}
}

func TestEncode_HeaderLenMatchesEncode(t *testing.T) {
	for _, n := range []int{0, 1, 125, 126, 0xFFFF, 0x10000} {
		payload := bytes.Repeat([]byte{0x02}, n)
		for _, masked := range []bool{false, true} {
			var key [4]byte
			got, err := wsframe.Encode(nil, true, false, false, false, wsframe.OpBinary, payload, masked, key)
			if err != nil {
				t.Fatal(err)
			}
			want := wsframe.HeaderLen(uint64(n), masked)
			if len(got)-n != want {
				t.Fatalf("n=%d masked=%v: header length = %d, want %d", n, masked, len(got)-n, want)
			}
		}
	}
}

// Round-trip: encode then parse back yields the original payload, for both
// masked (client) and unmasked (server) framing.
func TestEncodeParse_RoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 4096)

	maskedWire, err := wsframe.Encode(nil, true, false, false, false, wsframe.OpBinary, payload, true, [4]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatal(err)
	}
	p := wsframe.NewParser(wsframe.RoleServer, 0)
	frames, err := p.Feed(maskedWire)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 || !bytes.Equal(frames[0].Payload, payload) {
		t.Fatal("masked round-trip mismatch")
	}

	unmaskedWire, err := wsframe.Encode(nil, true, false, false, false, wsframe.OpBinary, payload, false, [4]byte{})
	if err != nil {
		t.Fatal(err)
	}
	p2 := wsframe.NewParser(wsframe.RoleClient, 0)
	frames2, err := p2.Feed(unmaskedWire)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames2) != 1 || !bytes.Equal(frames2[0].Payload, payload) {
		t.Fatal("unmasked round-trip mismatch")
	}
}
