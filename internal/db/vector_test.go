package db

import "testing"

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3}
	blob := EncodeVector(in)
	if len(blob) != 12 {
		t.Fatalf("blob length = %d, want 12", len(blob))
	}
	out := DecodeVector(blob)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestDecodeVector_Malformed(t *testing.T) {
	for _, s := range []string{"", "abc", "abcde"} {
		if DecodeVector(s) != nil {
			t.Errorf("DecodeVector(%q) must be nil", s)
		}
	}
}
