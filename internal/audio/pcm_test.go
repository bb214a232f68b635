package audio

import (
	"bytes"
	"testing"
)

func TestPCM16RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	b := EncodePCM16LE(in)
	if !bytes.Equal(b[:4], []byte{0, 0, 1, 0}) {
		t.Fatalf("unexpected encoding % x", b[:4])
	}
	out, err := DecodePCM16LE(b)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("sample %d: %d != %d", i, out[i], in[i])
		}
	}
}

func TestDecodePCM16LEOddLength(t *testing.T) {
	if _, err := DecodePCM16LE([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for odd length")
	}
}

func TestClampInt16(t *testing.T) {
	cases := map[float64]int16{40000: 32767, -40000: -32768, 1.4: 1, -1.6: -2}
	for in, want := range cases {
		if got := ClampInt16(in); got != want {
			t.Errorf("ClampInt16(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestProcessorResamplesAndMeters(t *testing.T) {
	p := NewProcessor(48000, 16000)
	frame := make([]int16, 1024)
	for i := range frame {
		frame[i] = 1500
	}
	level, chunk := p.Process(frame)
	if level != 100 {
		t.Fatalf("level = %v, want 100", level)
	}
	if len(chunk) != 341*2 {
		t.Fatalf("chunk bytes = %d, want %d", len(chunk), 341*2)
	}
}
