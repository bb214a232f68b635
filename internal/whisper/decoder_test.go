package whisper

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/obiente/translate/livesub/internal/audio"
	"github.com/obiente/translate/livesub/internal/recognize"
)

type fakeEngine struct {
	texts  []string
	calls  int
	err    error
	closed bool
	sizes  []int
}

func (e *fakeEngine) Process(samples []float32) (string, string, error) {
	e.sizes = append(e.sizes, len(samples))
	if e.err != nil {
		return "", "", e.err
	}
	text := ""
	if e.calls < len(e.texts) {
		text = e.texts[e.calls]
	}
	e.calls++
	return text, "en", nil
}
func (e *fakeEngine) SetLanguage(string) error { return nil }
func (e *fakeEngine) Close() error             { e.closed = true; return nil }

func tone(n int, amp int16) []byte {
	s := make([]int16, n)
	for i := range s {
		if i%2 == 0 {
			s[i] = amp
		} else {
			s[i] = -amp
		}
	}
	return audio.EncodePCM16LE(s)
}

func testConfig() DecoderConfig {
	return DecoderConfig{
		WorkWindowSamples: 1600,
		Silence:           200 * time.Millisecond, // 3200 samples
		MaxUtterance:      2 * time.Second,
		SilenceRMS:        300,
	}
}

func TestStreamDecoderPartialThenFinal(t *testing.T) {
	eng := &fakeEngine{texts: []string{"how are", "how are you", "how are you?", "how are you?"}}
	d := NewStreamDecoder(eng, testConfig())

	up, err := d.Accept(tone(1600, 2000))
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := up.(recognize.Partial); !ok || p.Text() != "how are" {
		t.Fatalf("update = %#v", up)
	}
	up, _ = d.Accept(tone(1600, 2000))
	if up.Text() != "how are you" {
		t.Fatalf("update = %#v", up)
	}
	// 1600 silent samples: not yet end of speech
	up, _ = d.Accept(tone(1600, 10))
	if _, ok := up.(recognize.Partial); !ok {
		t.Fatalf("expected partial, got %#v", up)
	}
	up, _ = d.Accept(tone(1600, 10))
	f, ok := up.(recognize.Final)
	if !ok || f.Text() != "how are you?" {
		t.Fatalf("expected final, got %#v", up)
	}
	if len(d.samples) != 0 || d.lastText != "" {
		t.Fatal("decoder state not reset after final")
	}
}

func TestStreamDecoderSkipsLeadingSilence(t *testing.T) {
	eng := &fakeEngine{}
	d := NewStreamDecoder(eng, testConfig())
	for i := 0; i < 10; i++ {
		up, err := d.Accept(tone(1600, 5))
		if err != nil {
			t.Fatal(err)
		}
		if up.Text() != "" {
			t.Fatalf("unexpected text %q", up.Text())
		}
	}
	if eng.calls != 0 {
		t.Fatalf("engine called %d times on silence", eng.calls)
	}
}

func TestStreamDecoderMaxUtterance(t *testing.T) {
	eng := &fakeEngine{texts: []string{"a", "b", "c", "d", "long"}}
	d := NewStreamDecoder(eng, testConfig())
	var final recognize.Update
	for i := 0; i < 40 && final == nil; i++ {
		up, err := d.Accept(tone(1600, 2000))
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := up.(recognize.Final); ok {
			final = up
		}
	}
	if final == nil {
		t.Fatal("no final before utterance cap")
	}
	if eng.sizes[len(eng.sizes)-1] != 32000 {
		t.Fatalf("final transcribed %d samples, want 32000", eng.sizes[len(eng.sizes)-1])
	}
}

func TestStreamDecoderEngineErrorKeepsAudio(t *testing.T) {
	eng := &fakeEngine{err: errors.New("boom")}
	d := NewStreamDecoder(eng, testConfig())
	if _, err := d.Accept(tone(1600, 2000)); err == nil {
		t.Fatal("expected error")
	}
	if len(d.samples) != 1600 {
		t.Fatalf("buffered %d samples, want 1600", len(d.samples))
	}
	eng.err = nil
	eng.texts = []string{"recovered"}
	up, err := d.Accept(tone(10, 2000))
	if err != nil {
		t.Fatal(err)
	}
	if up.Text() != "recovered" {
		t.Fatalf("update = %#v", up)
	}
}

func TestStreamDecoderRejectsOddChunk(t *testing.T) {
	d := NewStreamDecoder(&fakeEngine{}, testConfig())
	if _, err := d.Accept([]byte{1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestStreamDecoderCloseClosesEngine(t *testing.T) {
	eng := &fakeEngine{}
	if err := NewStreamDecoder(eng, DecoderConfig{}).Close(); err != nil {
		t.Fatal(err)
	}
	if !eng.closed {
		t.Fatal("engine not closed")
	}
}

func TestCheckModel(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(good, append([]byte("lmgg"), 0, 0, 0, 0), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.bin")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}
	short := filepath.Join(dir, "short.bin")
	if err := os.WriteFile(short, []byte("lm"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		path string
		ok   bool
	}{
		{good, true},
		{bad, false},
		{short, false},
		{dir, false},
		{filepath.Join(dir, "missing.bin"), false},
		{"", false},
	}
	for _, c := range cases {
		ok, reason := CheckModel(c.path)
		if ok != c.ok {
			t.Errorf("CheckModel(%q) = %v (%s), want %v", c.path, ok, reason, c.ok)
		}
		if reason == "" {
			t.Errorf("CheckModel(%q) returned empty reason", c.path)
		}
	}
}
