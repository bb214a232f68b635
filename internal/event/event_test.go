package event

import "testing"

type recorder struct {
	levels   []float64
	captions []Caption
	statuses []string
	errors   []string
}

func (r *recorder) Level(p float64)   { r.levels = append(r.levels, p) }
func (r *recorder) Caption(c Caption) { r.captions = append(r.captions, c) }
func (r *recorder) Status(m string)   { r.statuses = append(r.statuses, m) }
func (r *recorder) Error(m string)    { r.errors = append(r.errors, m) }

var (
	_ Sink = Multi(nil)
	_ Sink = LogSink{}
	_ Sink = Nop{}
)

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, LogSink{}, b, Nop{}}
	m.Level(42)
	m.Caption(Caption{Seq: 1, Source: "hi", Translated: "salut"})
	m.Status("listening")
	m.Error("boom")
	for _, r := range []*recorder{a, b} {
		if len(r.levels) != 1 || r.levels[0] != 42 {
			t.Fatalf("levels = %v", r.levels)
		}
		if len(r.captions) != 1 || r.captions[0].Translated != "salut" {
			t.Fatalf("captions = %v", r.captions)
		}
		if len(r.statuses) != 1 || len(r.errors) != 1 {
			t.Fatalf("statuses=%v errors=%v", r.statuses, r.errors)
		}
	}
}
