package translation

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeCapability tags text with each leg it passes through.
type fakeCapability struct {
	pairs   map[string]bool
	failOn  string
	lookErr error
	calls   []string
}

func newFake(pairs ...string) *fakeCapability {
	f := &fakeCapability{pairs: make(map[string]bool)}
	for _, p := range pairs {
		f.pairs[p] = true
	}
	return f
}

func (f *fakeCapability) Languages(context.Context) ([]string, error) { return nil, nil }

func (f *fakeCapability) Installed(_ context.Context, src, tgt string) (bool, error) {
	if f.lookErr != nil {
		return false, f.lookErr
	}
	return f.pairs[src+">"+tgt], nil
}

func (f *fakeCapability) Translate(_ context.Context, text, src, tgt string) (string, error) {
	leg := src + ">" + tgt
	f.calls = append(f.calls, leg)
	if leg == f.failOn {
		return "", errors.New("engine crashed")
	}
	return "[" + leg + "]" + text, nil
}

var _ Capability = (*fakeCapability)(nil)

func TestRouterAutoPrefersDirect(t *testing.T) {
	r := NewRouter(newFake("ja>zh", "ja>en", "en>zh"), "en")
	got := r.Translate(context.Background(), "こんにちは", "ja", "zh", RouteAuto)
	if got != "[ja>zh]こんにちは" {
		t.Fatalf("got %q", got)
	}
}

func TestRouterAutoFallsBackToPivot(t *testing.T) {
	r := NewRouter(newFake("ja>en", "en>zh"), "en")
	got := r.Translate(context.Background(), "hi", "ja", "zh", RouteAuto)
	if got != "[en>zh][ja>en]hi" {
		t.Fatalf("got %q", got)
	}
}

func TestRouterAutoNoPath(t *testing.T) {
	r := NewRouter(newFake("ja>en"), "en")
	if got := r.Translate(context.Background(), "hi", "ja", "zh", RouteAuto); got != "hi" {
		t.Fatalf("got %q", got)
	}
}

func TestRouterAutoSkipsPivotWhenEndpointIsPivot(t *testing.T) {
	f := newFake("en>en", "en>zh")
	r := NewRouter(f, "en")
	if got := r.Translate(context.Background(), "hi", "en", "fr", RouteAuto); got != "hi" {
		t.Fatalf("got %q", got)
	}
	if len(f.calls) != 0 {
		t.Fatalf("unexpected calls %v", f.calls)
	}
}

func TestRouterDirectOnly(t *testing.T) {
	r := NewRouter(newFake("ja>en", "en>zh"), "en")
	if got := r.Translate(context.Background(), "hi", "ja", "zh", RouteDirect); got != "hi" {
		t.Fatalf("direct route used pivot: %q", got)
	}
	r = NewRouter(newFake("ja>zh"), "en")
	if got := r.Translate(context.Background(), "hi", "ja", "zh", RouteDirect); got != "[ja>zh]hi" {
		t.Fatalf("got %q", got)
	}
}

func TestRouterViaPivotOnly(t *testing.T) {
	r := NewRouter(newFake("ja>zh", "ja>en", "en>zh"), "en")
	if got := r.Translate(context.Background(), "hi", "ja", "zh", RouteViaPivot); got != "[en>zh][ja>en]hi" {
		t.Fatalf("got %q", got)
	}
	r = NewRouter(newFake("ja>zh", "ja>en"), "en")
	if got := r.Translate(context.Background(), "hi", "ja", "zh", RouteViaPivot); got != "hi" {
		t.Fatalf("got %q", got)
	}
}

func TestRouterNormalizesAliases(t *testing.T) {
	r := NewRouter(newFake("ja>zh"), "en")
	if got := r.Translate(context.Background(), "hi", "JA-JP", "zh_Hans", RouteAuto); got != "[ja>zh]hi" {
		t.Fatalf("got %q", got)
	}
	if got := r.Translate(context.Background(), "hi", "zh-CN", "ZH", RouteAuto); got != "hi" {
		t.Fatalf("same language after normalization should pass through, got %q", got)
	}
}

func TestRouterPassThrough(t *testing.T) {
	f := newFake("ja>zh")
	r := NewRouter(f, "")
	for _, text := range []string{"", "   "} {
		if got := r.Translate(context.Background(), text, "ja", "zh", RouteAuto); got != text {
			t.Fatalf("got %q for %q", got, text)
		}
	}
	if len(f.calls) != 0 {
		t.Fatalf("capability called for blank text: %v", f.calls)
	}
	disabled := NewRouter(nil, "en")
	if got := disabled.Translate(context.Background(), "hi", "ja", "zh", RouteAuto); got != "hi" {
		t.Fatalf("got %q", got)
	}
}

func TestRouterFailsOpen(t *testing.T) {
	f := newFake("ja>en", "en>zh")
	f.failOn = "en>zh"
	r := NewRouter(f, "en")
	if got := r.Translate(context.Background(), "hi", "ja", "zh", RouteAuto); got != "hi" {
		t.Fatalf("got %q", got)
	}

	f = newFake("ja>zh")
	f.lookErr = errors.New("server down")
	r = NewRouter(f, "en")
	if got := r.Translate(context.Background(), "hi", "ja", "zh", RouteAuto); got != "hi" {
		t.Fatalf("got %q", got)
	}
}

func TestPlanString(t *testing.T) {
	r := NewRouter(newFake("ja>en", "en>zh"), "en")
	p := r.Plan(context.Background(), "ja", "zh", RouteAuto)
	if p.Direct() || !strings.HasPrefix(p.String(), "via en") {
		t.Fatalf("plan = %v", p)
	}
	if p := NewRouter(nil, "").Plan(context.Background(), "ja", "zh", RouteAuto); p.String() != "translation disabled" {
		t.Fatalf("plan = %v", p)
	}
}

func TestBindingTranslate(t *testing.T) {
	b := NewRouter(newFake("ja>zh"), "en").Bind("ja", "zh", RouteAuto, 0)
	if got := b.Translate(context.Background(), "x"); got != "[ja>zh]x" {
		t.Fatalf("got %q", got)
	}
	if !b.Plan(context.Background()).Direct() {
		t.Fatal("expected direct plan")
	}
}

func TestParseRoute(t *testing.T) {
	cases := map[string]Route{
		"":              RouteAuto,
		"AUTO":          RouteAuto,
		"prefer_direct": RouteDirect,
		"via_pivot":     RouteViaPivot,
		"prefer_via_en": RouteViaPivot,
	}
	for in, want := range cases {
		got, err := ParseRoute(in)
		if err != nil || got != want {
			t.Errorf("ParseRoute(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseRoute("sideways"); err == nil {
		t.Error("expected error")
	}
}
