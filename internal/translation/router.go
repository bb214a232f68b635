package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Route selects how the router reaches the target language.
type Route string

const (
	// RouteAuto prefers a direct pair and falls back to the pivot language.
	RouteAuto Route = "auto"
	// RouteDirect only uses a direct pair.
	RouteDirect Route = "direct"
	// RouteViaPivot only goes through the pivot language.
	RouteViaPivot Route = "via_pivot"
)

// DefaultPivot is the bridge language for two-leg translation.
const DefaultPivot = "en"

// ParseRoute accepts the route names plus the older prefer_* spellings.
func ParseRoute(s string) (Route, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return RouteAuto, nil
	case "direct", "prefer_direct":
		return RouteDirect, nil
	case "via_pivot", "pivot", "prefer_via_en", "via_en":
		return RouteViaPivot, nil
	}
	return "", fmt.Errorf("unknown translation route %q", s)
}

var langAliases = map[string]string{
	"zh-cn":   "zh",
	"zh_cn":   "zh",
	"zh-hans": "zh",
	"zh_hans": "zh",
	"zh-sg":   "zh",
	"ja-jp":   "ja",
	"ja_jp":   "ja",
	"jp":      "ja",
	"en-us":   "en",
	"en_us":   "en",
	"en-gb":   "en",
	"en_gb":   "en",
	"ko-kr":   "ko",
	"ko_kr":   "ko",
}

// NormalizeLang case-folds code and collapses known locale variants.
func NormalizeLang(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if a, ok := langAliases[c]; ok {
		return a
	}
	return c
}

// Plan is the path the router would take for one language pair.
type Plan struct {
	// Legs lists the directed pairs applied in order. Empty means the text
	// passes through untranslated.
	Legs [][2]string
	// Reason explains an empty plan.
	Reason string
}

// Direct reports whether the plan is a single leg.
func (p Plan) Direct() bool { return len(p.Legs) == 1 }

func (p Plan) String() string {
	switch len(p.Legs) {
	case 0:
		return p.Reason
	case 1:
		return "direct " + p.Legs[0][0] + "->" + p.Legs[0][1]
	}
	return fmt.Sprintf("via %s: %s->%s->%s", p.Legs[0][1], p.Legs[0][0], p.Legs[0][1], p.Legs[1][1])
}

// Router applies a route policy on top of an optional Capability. It never
// fails: when no path exists or a call errors, the input text is returned.
type Router struct {
	cap   Capability
	pivot string
}

// NewRouter returns a router over c. A nil c disables translation.
func NewRouter(c Capability, pivot string) *Router {
	if pivot == "" {
		pivot = DefaultPivot
	}
	return &Router{cap: c, pivot: NormalizeLang(pivot)}
}

// Available reports whether a translation capability is present.
func (r *Router) Available() bool { return r != nil && r.cap != nil }

// Plan resolves the legs for src->tgt under route.
func (r *Router) Plan(ctx context.Context, src, tgt string, route Route) Plan {
	if !r.Available() {
		return Plan{Reason: "translation disabled"}
	}
	src, tgt = NormalizeLang(src), NormalizeLang(tgt)
	if src == tgt {
		return Plan{Reason: "same language"}
	}
	direct := [][2]string{{src, tgt}}
	pivot := [][2]string{{src, r.pivot}, {r.pivot, tgt}}

	switch route {
	case RouteDirect:
		if r.has(ctx, src, tgt) {
			return Plan{Legs: direct}
		}
	case RouteViaPivot:
		if r.has(ctx, src, r.pivot) && r.has(ctx, r.pivot, tgt) {
			return Plan{Legs: pivot}
		}
	default:
		if r.has(ctx, src, tgt) {
			return Plan{Legs: direct}
		}
		if src != r.pivot && tgt != r.pivot && r.has(ctx, src, r.pivot) && r.has(ctx, r.pivot, tgt) {
			return Plan{Legs: pivot}
		}
	}
	return Plan{Reason: fmt.Sprintf("no %s path for %s->%s", route, src, tgt)}
}

// Translate returns text translated from src to tgt along route, or text
// unchanged when nothing can translate it.
func (r *Router) Translate(ctx context.Context, text, src, tgt string, route Route) string {
	if strings.TrimSpace(text) == "" || !r.Available() {
		return text
	}
	plan := r.Plan(ctx, src, tgt, route)
	if len(plan.Legs) == 0 {
		return text
	}
	out := text
	for _, leg := range plan.Legs {
		next, err := r.cap.Translate(ctx, out, leg[0], leg[1])
		if err != nil {
			log.Warn().Err(err).Str("src", leg[0]).Str("tgt", leg[1]).Msg("translate: call failed, keeping source text")
			return text
		}
		out = next
	}
	return out
}

func (r *Router) has(ctx context.Context, src, tgt string) bool {
	ok, err := r.cap.Installed(ctx, src, tgt)
	if err != nil {
		log.Warn().Err(err).Str("src", src).Str("tgt", tgt).Msg("translate: pair lookup failed")
		return false
	}
	return ok
}

// Binding is a Router fixed to one language pair and route.
type Binding struct {
	router  *Router
	src     string
	tgt     string
	route   Route
	timeout time.Duration
}

// Bind fixes the pair and route. Each call is bounded by timeout when positive.
func (r *Router) Bind(src, tgt string, route Route, timeout time.Duration) *Binding {
	return &Binding{router: r, src: src, tgt: tgt, route: route, timeout: timeout}
}

// Translate translates text along the bound pair.
func (b *Binding) Translate(ctx context.Context, text string) string {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.router.Translate(ctx, text, b.src, b.tgt, b.route)
}

// Plan describes the path the binding will take.
func (b *Binding) Plan(ctx context.Context) Plan {
	return b.router.Plan(ctx, b.src, b.tgt, b.route)
}
