package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Client is a LibreTranslate capability. Installed pairs come from
// GET /languages and are cached for languagesTTL.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration

	mu        sync.Mutex
	targets   map[string]map[string]bool
	codes     map[string]string // normalized -> server code
	fetchedAt time.Time
}

const languagesTTL = 5 * time.Minute

var _ Capability = (*Client)(nil)

func New(base string, timeoutSec int) *Client {
	if timeoutSec <= 0 {
		timeoutSec = 8
	}
	return &Client{
		base:    strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		timeout: time.Duration(timeoutSec) * time.Second,
	}
}

// Languages returns the source languages the server knows.
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	targets, err := c.languages(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(targets))
	for code := range targets {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// Installed reports whether the server lists tgt as a target of src.
func (c *Client) Installed(ctx context.Context, src, tgt string) (bool, error) {
	targets, err := c.languages(ctx)
	if err != nil {
		return false, err
	}
	return targets[src][tgt], nil
}

func (c *Client) languages(ctx context.Context) (map[string]map[string]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.targets != nil && time.Since(c.fetchedAt) < languagesTTL {
		return c.targets, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/languages", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("languages http %d", resp.StatusCode)
	}

	// LibreTranslate response: [{code, name, targets}]
	var langs []struct {
		Code    string   `json:"code"`
		Name    string   `json:"name"`
		Targets []string `json:"targets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&langs); err != nil {
		return nil, err
	}
	targets := make(map[string]map[string]bool, len(langs))
	codes := make(map[string]string, len(langs))
	for _, l := range langs {
		src := NormalizeLang(l.Code)
		if _, ok := codes[src]; !ok {
			codes[src] = l.Code
		}
		m := targets[src]
		if m == nil {
			m = make(map[string]bool, len(l.Targets))
			targets[src] = m
		}
		for _, t := range l.Targets {
			if t = NormalizeLang(t); t != src {
				m[t] = true
			}
		}
	}
	c.targets = targets
	c.codes = codes
	c.fetchedAt = time.Now()
	log.Debug().Int("languages", len(targets)).Msg("translate: libretranslate languages refreshed")
	return targets, nil
}

// Translate requests a translation of text from source to target using the
// LibreTranslate payload (q, source, target, format).
func (c *Client) Translate(ctx context.Context, text, source, target string) (string, error) {
	if c == nil || c.base == "" {
		return "", ErrPairNotInstalled
	}
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	payload := map[string]any{
		"q":      text,
		"source": c.serverCode(source),
		"target": c.serverCode(target),
		"format": "text",
	}
	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation http %d for %s->%s", resp.StatusCode, source, target)
	}

	var lr struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}
	return strings.TrimSpace(lr.TranslatedText), nil
}

// serverCode maps a normalized code back to the spelling the server listed.
func (c *Client) serverCode(code string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sc, ok := c.codes[code]; ok {
		return sc
	}
	return code
}
