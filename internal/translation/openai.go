package translation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI translates through a chat completion model. Only the directed pairs
// it was configured with count as installed.
type OpenAI struct {
	client *openai.Client
	model  string
	pairs  map[string]map[string]bool
}

var _ Capability = (*OpenAI)(nil)

// NewOpenAI builds the capability. baseURL may be empty for the public API.
func NewOpenAI(apiKey, baseURL, model string, pairs [][2]string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if len(pairs) == 0 {
		return nil, errors.New("openai: at least one language pair is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	o := &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		pairs:  make(map[string]map[string]bool),
	}
	for _, p := range pairs {
		src, tgt := NormalizeLang(p[0]), NormalizeLang(p[1])
		if o.pairs[src] == nil {
			o.pairs[src] = make(map[string]bool)
		}
		o.pairs[src][tgt] = true
	}
	return o, nil
}

// ParsePairs parses "ja:en,en:zh" into directed pairs.
func ParsePairs(s string) ([][2]string, error) {
	var out [][2]string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		src, tgt, ok := strings.Cut(item, ":")
		src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
		if !ok || src == "" || tgt == "" {
			return nil, fmt.Errorf("invalid language pair %q (want src:tgt)", item)
		}
		out = append(out, [2]string{src, tgt})
	}
	return out, nil
}

func (o *OpenAI) Languages(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	for src, tgts := range o.pairs {
		seen[src] = true
		for tgt := range tgts {
			seen[tgt] = true
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (o *OpenAI) Installed(ctx context.Context, src, tgt string) (bool, error) {
	return o.pairs[src][tgt], nil
}

func (o *OpenAI) Translate(ctx context.Context, text, src, tgt string) (string, error) {
	if !o.pairs[src][tgt] {
		return "", fmt.Errorf("%w: %s->%s", ErrPairNotInstalled, src, tgt)
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("You translate live subtitles from language %q to language %q. "+
					"Reply with the translation only, without quotes or notes.", src, tgt),
			},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
