package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/obiente/translate/livesub/internal/event"
)

// Message is one queued publish.
type Message struct {
	Kind    string         `json:"type"`
	Caption *event.Caption `json:"caption,omitempty"`
	Text    string         `json:"text,omitempty"`
}

// Publisher is an event.Sink that forwards captions, status and errors to
// MQTT. Sink calls never block: when the buffer is full the message is
// dropped. Levels are not published.
type Publisher struct {
	client paho.Client
	topic  string
	qos    byte
	out    chan Message
}

// NewPublisher publishes under topic: captions on topic itself, status and
// errors on topic/status and topic/error.
func NewPublisher(client paho.Client, topic string, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Publisher{client: client, topic: topic, qos: 1, out: make(chan Message, buffer)}
}

func (p *Publisher) Level(float64) {}

func (p *Publisher) Caption(c event.Caption) { p.enqueue(Message{Kind: "caption", Caption: &c}) }

func (p *Publisher) Status(s string) { p.enqueue(Message{Kind: "status", Text: s}) }

func (p *Publisher) Error(s string) { p.enqueue(Message{Kind: "error", Text: s}) }

func (p *Publisher) enqueue(m Message) {
	select {
	case p.out <- m:
	default:
		log.Warn().Str("type", m.Kind).Msg("mqtt: publish buffer full, dropping message")
	}
}

// Start publishes queued messages until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) {
	log.Debug().Str("topic", p.topic).Msg("mqtt: publisher starting")
	for {
		select {
		case <-ctx.Done():
			p.drain()
			return
		case m := <-p.out:
			if err := p.publish(m); err != nil {
				log.Warn().Err(err).Msg("mqtt: publish failed")
			}
		}
	}
}

// drain flushes whatever is already buffered, typically the final "stopped"
// status.
func (p *Publisher) drain() {
	for {
		select {
		case m := <-p.out:
			if err := p.publish(m); err != nil {
				log.Warn().Err(err).Msg("mqtt: publish failed")
			}
		default:
			return
		}
	}
}

func (p *Publisher) publish(m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", m.Kind, err)
	}
	topic := p.topicFor(m.Kind)
	tok := p.client.Publish(topic, p.qos, false, payload)
	if !tok.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) topicFor(kind string) string {
	if kind == "caption" {
		return p.topic
	}
	return p.topic + "/" + kind
}
