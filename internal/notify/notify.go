// Package notify delivers structured alert messages to per-audience
// destinations. Destinations are injected at startup; delivery failures are
// logged and never propagated to the caller.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Audience selects which destination a message is routed to.
type Audience string

const (
	AudienceDeveloper Audience = "developer"
	AudienceClient    Audience = "client"
	AudienceManager   Audience = "manager"
)

// Audiences lists every known audience in dispatch order.
var Audiences = []Audience{AudienceDeveloper, AudienceClient, AudienceManager}

// Text is one formatted text element inside a block.
type Text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Block is one section of a structured message, Block Kit style.
type Block struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	Fields   []Text `json:"fields,omitempty"`
	Elements []Text `json:"elements,omitempty"`
}

// Message is a structured notification.
type Message struct {
	Blocks []Block `json:"blocks"`
}

func Header(text string) Block {
	return Block{Type: "header", Text: &Text{Type: "plain_text", Text: text}}
}

func Section(text string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: text}}
}

func FieldsSection(fields []Text) Block {
	return Block{Type: "section", Fields: fields}
}

func Field(text string) Text {
	return Text{Type: "mrkdwn", Text: text}
}

func Context(text string) Block {
	return Block{Type: "context", Elements: []Text{{Type: "mrkdwn", Text: text}}}
}

// PlainText flattens a message for destinations without block rendering.
func (m Message) PlainText() string {
	var b strings.Builder
	for _, blk := range m.Blocks {
		if blk.Text != nil {
			b.WriteString(blk.Text.Text)
			b.WriteString("\n")
		}
		for _, f := range blk.Fields {
			b.WriteString(f.Text)
			b.WriteString("\n")
		}
		for _, e := range blk.Elements {
			b.WriteString(e.Text)
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Sender delivers one message to one destination.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Router maps audiences to destinations. It is built once at process start
// and passed in wherever alerts are dispatched.
type Router struct {
	senders map[Audience]Sender
}

func NewRouter() *Router {
	return &Router{senders: make(map[Audience]Sender)}
}

func (r *Router) Register(audience Audience, s Sender) {
	r.senders[audience] = s
}

// Send routes msg to the audience's destination. A missing destination or a
// delivery failure is logged and reported as an error, but callers are
// expected to treat it as non-fatal.
func (r *Router) Send(ctx context.Context, msg Message, audience Audience) error {
	s, ok := r.senders[audience]
	if !ok {
		log.Printf("No notification destination configured for audience %s", audience)
		return fmt.Errorf("no destination for audience %s", audience)
	}

	if err := s.Send(ctx, msg); err != nil {
		log.Printf("Failed to deliver %s alert: %v", audience, err)
		return err
	}

	return nil
}
