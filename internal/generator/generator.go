// Package generator adapts text-generation backends to the single
// prompt-in, text-out call the workflow engine makes.
package generator

import (
	"context"
	"fmt"
)

// Source is a backend. Backends may answer with plain text or with a richer
// reply that carries the text in a content field.
type Source interface {
	Complete(ctx context.Context, prompt string) (any, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, prompt string) (any, error)

func (f SourceFunc) Complete(ctx context.Context, prompt string) (any, error) {
	return f(ctx, prompt)
}

// Message is a chat reply.
type Message struct {
	Role    string
	Content string
}

func (m Message) GetContent() string {
	return m.Content
}

type contentHolder interface {
	GetContent() string
}

// Generator is a Source whose replies have been flattened to text.
type Generator struct {
	source Source
}

// Normalize wraps src so every reply comes back as a string.
func Normalize(src Source) *Generator {
	return &Generator{source: src}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	reply, err := g.source.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return Text(reply), nil
}

// Text flattens a backend reply to its text form.
func Text(reply any) string {
	switch v := reply.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case *Message:
		if v == nil {
			return ""
		}
		return v.Content
	case contentHolder:
		return v.GetContent()
	case map[string]any:
		if content, ok := v["content"]; ok {
			return Text(content)
		}
		return fmt.Sprint(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
