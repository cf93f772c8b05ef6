package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer struct{}

func (stringer) String() string { return "from stringer" }

func TestText(t *testing.T) {
	tests := []struct {
		name  string
		reply any
		want  string
	}{
		{"nil", nil, ""},
		{"string", "read", "read"},
		{"bytes", []byte("SELECT 1"), "SELECT 1"},
		{"message value", Message{Role: "assistant", Content: "create"}, "create"},
		{"message pointer", &Message{Content: "update"}, "update"},
		{"nil message pointer", (*Message)(nil), ""},
		{"map with content", map[string]any{"content": "delete"}, "delete"},
		{"stringer", stringer{}, "from stringer"},
		{"number", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.reply))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Run("flattens rich replies", func(t *testing.T) {
		g := Normalize(SourceFunc(func(ctx context.Context, prompt string) (any, error) {
			return Message{Role: "assistant", Content: "echo: " + prompt}, nil
		}))

		out, err := g.Generate(context.Background(), "hi")
		require.NoError(t, err)
		assert.Equal(t, "echo: hi", out)
	})

	t.Run("passes errors through", func(t *testing.T) {
		boom := errors.New("boom")
		g := Normalize(SourceFunc(func(ctx context.Context, prompt string) (any, error) {
			return nil, boom
		}))

		_, err := g.Generate(context.Background(), "hi")
		require.ErrorIs(t, err, boom)
	})
}
