package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"plain", "SELECT 1", "SELECT 1"},
		{"empty", "", ""},
		{"bare fence", "```\nSELECT 1\n```", "SELECT 1"},
		{"other tag", "```sqlite\nDELETE FROM t WHERE id = 1;\n```", "DELETE FROM t WHERE id = 1;"},
		{"single line", "```SELECT name FROM users```", "SELECT name FROM users"},
		{"single line sql tag", "```sql SELECT 1```", "SELECT 1"},
		{"surrounding space", "  \n```sql\nSELECT 1\n```\n ", "SELECT 1"},
		{"multi line body", "```sql\nSELECT *\nFROM users\n```", "SELECT *\nFROM users"},
		{"only fences", "``````", ""},
		{"trailing only", "SELECT 1\n```", "SELECT 1"},
		{"whitespace", "   ", ""},
		{"upper case tag", "```SQL\nSELECT 1\n```", "SELECT 1"},
		{"keyword on fence line", "```DELETE\nFROM products WHERE id = 2\n```", "DELETE\nFROM products WHERE id = 2"},
		{"select on fence line", "```SELECT\n  name\nFROM users\n```", "SELECT\n  name\nFROM users"},
		{"lower case keyword", "```update\nusers SET is_active = 0\n```", "update\nusers SET is_active = 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.in))
		})
	}
}
