package workflow

import "strings"

const fence = "```"

// StripFences removes a leading ``` (optionally tagged, e.g. ```sql) and a
// trailing ``` from a generated statement.
func StripFences(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return ""
	}

	if strings.HasPrefix(stmt, fence) {
		stmt = stmt[len(fence):]
		// A tag occupies the whole opening line and must name a SQL dialect,
		// so a statement that starts right after the fence keeps its first
		// keyword. On a single-line fence only the sql tag is recognised.
		if i := strings.IndexByte(stmt, '\n'); i >= 0 && isFenceTag(strings.TrimSpace(stmt[:i])) {
			stmt = stmt[i+1:]
		} else if hasSQLTag(stmt) {
			stmt = stmt[len("sql"):]
		}
		stmt = strings.TrimSpace(stmt)
	}

	if strings.HasSuffix(stmt, fence) {
		stmt = strings.TrimSpace(stmt[:len(stmt)-len(fence)])
	}

	return stmt
}

func hasSQLTag(s string) bool {
	if len(s) < 3 || !strings.EqualFold(s[:3], "sql") {
		return false
	}
	return len(s) == 3 || s[3] == ' ' || s[3] == '\t' || s[3] == '\r'
}

var fenceTags = map[string]bool{
	"":           true,
	"sql":        true,
	"sqlite":     true,
	"sqlite3":    true,
	"postgresql": true,
	"postgres":   true,
	"psql":       true,
	"mysql":      true,
	"tsql":       true,
	"plsql":      true,
}

func isFenceTag(s string) bool {
	return fenceTags[strings.ToLower(s)]
}
