package postgres

import "testing"

func TestSanitizeQuery(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"SELECT * FROM accounts WHERE id = $1", "SELECT * FROM accounts WHERE id = $1"},
		{"SELECT * FROM t WHERE name = 'O''Brien' AND n = 42", "SELECT * FROM t WHERE name = '?' AND n = ?"},
		{"  UPDATE   credentials\n\tSET active = FALSE  ", "UPDATE credentials SET active = FALSE"},
		{"SELECT balance FROM accounts WHERE balance > 10.50", "SELECT balance FROM accounts WHERE balance > ?"},
		{"SELECT col1 FROM t2", "SELECT col1 FROM t2"},
	}
	for _, tt := range tests {
		if got := sanitizeQuery(tt.in); got != tt.want {
			t.Errorf("sanitizeQuery(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractSQLVerb(t *testing.T) {
	for in, want := range map[string]string{
		"select 1":                 "SELECT",
		"\n  INSERT INTO t VALUES": "INSERT",
		"":                         "",
	} {
		if got := extractSQLVerb(in); got != want {
			t.Errorf("extractSQLVerb(%q) = %q, want %q", in, got, want)
		}
	}
}
