package cassandra

import (
	"errors"
	"strings"
	"testing"

	"github.com/gocql/gocql"
)

func TestParseConsistency(t *testing.T) {
	tests := []struct {
		in   string
		want gocql.Consistency
	}{
		{"ONE", gocql.One},
		{"one", gocql.One},
		{"QUORUM", gocql.Quorum},
		{"local_quorum", gocql.LocalQuorum},
		{"LOCAL_ONE", gocql.LocalOne},
		{"ALL", gocql.All},
		{"", gocql.Quorum},
		{"bogus", gocql.Quorum},
	}

	for _, tt := range tests {
		if got := parseConsistency(tt.in); got != tt.want {
			t.Errorf("parseConsistency(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRetryPolicy_GetRetryType(t *testing.T) {
	policy := RetryPolicy(3)

	tests := []struct {
		name string
		err  error
		want gocql.RetryType
	}{
		{"no response", gocql.ErrTimeoutNoResponse, gocql.Retry},
		{"timeout text", errors.New("read Timeout"), gocql.Retry},
		{"connection", errors.New("connection reset by peer"), gocql.Retry},
		{"unavailable", errors.New("Cannot achieve consistency: Unavailable"), gocql.Retry},
		{"syntax", errors.New("line 1: no viable alternative"), gocql.Rethrow},
		{"nil", nil, gocql.Rethrow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.GetRetryType(tt.err); got != tt.want {
				t.Errorf("GetRetryType(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements("ms_test")
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}

	if !strings.Contains(stmts[0], "CREATE KEYSPACE IF NOT EXISTS ms_test") {
		t.Errorf("keyspace statement = %q", stmts[0])
	}
	if !strings.Contains(stmts[1], "ms_test.games") || !strings.Contains(stmts[1], "game_id text PRIMARY KEY") {
		t.Errorf("games statement = %q", stmts[1])
	}
	if !strings.Contains(stmts[2], "PRIMARY KEY (game_id, move_number)") ||
		!strings.Contains(stmts[2], "CLUSTERING ORDER BY (move_number ASC)") {
		t.Errorf("moves statement = %q", stmts[2])
	}
}
