// Package classify derives the intent of a SQL statement from a shallow
// lexical scan of its text. It is deliberately not a SQL parser: the result
// is not guaranteed correct for statements hidden behind comments or deeply
// nested constructs, which is a documented limitation of the client.
package classify

import "strings"

// Intent tags what a statement is expected to do at the gateway.
type Intent int

const (
	IntentOther Intent = iota
	IntentSelect
	IntentInsert
	IntentCreateStreamingTable
	IntentCreateBatchTable
	IntentUpdate
	IntentDelete
	IntentMerge
)

var intentNames = []string{"other", "select", "insert", "create_streaming_table", "create_batch_table", "update", "delete", "merge"}

func (i Intent) String() string {
	if i < 0 || int(i) >= len(intentNames) {
		return "other"
	}
	return intentNames[i]
}

// IsRead reports whether the statement produces a result set that should be
// fetched and materialized locally.
func (i Intent) IsRead() bool {
	return i == IntentSelect
}

// IsStreamingWrite reports whether the statement starts a continuously
// running job that must not be auto-stopped.
func (i Intent) IsStreamingWrite() bool {
	return i == IntentInsert
}

// Connector keywords that mark a CREATE TABLE as backed by an unbounded
// change-data-capture or queue source.
var streamingConnectors = []string{"MYSQL-CDC", "POSTGRES-CDC", "KAFKA", "UPSERT-KAFKA"}

// Statement classifies raw statement text by case-insensitive prefix match.
// It is total and deterministic; unknown shapes map to IntentOther.
func Statement(text string) Intent {
	cleaned := strings.ToUpper(strings.TrimSpace(text))

	switch {
	case strings.HasPrefix(cleaned, "SELECT"), strings.HasPrefix(cleaned, "WITH"):
		return IntentSelect
	case strings.HasPrefix(cleaned, "INSERT"):
		return IntentInsert
	case strings.HasPrefix(cleaned, "CREATE TABLE"):
		if isStreamingCreate(cleaned) {
			return IntentCreateStreamingTable
		}
		return IntentCreateBatchTable
	case strings.HasPrefix(cleaned, "UPDATE"):
		return IntentUpdate
	case strings.HasPrefix(cleaned, "DELETE"):
		return IntentDelete
	case strings.HasPrefix(cleaned, "MERGE"):
		return IntentMerge
	default:
		return IntentOther
	}
}

func isStreamingCreate(cleaned string) bool {
	if !strings.Contains(cleaned, "CONNECTOR") {
		return false
	}
	for _, connector := range streamingConnectors {
		if strings.Contains(cleaned, connector) {
			return true
		}
	}
	return false
}
