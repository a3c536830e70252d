package sqldb

import (
	"regexp"
	"strings"
)

var (
	lineComment   = regexp.MustCompile(`--[^\n]*`)
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	stringLiteral = regexp.MustCompile(`'(?:[^']|'')*'`)
	quotedIdent   = regexp.MustCompile(`"(?:[^"]|"")*"`)
	writeKeyword  = regexp.MustCompile(`(?i)\b(insert|update|delete|merge|upsert|create|alter|drop|truncate|grant|revoke|attach|detach|vacuum|reindex|copy)\b`)
)

var readOnlyPrefixes = []string{"select", "with", "explain", "values", "show", "table"}

// IsReadOnly reports whether query is a single statement that reads data.
// Literals and comments are stripped before keywords are checked, so the
// check errs on the side of refusing.
func IsReadOnly(query string) bool {
	q := blockComment.ReplaceAllString(query, " ")
	q = lineComment.ReplaceAllString(q, " ")
	q = stringLiteral.ReplaceAllString(q, "''")
	q = quotedIdent.ReplaceAllString(q, `""`)
	q = strings.TrimSpace(q)
	q = strings.TrimSuffix(q, ";")

	if strings.Contains(q, ";") {
		return false
	}

	fields := strings.Fields(strings.ToLower(q))
	if len(fields) == 0 {
		return false
	}
	readOnly := false
	for _, p := range readOnlyPrefixes {
		if fields[0] == p {
			readOnly = true
			break
		}
	}
	if !readOnly {
		return false
	}

	return !writeKeyword.MatchString(q)
}
