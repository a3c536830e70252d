package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"retrieval-agent/internal/application/port/output"
	"retrieval-agent/internal/domain/entity"
	"retrieval-agent/internal/infrastructure/sqldb"
)

var (
	_ output.ToolPort      = (*SQLQueryTool)(nil)
	_ output.SideEffecting = (*SQLQueryTool)(nil)
	_ output.ToolPort      = (*SQLSchemaTool)(nil)
)

// Database is the subset of sqldb.DB the SQL tools need.
type Database interface {
	Driver() string
	AllowsWrites() bool
	Query(ctx context.Context, query string, args ...any) (*sqldb.Result, error)
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]sqldb.Column, error)
}

type SQLQueryTool struct {
	db     Database
	logger output.LoggerPort
}

func NewSQLQueryTool(db Database, logger output.LoggerPort) *SQLQueryTool {
	return &SQLQueryTool{db: db, logger: logger}
}

func (t *SQLQueryTool) Name() string { return entity.ToolSQLQuery.String() }

func (t *SQLQueryTool) Description() string {
	if t.db.AllowsWrites() {
		return fmt.Sprintf("Runs a SQL statement against the %s database and returns the rows as JSON", t.db.Driver())
	}
	return fmt.Sprintf("Runs a read-only SQL query (SELECT/WITH) against the %s database and returns the rows as JSON", t.db.Driver())
}

func (t *SQLQueryTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "A single SQL statement",
			},
		},
		"required": []string{"query"},
	}
}

// SideEffects reports true only when the database accepts writes.
func (t *SQLQueryTool) SideEffects() bool { return t.db.AllowsWrites() }

func (t *SQLQueryTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", err
	}

	res, err := t.db.Query(ctx, input.Query)
	if err != nil {
		return "", err
	}
	t.logger.Debug("SQL query executed", "rows", len(res.Rows), "truncated", res.Truncated)

	out, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	return string(out), nil
}

type SQLSchemaTool struct {
	db     Database
	logger output.LoggerPort
}

func NewSQLSchemaTool(db Database, logger output.LoggerPort) *SQLSchemaTool {
	return &SQLSchemaTool{db: db, logger: logger}
}

func (t *SQLSchemaTool) Name() string { return entity.ToolSQLSchema.String() }
func (t *SQLSchemaTool) Description() string {
	return "Lists database tables, or the columns of the given tables"
}
func (t *SQLSchemaTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tables": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Tables to describe. Omit to list all tables",
			},
		},
	}
}

func (t *SQLSchemaTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Tables []string `json:"tables"`
	}
	if err := json.Unmarshal([]byte(args), &input); err != nil {
		return "", err
	}

	if len(input.Tables) == 0 {
		tables, err := t.db.Tables(ctx)
		if err != nil {
			return "", err
		}
		if len(tables) == 0 {
			return "The database has no tables", nil
		}
		return "Tables: " + strings.Join(tables, ", "), nil
	}

	var sb strings.Builder
	for _, table := range input.Tables {
		cols, err := t.db.Columns(ctx, table)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "%s(\n", table)
		for _, c := range cols {
			fmt.Fprintf(&sb, "  %s %s", c.Name, c.Type)
			if c.PrimaryKey {
				sb.WriteString(" PRIMARY KEY")
			}
			if c.NotNull {
				sb.WriteString(" NOT NULL")
			}
			sb.WriteString("\n")
		}
		sb.WriteString(")\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}
