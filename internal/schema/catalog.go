// Package schema exposes the warehouse table layout to the rest of the
// service. The catalog is loaded once at startup and stays immutable for
// the lifetime of the process.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/shoptalk/shoptalk/internal/query"
)

// Table describes a single warehouse table with its columns in
// declaration order.
type Table struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Catalog holds the table layout of the analytics warehouse.
type Catalog struct {
	tables []Table
	prompt string
}

// Load inspects the warehouse and builds the catalog. The caller is
// expected to treat a load failure as fatal: a service without schema
// knowledge cannot translate questions into SQL.
func Load(ctx context.Context, inspector query.Inspector) (*Catalog, error) {
	tableNames, err := inspector.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	if len(tableNames) == 0 {
		return nil, fmt.Errorf("warehouse has no tables")
	}

	tables := make([]Table, 0, len(tableNames))
	for _, name := range tableNames {
		columns, err := inspector.ListColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("list columns for %s: %w", name, err)
		}
		tables = append(tables, Table{Name: name, Columns: columns})
	}

	return &Catalog{tables: tables, prompt: renderPrompt(tables)}, nil
}

// Tables returns the cataloged tables in warehouse order.
func (c *Catalog) Tables() []Table {
	out := make([]Table, len(c.tables))
	copy(out, c.tables)
	return out
}

// PromptText renders the catalog as plain text for inclusion in a
// translation prompt.
func (c *Catalog) PromptText() string {
	return c.prompt
}

func renderPrompt(tables []Table) string {
	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table: %s\n", table.Name)
		fmt.Fprintf(&b, "Columns: %s\n", strings.Join(table.Columns, ", "))
	}
	return b.String()
}
