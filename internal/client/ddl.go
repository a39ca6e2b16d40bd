package client

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/sqlq/internal/queryir"
)

// Column is one column definition for CreateTable.
type Column struct {
	Name string
	Type string // e.g. "INTEGER", "TEXT NOT NULL", "VARCHAR(20)"
}

// columnTypePattern admits SQLite type names with optional size and
// simple constraints. Quotes and statement separators are rejected.
var columnTypePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ ,()]*$`)

// CreateTable creates table name and commits.
//
//	CREATE TABLE name(col type, ..., PRIMARY KEY (a,b))
//
// The PRIMARY KEY clause is omitted when primaryKey is empty.
func (c *Client) CreateTable(ctx context.Context, name string, columns []Column, primaryKey []string) error {
	stmt, err := CreateTableStatement(name, columns, primaryKey)
	if err != nil {
		return err
	}
	if err := c.Execute(ctx, stmt); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// CreateIndex creates "<table>_index" over columns and commits.
//
//	CREATE INDEX table_index ON table(a,b)
func (c *Client) CreateIndex(ctx context.Context, table string, columns []string) error {
	stmt, err := CreateIndexStatement(table, columns)
	if err != nil {
		return err
	}
	if err := c.Execute(ctx, stmt); err != nil {
		return err
	}
	return c.Commit(ctx)
}

// CreateTableStatement builds the CREATE TABLE statement used by CreateTable.
func CreateTableStatement(name string, columns []Column, primaryKey []string) (string, error) {
	if err := queryir.CheckName(name); err != nil {
		return "", fmt.Errorf("create table: %w", err)
	}
	if len(columns) == 0 {
		return "", errors.New("create table: no columns")
	}

	defs := make([]string, 0, len(columns)+1)
	for _, col := range columns {
		if err := queryir.CheckName(col.Name); err != nil {
			return "", fmt.Errorf("create table %s: %w", name, err)
		}
		if !columnTypePattern.MatchString(col.Type) {
			return "", fmt.Errorf("create table %s: invalid type %q for column %s", name, col.Type, col.Name)
		}
		defs = append(defs, col.Name+" "+col.Type)
	}

	if len(primaryKey) > 0 {
		for _, k := range primaryKey {
			if err := queryir.CheckName(k); err != nil {
				return "", fmt.Errorf("create table %s: primary key: %w", name, err)
			}
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(primaryKey, ",")+")")
	}

	return "CREATE TABLE " + name + "(" + strings.Join(defs, ", ") + ")", nil
}

// CreateIndexStatement builds the CREATE INDEX statement used by CreateIndex.
func CreateIndexStatement(table string, columns []string) (string, error) {
	if err := queryir.CheckName(table); err != nil {
		return "", fmt.Errorf("create index: %w", err)
	}
	if len(columns) == 0 {
		return "", errors.New("create index: no columns")
	}
	for _, col := range columns {
		if err := queryir.CheckName(col); err != nil {
			return "", fmt.Errorf("create index on %s: %w", table, err)
		}
	}

	return fmt.Sprintf("CREATE INDEX %s_index ON %s(%s)", table, table, strings.Join(columns, ",")), nil
}
