package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/famledger/famledger/internal/shared"
)

var (
	// ErrEmptyQuery is returned by ExecuteQuery for blank statements.
	ErrEmptyQuery = fmt.Errorf("vault: empty query: %w", shared.ErrInvalidInput)
	// ErrMultipleStatements is returned by ExecuteQuery when the input holds
	// more than one statement. The driver would only run the last one.
	ErrMultipleStatements = fmt.Errorf("vault: query must be a single statement: %w", shared.ErrInvalidInput)
)

// ExecuteQuery runs a raw statement in its own write transaction. Rows are
// returned as a JSON array of objects; statements without result columns
// report {"rows_affected":n}. It bypasses ledger validation and never
// writes version log records.
func (g *Gateway) ExecuteQuery(ctx context.Context, query string) (string, error) {
	switch n := statementCount(query); {
	case n == 0:
		return "", ErrEmptyQuery
	case n > 1:
		return "", ErrMultipleStatements
	}
	var out []byte
	err := g.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return shared.StorageError("vault: execute query", err)
		}
		result, err := collectRows(rows)
		if err != nil {
			return err
		}
		if result == nil {
			var affected int64
			if err := tx.QueryRowContext(ctx, `SELECT changes()`).Scan(&affected); err != nil {
				return shared.StorageError("vault: rows affected", err)
			}
			out, err = json.Marshal(map[string]int64{"rows_affected": affected})
			return err
		}
		out, err = json.Marshal(result)
		return err
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// collectRows drains rows into generic maps. It returns nil when the
// statement has no result columns.
func collectRows(rows *sql.Rows) ([]map[string]any, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, shared.StorageError("vault: columns", err)
	}
	if len(cols) == 0 {
		for rows.Next() {
		}
		return nil, rows.Err()
	}
	result := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, shared.StorageError("vault: scan", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok && utf8.Valid(b) {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageError("vault: rows", err)
	}
	return result, nil
}

// statementCount counts the semicolon separated statements of query that
// contain anything besides whitespace and comments. Semicolons inside
// literals, quoted identifiers and comments do not separate statements.
func statementCount(query string) int {
	count := 0
	pending := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(query, i, c)
			pending = true
		case c == '[':
			i = skipQuoted(query, i, ']')
			pending = true
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			if nl := strings.IndexByte(query[i:], '\n'); nl >= 0 {
				i += nl
			} else {
				i = len(query)
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			if end := strings.Index(query[i+2:], "*/"); end >= 0 {
				i += end + 3
			} else {
				i = len(query)
			}
		case c == ';':
			if pending {
				count++
				pending = false
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f':
		default:
			pending = true
		}
	}
	if pending {
		count++
	}
	return count
}

// skipQuoted returns the index of the byte closing the quoted run that
// starts at i. A doubled closing quote is an escape.
func skipQuoted(query string, i int, closer byte) int {
	for j := i + 1; j < len(query); j++ {
		if query[j] != closer {
			continue
		}
		if closer != ']' && j+1 < len(query) && query[j+1] == closer {
			j++
			continue
		}
		return j
	}
	return len(query)
}
