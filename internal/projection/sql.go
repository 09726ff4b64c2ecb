package projection

import (
	"fmt"
	"strings"
)

// QuoteIdent quotes a SQL identifier, doubling embedded quotes. Identifier
// position never receives caller-supplied strings directly; everything goes
// through here or a Columns value.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (c Columns) quotedList() string {
	quoted := make([]string, len(c.names))
	for i, name := range c.names {
		quoted[i] = QuoteIdent(name)
	}
	return strings.Join(quoted, ", ")
}

// SelectSQL renders a parameterized select over the projected columns.
// Conditions must already carry their placeholders; tail holds order/limit
// clauses.
func SelectSQL(table string, cols Columns, where []string, tail string) string {
	var b strings.Builder
	b.WriteString("select ")
	b.WriteString(cols.quotedList())
	b.WriteString(" from ")
	b.WriteString(QuoteIdent(table))
	if len(where) > 0 {
		b.WriteString(" where ")
		b.WriteString(strings.Join(where, " and "))
	}
	if tail != "" {
		b.WriteString(" ")
		b.WriteString(tail)
	}
	return b.String()
}

// InsertSQL renders a parameterized insert over the projected columns,
// returning the generated id.
func InsertSQL(table string, cols Columns) string {
	placeholders := make([]string, cols.Len())
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("insert into %s (%s) values (%s) returning %s",
		QuoteIdent(table), cols.quotedList(), strings.Join(placeholders, ", "), QuoteIdent("id"))
}

// UpdateSQL renders a parameterized update over the projected columns. The
// updated_at stamp rides in the same statement; its placeholder follows the
// column values and the id placeholder comes last.
func UpdateSQL(table string, cols Columns) string {
	assignments := make([]string, 0, cols.Len()+1)
	for i, name := range cols.names {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", QuoteIdent(name), i+1))
	}
	assignments = append(assignments, fmt.Sprintf("%s = $%d", QuoteIdent("updated_at"), cols.Len()+1))
	return fmt.Sprintf("update %s set %s where %s = $%d",
		QuoteIdent(table), strings.Join(assignments, ", "), QuoteIdent("id"), cols.Len()+2)
}
