package repo

import (
	"fmt"
	"strings"
)

// Update accumulates SET assignments for a single-row UPDATE.
type Update struct {
	table string
	sets  []string
	args  []any
}

func NewUpdate(table string) *Update {
	return &Update{table: table}
}

func (u *Update) Set(column string, value any) *Update {
	u.args = append(u.args, value)
	u.sets = append(u.sets, fmt.Sprintf("%s = $%d", column, len(u.args)))
	return u
}

// SetIfPresent adds the assignment only when value is a non-nil pointer.
func SetIfPresent[T any](u *Update, column string, value *T) *Update {
	if value == nil {
		return u
	}
	return u.Set(column, *value)
}

func (u *Update) SetRaw(assignment string) *Update {
	u.sets = append(u.sets, assignment)
	return u
}

// Where returns the statement and its arguments, matching on column = value.
func (u *Update) Where(column string, value any) (string, []any) {
	args := append(append([]any(nil), u.args...), value)
	return fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d",
		u.table, strings.Join(u.sets, ", "), column, len(args),
	), args
}
