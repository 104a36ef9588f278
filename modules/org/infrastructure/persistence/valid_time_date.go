package persistence

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// pgDate keeps only the UTC calendar day of t. A nil or zero t is NULL.
func pgDate(t *time.Time) pgtype.Date {
	if t == nil || t.IsZero() {
		return pgtype.Date{}
	}
	y, m, d := t.UTC().Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}
