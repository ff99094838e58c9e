package crm

import (
	"database/sql"
	"strings"
	"time"

	"github.com/sersweai/leadcrm/internal/infra/database"
)

func nowStamp() string {
	return database.FormatTime(database.Now())
}

// nullString maps "" to NULL.
func nullString(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func parseStamp(value string) time.Time {
	return database.ParseTime(value)
}

func startOfUTCDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type scanner interface {
	Scan(dest ...any) error
}
