package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/pkg/uuid"
)

// ErrInvalidPatch is returned when a patch names an unknown field or carries a bad value.
var ErrInvalidPatch = errors.New("invalid lead patch")

type Lead struct {
	ID             string     `json:"id"`
	CompanyName    string     `json:"company_name"`
	Category       *string    `json:"category"`
	City           *string    `json:"city"`
	Zip            string     `json:"zip"`
	Website        *string    `json:"website"`
	Email          *string    `json:"email"`
	ContactFormURL *string    `json:"contact_form_url"`
	Summary        *string    `json:"summary"`
	Notes          *string    `json:"notes"`
	FirstName      *string    `json:"first_name"`
	SourceURL      *string    `json:"source_url"`
	Status         LeadStatus `json:"status"`
	LastContacted  *string    `json:"last_contacted"`
	NextFollowUp   *string    `json:"next_follow_up"`
	ReplyType      *string    `json:"reply_type"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// LeadWithEngagement is a list row: the lead plus its tracking counters.
type LeadWithEngagement struct {
	Lead
	Opens   int  `json:"opens"`
	Clicked bool `json:"clicked"`
}

// HasEmail reports whether the lead can receive outreach.
func (l *Lead) HasEmail() bool {
	return l.Email != nil && strings.TrimSpace(*l.Email) != ""
}

// UpsertLeadInput is one normalized import row. Empty strings are stored as NULL.
// Status is only written over an existing row when StatusExplicit is set.
type UpsertLeadInput struct {
	CompanyName    string
	Category       string
	City           string
	Zip            string
	Website        string
	Email          string
	ContactFormURL string
	Summary        string
	Notes          string
	FirstName      string
	SourceURL      string
	Status         LeadStatus
	StatusExplicit bool
	LastContacted  string
	NextFollowUp   string
	ReplyType      string
}

type ListLeadsInput struct {
	Status          string
	Search          string
	ContactFormOnly bool
}

type LeadService struct {
	db *database.DB
}

func NewLeadService(db *database.DB) *LeadService {
	return &LeadService{db: db}
}

const leadColumns = `id, company_name, category, city, zip, website, email, contact_form_url, summary, notes,
	first_name, source_url, status, last_contacted, next_follow_up, reply_type, created_at, updated_at`

func (s *LeadService) Get(ctx context.Context, leadID string) (*Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, leadID)
	lead, err := scanLead(row)
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// List returns up to 500 leads, newest first, with open counts and a clicked flag.
func (s *LeadService) List(ctx context.Context, input ListLeadsInput) ([]*LeadWithEngagement, error) {
	var (
		where []string
		args  []any
	)
	if input.Status != "" {
		where = append(where, "l.status = ?")
		args = append(args, input.Status)
	}
	if term := strings.TrimSpace(input.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		where = append(where, `(LOWER(l.company_name) LIKE ? ESCAPE '\' OR LOWER(COALESCE(l.city, '')) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if input.ContactFormOnly {
		where = append(where, "l.email IS NULL AND l.contact_form_url IS NOT NULL")
	}

	query := `SELECT ` + prefixColumns("l", leadColumns) + `,
		COALESCE(ev.opens, 0), COALESCE(ev.clicks, 0)
		FROM leads l
		LEFT JOIN (
			SELECT lead_id,
				SUM(CASE WHEN event_type = 'open' THEN 1 ELSE 0 END) AS opens,
				SUM(CASE WHEN event_type = 'click' THEN 1 ELSE 0 END) AS clicks
			FROM email_events
			WHERE lead_id IS NOT NULL
			GROUP BY lead_id
		) ev ON ev.lead_id = l.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY l.created_at DESC, l.id DESC LIMIT %d", listLeadsLimit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	out := make([]*LeadWithEngagement, 0)
	for rows.Next() {
		var (
			item   LeadWithEngagement
			opens  int64
			clicks int64
		)
		lead, err := scanLead(rows, &opens, &clicks)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		item.Lead = *lead
		item.Opens = int(opens)
		item.Clicked = clicks > 0
		out = append(out, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list leads: %w", err)
	}
	return out, nil
}

// patchableLeadColumns maps each editable column to whether it may be set to NULL.
var patchableLeadColumns = map[string]bool{
	"company_name":     false,
	"category":         true,
	"city":             true,
	"zip":              false,
	"website":          true,
	"email":            true,
	"contact_form_url": true,
	"summary":          true,
	"notes":            true,
	"first_name":       true,
	"source_url":       true,
	"status":           false,
	"last_contacted":   true,
	"next_follow_up":   true,
	"reply_type":       true,
}

// Patch applies a partial update. Values must be strings or nil. A missing lead yields
// sql.ErrNoRows; a bad field or value wraps ErrInvalidPatch.
func (s *LeadService) Patch(ctx context.Context, leadID string, fields map[string]any) (*Lead, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidPatch)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+1)
	args := make([]any, 0, len(keys)+2)
	for _, key := range keys {
		nullable, ok := patchableLeadColumns[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidPatch, key)
		}
		value, err := patchValue(key, fields[key], nullable)
		if err != nil {
			return nil, err
		}
		sets = append(sets, key+" = ?")
		args = append(args, value)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, nowStamp(), leadID)

	res, err := s.db.ExecContext(ctx, `UPDATE leads SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("patch lead: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}
	return s.Get(ctx, leadID)
}

func patchValue(key string, raw any, nullable bool) (any, error) {
	if raw == nil {
		if !nullable {
			return nil, fmt.Errorf("%w: %s cannot be null", ErrInvalidPatch, key)
		}
		return nil, nil
	}
	str, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidPatch, key)
	}
	switch key {
	case "company_name":
		if strings.TrimSpace(str) == "" {
			return nil, fmt.Errorf("%w: company_name cannot be empty", ErrInvalidPatch)
		}
	case "status":
		if !LeadStatus(str).Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidPatch, str)
		}
	case "zip":
		return strings.TrimSpace(str), nil
	}
	return str, nil
}

// SetStatus moves a lead to status. A missing lead yields sql.ErrNoRows.
func (s *LeadService) SetStatus(ctx context.Context, leadID string, status LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), nowStamp(), leadID,
	)
	if err != nil {
		return fmt.Errorf("set lead status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RecordSend stores the outcome of an outreach send. A nil nextFollowUp clears the date.
func (s *LeadService) RecordSend(ctx context.Context, leadID string, status LeadStatus, lastContacted string, nextFollowUp *string) error {
	var next any
	if nextFollowUp != nil {
		next = *nextFollowUp
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET status = ?, last_contacted = ?, next_follow_up = ?, updated_at = ? WHERE id = ?`,
		string(status), lastContacted, next, nowStamp(), leadID,
	)
	if err != nil {
		return fmt.Errorf("record lead send: %w", err)
	}
	return nil
}

// UpsertBatch inserts rows keyed on (company_name, zip) in one transaction and returns the
// number of rows written. Existing rows keep their status and follow-up fields unless the
// import provides them.
func (s *LeadService) UpsertBatch(ctx context.Context, rows []UpsertLeadInput) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin lead upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const upsert = `INSERT INTO leads (` + leadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (company_name, zip) DO UPDATE SET
			category = COALESCE(excluded.category, leads.category),
			city = COALESCE(excluded.city, leads.city),
			website = COALESCE(excluded.website, leads.website),
			email = excluded.email,
			contact_form_url = excluded.contact_form_url,
			summary = COALESCE(excluded.summary, leads.summary),
			notes = COALESCE(excluded.notes, leads.notes),
			first_name = COALESCE(excluded.first_name, leads.first_name),
			source_url = COALESCE(excluded.source_url, leads.source_url),
			status = CASE WHEN ? = 1 THEN excluded.status ELSE leads.status END,
			last_contacted = COALESCE(excluded.last_contacted, leads.last_contacted),
			next_follow_up = COALESCE(excluded.next_follow_up, leads.next_follow_up),
			reply_type = COALESCE(excluded.reply_type, leads.reply_type),
			updated_at = excluded.updated_at`

	now := nowStamp()
	for _, row := range rows {
		status := row.Status
		if status == "" {
			status = StatusNotContacted
		}
		explicit := 0
		if row.StatusExplicit {
			explicit = 1
		}
		if _, err := tx.ExecContext(ctx, upsert,
			uuid.NewString(),
			strings.TrimSpace(row.CompanyName),
			nullString(row.Category),
			nullString(row.City),
			strings.TrimSpace(row.Zip),
			nullString(row.Website),
			nullString(row.Email),
			nullString(row.ContactFormURL),
			nullString(row.Summary),
			nullString(row.Notes),
			nullString(row.FirstName),
			nullString(row.SourceURL),
			string(status),
			nullString(row.LastContacted),
			nullString(row.NextFollowUp),
			nullString(row.ReplyType),
			now,
			now,
			explicit,
		); err != nil {
			return 0, fmt.Errorf("upsert lead %q: %w", row.CompanyName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit lead upsert: %w", err)
	}
	return len(rows), nil
}

// DueFollowUps lists non-terminal leads whose next_follow_up falls in [from, to] (dates,
// inclusive), soonest first.
func (s *LeadService) DueFollowUps(ctx context.Context, from, to string) ([]*Lead, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leadColumns+` FROM leads
		WHERE next_follow_up IS NOT NULL AND next_follow_up >= ? AND next_follow_up <= ?
			AND status NOT IN (?, ?, ?)
		ORDER BY next_follow_up ASC, company_name ASC`,
		from, to, string(StatusReplied), string(StatusNotFit), string(StatusDoNotContact),
	)
	if err != nil {
		return nil, fmt.Errorf("list due follow-ups: %w", err)
	}
	defer rows.Close()

	out := make([]*Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, lead)
	}
	return out, rows.Err()
}

// scanLead reads leadColumns followed by any extra destinations.
func scanLead(row scanner, extra ...any) (*Lead, error) {
	var (
		l                                          Lead
		category, city, website, email, contactURL sql.NullString
		summary, notes, firstName, sourceURL       sql.NullString
		lastContacted, nextFollowUp, replyType     sql.NullString
		status, createdAt, updatedAt               string
	)
	dest := []any{
		&l.ID, &l.CompanyName, &category, &city, &l.Zip, &website, &email, &contactURL,
		&summary, &notes, &firstName, &sourceURL, &status, &lastContacted, &nextFollowUp,
		&replyType, &createdAt, &updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	l.Category = stringPtr(category)
	l.City = stringPtr(city)
	l.Website = stringPtr(website)
	l.Email = stringPtr(email)
	l.ContactFormURL = stringPtr(contactURL)
	l.Summary = stringPtr(summary)
	l.Notes = stringPtr(notes)
	l.FirstName = stringPtr(firstName)
	l.SourceURL = stringPtr(sourceURL)
	l.Status = LeadStatus(status)
	l.LastContacted = stringPtr(lastContacted)
	l.NextFollowUp = stringPtr(nextFollowUp)
	l.ReplyType = stringPtr(replyType)
	l.CreatedAt = parseStamp(createdAt)
	l.UpdatedAt = parseStamp(updatedAt)
	return &l, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
