// Package leadimport turns CSV exports into lead upserts, either on request or by watching an
// inbox directory.
package leadimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
)

// ErrNoValidRows means the CSV parsed but no row had a company name.
var ErrNoValidRows = errors.New("no valid rows found")

// Row is one CSV record keyed by trimmed header name.
type Row map[string]string

func (r Row) get(key string) string {
	return strings.TrimSpace(r[key])
}

// Parse reads a CSV with a header line. Blank lines are skipped and short records are padded,
// so a missing trailing column reads as empty.
func Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = h
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blank(record) {
			continue
		}
		row := make(Row, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// Normalize maps a CSV row onto a lead upsert. The email_or_contact_url column wins, then
// email, then contact_form_url; the value is an email when it contains "@" and is not a URL.
// An unrecognized status is ignored. ok is false when the row has no company name.
func Normalize(row Row) (crm.UpsertLeadInput, bool) {
	company := row.get("company_name")
	if company == "" {
		return crm.UpsertLeadInput{}, false
	}

	emailOrURL := row.get("email_or_contact_url")
	if emailOrURL == "" {
		emailOrURL = row.get("email")
	}
	if emailOrURL == "" {
		emailOrURL = row.get("contact_form_url")
	}
	isEmail := strings.Contains(emailOrURL, "@") && !strings.HasPrefix(emailOrURL, "http")

	in := crm.UpsertLeadInput{
		CompanyName:   company,
		Category:      row.get("category"),
		Zip:           row.get("zip"),
		City:          row.get("city"),
		Website:       row.get("website"),
		Summary:       row.get("summary"),
		Notes:         row.get("notes"),
		FirstName:     row.get("first_name"),
		SourceURL:     row.get("source_url"),
		Status:        crm.StatusNotContacted,
		LastContacted: row.get("last_contacted"),
		NextFollowUp:  row.get("next_follow_up"),
		ReplyType:     row.get("reply_type"),
	}
	if isEmail {
		in.Email = emailOrURL
	} else {
		in.ContactFormURL = emailOrURL
	}
	if status := crm.LeadStatus(row.get("status")); status.Valid() {
		in.Status = status
		in.StatusExplicit = true
	}
	return in, true
}

// NormalizeAll keeps rows with a company name. A later row with the same (company_name, zip)
// replaces an earlier one.
func NormalizeAll(rows []Row) []crm.UpsertLeadInput {
	out := make([]crm.UpsertLeadInput, 0, len(rows))
	seen := make(map[[2]string]int, len(rows))
	for _, row := range rows {
		in, ok := Normalize(row)
		if !ok {
			continue
		}
		key := [2]string{in.CompanyName, in.Zip}
		if i, dup := seen[key]; dup {
			out[i] = in
			continue
		}
		seen[key] = len(out)
		out = append(out, in)
	}
	return out
}

type leadUpserter interface {
	UpsertBatch(ctx context.Context, rows []crm.UpsertLeadInput) (int, error)
}

// ImportedEvent is published on eventbus.TopicLeadsImported.
type ImportedEvent struct {
	Inserted int    `json:"inserted"`
	Source   string `json:"source"`
}

// Importer parses and upserts CSV exports.
type Importer struct {
	leads  leadUpserter
	bus    eventbus.EventBus
	logger *zap.Logger
}

func NewImporter(leads leadUpserter, bus eventbus.EventBus, logger *zap.Logger) *Importer {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{leads: leads, bus: bus, logger: logger}
}

// Import upserts every valid row of r and returns how many were written. source labels the
// import in logs and events.
func (im *Importer) Import(ctx context.Context, r io.Reader, source string) (int, error) {
	rows, err := Parse(r)
	if err != nil {
		return 0, err
	}
	leads := NormalizeAll(rows)
	if len(leads) == 0 {
		return 0, ErrNoValidRows
	}
	n, err := im.leads.UpsertBatch(ctx, leads)
	if err != nil {
		return 0, err
	}
	im.bus.Publish(eventbus.TopicLeadsImported, ImportedEvent{Inserted: n, Source: source})
	im.logger.Info("leads imported",
		zap.String("source", source),
		zap.Int("rows", len(rows)),
		zap.Int("inserted", n),
	)
	return n, nil
}
