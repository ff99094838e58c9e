package crm_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/database"
)

func mustOpenDBWithMigrations(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "crm.db"))
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("database.Migrate() error = %v", err)
	}
	return db
}

// seedLead imports a single lead and returns it.
func seedLead(t *testing.T, db *database.DB, row crm.UpsertLeadInput) *crm.Lead {
	t.Helper()

	svc := crm.NewLeadService(db)
	if _, err := svc.UpsertBatch(context.Background(), []crm.UpsertLeadInput{row}); err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
	var id string
	if err := db.QueryRowContext(context.Background(),
		`SELECT id FROM leads WHERE company_name = ? AND zip = ?`, row.CompanyName, row.Zip,
	).Scan(&id); err != nil {
		t.Fatalf("lookup seeded lead: %v", err)
	}
	lead, err := svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	return lead
}

// seedSentEmail records a sent email for lead and returns its id.
func seedSentEmail(t *testing.T, db *database.DB, lead *crm.Lead, template crm.Template, messageID string) string {
	t.Helper()

	svc := crm.NewEmailService(db)
	to := "owner@example.com"
	if lead.Email != nil {
		to = *lead.Email
	}
	pending, err := svc.CreatePending(context.Background(), lead.ID, template, to)
	if err != nil {
		t.Fatalf("CreatePending() error = %v", err)
	}
	if err := svc.MarkSent(context.Background(), pending.ID, crm.MarkSentInput{
		Subject:   "Quick idea for " + lead.CompanyName,
		Body:      "body",
		MessageID: messageID,
	}); err != nil {
		t.Fatalf("MarkSent() error = %v", err)
	}
	return pending.ID
}

func strPtr(s string) *string { return &s }
