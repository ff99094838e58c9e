package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/pkg/uuid"
)

// ErrContactIncomplete is returned when a website contact lacks a name or email.
var ErrContactIncomplete = errors.New("full_name and email are required")

// WebsiteContact is an inbound submission from the marketing site.
type WebsiteContact struct {
	ID          string    `json:"id"`
	FullName    string    `json:"full_name"`
	Email       string    `json:"email"`
	Phone       *string   `json:"phone"`
	CompanyName *string   `json:"company_name"`
	Interest    *string   `json:"interest"`
	Message     *string   `json:"message"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateContactInput struct {
	FullName    string
	Email       string
	Phone       string
	CompanyName string
	Interest    string
	Message     string
	Source      string
}

type ContactService struct {
	db *database.DB
}

func NewContactService(db *database.DB) *ContactService {
	return &ContactService{db: db}
}

const contactColumns = `id, full_name, email, phone, company_name, interest, message, source, created_at`

func (s *ContactService) Create(ctx context.Context, input CreateContactInput) (*WebsiteContact, error) {
	if strings.TrimSpace(input.FullName) == "" || strings.TrimSpace(input.Email) == "" {
		return nil, ErrContactIncomplete
	}
	source := strings.TrimSpace(input.Source)
	if source == "" {
		source = defaultSource
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO website_contacts (`+contactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, input.FullName, input.Email, nullString(input.Phone), nullString(input.CompanyName),
		nullString(input.Interest), nullString(input.Message), source, nowStamp(),
	)
	if err != nil {
		return nil, fmt.Errorf("create website contact: %w", err)
	}
	return scanContact(s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM website_contacts WHERE id = ?`, id))
}

// List returns the latest 200 contacts, newest first.
func (s *ContactService) List(ctx context.Context) ([]*WebsiteContact, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT `+contactColumns+` FROM website_contacts ORDER BY created_at DESC, id DESC LIMIT %d`, listContactsLimit))
	if err != nil {
		return nil, fmt.Errorf("list website contacts: %w", err)
	}
	defer rows.Close()

	out := make([]*WebsiteContact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanContact(row scanner) (*WebsiteContact, error) {
	var (
		c                                     WebsiteContact
		phone, companyName, interest, message sql.NullString
		createdAt                             string
	)
	if err := row.Scan(&c.ID, &c.FullName, &c.Email, &phone, &companyName, &interest, &message,
		&c.Source, &createdAt); err != nil {
		return nil, err
	}
	c.Phone = stringPtr(phone)
	c.CompanyName = stringPtr(companyName)
	c.Interest = stringPtr(interest)
	c.Message = stringPtr(message)
	c.CreatedAt = parseStamp(createdAt)
	return &c, nil
}
