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

var (
	ErrDealCompanyRequired = errors.New("company_name required")
	ErrInvalidStage        = errors.New("invalid deal stage")
)

type Deal struct {
	ID          string    `json:"id"`
	LeadID      *string   `json:"lead_id"`
	CompanyName string    `json:"company_name"`
	Stage       DealStage `json:"stage"`
	Value       float64   `json:"value"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateDealInput struct {
	LeadID      string
	CompanyName string
	Stage       DealStage
	Value       float64
	Notes       string
}

// UpdateDealInput carries only the fields to change. An empty LeadID detaches the lead.
type UpdateDealInput struct {
	LeadID      *string
	CompanyName *string
	Stage       *DealStage
	Value       *float64
	Notes       *string
}

// StageTotal is the count and value of deals in one stage.
type StageTotal struct {
	Count int     `json:"count"`
	Value float64 `json:"value"`
}

// DealSummary is the pipeline board header.
type DealSummary struct {
	PipelineValue float64                  `json:"pipelineValue"`
	WonValue      float64                  `json:"wonValue"`
	ActiveDeals   int                      `json:"activeDeals"`
	ByStage       map[DealStage]StageTotal `json:"byStage"`
}

type DealService struct {
	db *database.DB
}

func NewDealService(db *database.DB) *DealService {
	return &DealService{db: db}
}

const dealColumns = `id, lead_id, company_name, stage, value, notes, created_at, updated_at`

func (s *DealService) Create(ctx context.Context, input CreateDealInput) (*Deal, error) {
	if strings.TrimSpace(input.CompanyName) == "" {
		return nil, ErrDealCompanyRequired
	}
	stage := input.Stage
	if stage == "" {
		stage = StageDiscovery
	}
	if !stage.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	id := uuid.NewString()
	now := nowStamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deals (`+dealColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nullString(input.LeadID), input.CompanyName, string(stage), input.Value, input.Notes, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create deal: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *DealService) Get(ctx context.Context, dealID string) (*Deal, error) {
	return scanDeal(s.db.QueryRowContext(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = ?`, dealID))
}

// List returns every deal, newest first.
func (s *DealService) List(ctx context.Context) ([]*Deal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+dealColumns+` FROM deals ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	defer rows.Close()

	out := make([]*Deal, 0)
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deal: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update applies the non-nil fields and bumps updated_at. A missing deal yields sql.ErrNoRows.
func (s *DealService) Update(ctx context.Context, dealID string, input UpdateDealInput) (*Deal, error) {
	var (
		sets []string
		args []any
	)
	if input.LeadID != nil {
		sets = append(sets, "lead_id = ?")
		args = append(args, nullString(*input.LeadID))
	}
	if input.CompanyName != nil {
		if strings.TrimSpace(*input.CompanyName) == "" {
			return nil, ErrDealCompanyRequired
		}
		sets = append(sets, "company_name = ?")
		args = append(args, *input.CompanyName)
	}
	if input.Stage != nil {
		if !input.Stage.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStage, *input.Stage)
		}
		sets = append(sets, "stage = ?")
		args = append(args, string(*input.Stage))
	}
	if input.Value != nil {
		sets = append(sets, "value = ?")
		args = append(args, *input.Value)
	}
	if input.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *input.Notes)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, nowStamp(), dealID)

	res, err := s.db.ExecContext(ctx, `UPDATE deals SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update deal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, sql.ErrNoRows
	}
	return s.Get(ctx, dealID)
}

// Delete removes a deal. Deleting a missing deal is not an error.
func (s *DealService) Delete(ctx context.Context, dealID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM deals WHERE id = ?`, dealID); err != nil {
		return fmt.Errorf("delete deal: %w", err)
	}
	return nil
}

// Summary totals the board. Every stage is present in ByStage.
func (s *DealService) Summary(ctx context.Context) (*DealSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(*), COALESCE(SUM(value), 0) FROM deals GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("summarize deals: %w", err)
	}
	defer rows.Close()

	summary := &DealSummary{ByStage: make(map[DealStage]StageTotal, len(DealStages))}
	for _, stage := range DealStages {
		summary.ByStage[stage] = StageTotal{}
	}
	for rows.Next() {
		var (
			stage string
			total StageTotal
		)
		if err := rows.Scan(&stage, &total.Count, &total.Value); err != nil {
			return nil, fmt.Errorf("scan deal summary: %w", err)
		}
		st := DealStage(stage)
		summary.ByStage[st] = total
		switch {
		case st.Active():
			summary.PipelineValue += total.Value
			summary.ActiveDeals += total.Count
		case st == StageClosedWon:
			summary.WonValue += total.Value
		}
	}
	return summary, rows.Err()
}

func scanDeal(row scanner) (*Deal, error) {
	var (
		d                           Deal
		leadID                      sql.NullString
		stage, createdAt, updatedAt string
	)
	if err := row.Scan(&d.ID, &leadID, &d.CompanyName, &stage, &d.Value, &d.Notes, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.LeadID = stringPtr(leadID)
	d.Stage = DealStage(stage)
	d.CreatedAt = parseStamp(createdAt)
	d.UpdatedAt = parseStamp(updatedAt)
	return &d, nil
}
