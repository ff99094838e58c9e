package crm

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sersweai/leadcrm/internal/infra/database"
)

// LeadStats is the lead half of the dashboard.
type LeadStats struct {
	Total      int                `json:"total"`
	WithEmail  int                `json:"withEmail"`
	AddedToday int                `json:"addedToday"`
	ByStatus   map[LeadStatus]int `json:"byStatus"`
}

// RecentLead is the lead projection embedded in a recent email.
type RecentLead struct {
	CompanyName *string `json:"company_name"`
	Category    *string `json:"category"`
}

// RecentEmail is one of the latest sends shown on the dashboard.
type RecentEmail struct {
	ID       string      `json:"id"`
	Template Template    `json:"template"`
	SentAt   time.Time   `json:"sent_at"`
	ToEmail  string      `json:"to_email"`
	Lead     *RecentLead `json:"leads"`
}

// EmailStats is the email half of the dashboard.
type EmailStats struct {
	SentToday    int              `json:"sentToday"`
	SentThisWeek int              `json:"sentThisWeek"`
	ByTemplate   map[Template]int `json:"byTemplate"`
	Recent       []*RecentEmail   `json:"recent"`
}

type Stats struct {
	Leads  LeadStats  `json:"leads"`
	Emails EmailStats `json:"emails"`
}

// DayEmails counts one UTC day's sends by template.
type DayEmails struct {
	Email1 int `json:"email1"`
	Email2 int `json:"email2"`
	Email3 int `json:"email3"`
	Email4 int `json:"email4"`
	Total  int `json:"total"`
}

// Activity is the 90-day chart data, keyed by YYYY-MM-DD.
type Activity struct {
	EmailsByDate        map[string]*DayEmails `json:"emailsByDate"`
	LeadsImportedByDate map[string]int        `json:"leadsImportedByDate"`
}

type StatsService struct {
	db *database.DB
}

func NewStatsService(db *database.DB) *StatsService {
	return &StatsService{db: db}
}

// Dashboard computes lead and email counters relative to now. "Today" starts at UTC midnight;
// "this week" is the trailing seven 24-hour periods.
func (s *StatsService) Dashboard(ctx context.Context, now time.Time) (*Stats, error) {
	midnight := database.FormatTime(startOfUTCDay(now))
	weekAgo := database.FormatTime(now.Add(-7 * 24 * time.Hour))

	stats := &Stats{
		Leads:  LeadStats{ByStatus: map[LeadStatus]int{}},
		Emails: EmailStats{ByTemplate: map[Template]int{}, Recent: []*RecentEmail{}},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.leadCounters(gctx, midnight, &stats.Leads)
	})
	g.Go(func() error {
		return s.sentTodayByTemplate(gctx, midnight, &stats.Emails)
	})
	g.Go(func() error {
		err := s.db.QueryRowContext(gctx,
			`SELECT COUNT(*) FROM emails WHERE sent_at IS NOT NULL AND sent_at >= ?`, weekAgo,
		).Scan(&stats.Emails.SentThisWeek)
		if err != nil {
			return fmt.Errorf("count weekly emails: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		recent, err := s.recentEmails(gctx)
		if err != nil {
			return err
		}
		stats.Emails.Recent = recent
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *StatsService) leadCounters(ctx context.Context, midnight string, out *LeadStats) error {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*),
		SUM(CASE WHEN email IS NOT NULL AND email <> '' THEN 1 ELSE 0 END),
		SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END)
		FROM leads GROUP BY status`, midnight)
	if err != nil {
		return fmt.Errorf("count leads: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status                    string
			count, withEmail, created int
		)
		if err := rows.Scan(&status, &count, &withEmail, &created); err != nil {
			return fmt.Errorf("scan lead counters: %w", err)
		}
		out.ByStatus[LeadStatus(status)] = count
		out.Total += count
		out.WithEmail += withEmail
		out.AddedToday += created
	}
	return rows.Err()
}

func (s *StatsService) sentTodayByTemplate(ctx context.Context, midnight string, out *EmailStats) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT template, COUNT(*) FROM emails WHERE sent_at IS NOT NULL AND sent_at >= ? GROUP BY template`, midnight)
	if err != nil {
		return fmt.Errorf("count today's emails: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			template string
			count    int
		)
		if err := rows.Scan(&template, &count); err != nil {
			return fmt.Errorf("scan email counters: %w", err)
		}
		out.ByTemplate[Template(template)] = count
		out.SentToday += count
	}
	return rows.Err()
}

func (s *StatsService) recentEmails(ctx context.Context) ([]*RecentEmail, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT e.id, e.template, e.sent_at, e.to_email, l.company_name, l.category
		FROM emails e LEFT JOIN leads l ON l.id = e.lead_id
		WHERE e.sent_at IS NOT NULL
		ORDER BY e.sent_at DESC, e.id DESC LIMIT %d`, recentEmailsLimit))
	if err != nil {
		return nil, fmt.Errorf("list recent emails: %w", err)
	}
	defer rows.Close()

	out := make([]*RecentEmail, 0, recentEmailsLimit)
	for rows.Next() {
		var (
			e                     RecentEmail
			template, sentAt      string
			companyName, category sql.NullString
		)
		if err := rows.Scan(&e.ID, &template, &sentAt, &e.ToEmail, &companyName, &category); err != nil {
			return nil, fmt.Errorf("scan recent email: %w", err)
		}
		e.Template = Template(template)
		e.SentAt = parseStamp(sentAt)
		e.Lead = &RecentLead{CompanyName: stringPtr(companyName), Category: stringPtr(category)}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Activity buckets the last 90 days of sends and imports by UTC day.
func (s *StatsService) Activity(ctx context.Context, now time.Time) (*Activity, error) {
	since := database.FormatTime(now.Add(-activityDays * 24 * time.Hour))
	activity := &Activity{
		EmailsByDate:        map[string]*DayEmails{},
		LeadsImportedByDate: map[string]int{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, `SELECT SUBSTR(sent_at, 1, 10), template, COUNT(*)
			FROM emails WHERE sent_at IS NOT NULL AND sent_at >= ?
			GROUP BY SUBSTR(sent_at, 1, 10), template`, since)
		if err != nil {
			return fmt.Errorf("bucket emails: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				day, template string
				count         int
			)
			if err := rows.Scan(&day, &template, &count); err != nil {
				return fmt.Errorf("scan email bucket: %w", err)
			}
			bucket, ok := activity.EmailsByDate[day]
			if !ok {
				bucket = &DayEmails{}
				activity.EmailsByDate[day] = bucket
			}
			bucket.Total += count
			switch Template(template) {
			case TemplateEmail1:
				bucket.Email1 += count
			case TemplateEmail2:
				bucket.Email2 += count
			case TemplateEmail3:
				bucket.Email3 += count
			case TemplateEmail4:
				bucket.Email4 += count
			}
		}
		return rows.Err()
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, `SELECT SUBSTR(created_at, 1, 10), COUNT(*)
			FROM leads WHERE created_at >= ?
			GROUP BY SUBSTR(created_at, 1, 10)`, since)
		if err != nil {
			return fmt.Errorf("bucket leads: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				day   string
				count int
			)
			if err := rows.Scan(&day, &count); err != nil {
				return fmt.Errorf("scan lead bucket: %w", err)
			}
			activity.LeadsImportedByDate[day] = count
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return activity, nil
}
