// Package outreach renders the four-step cold email sequence, schedules follow-ups and sends
// through the configured mailer under a daily cap.
package outreach

import (
	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/config"
)

const defaultWebsite = "https://sersweai.com"

var fallbackExamples = [2]string{"workflow automation", "client follow-up sequences"}

var defaultCategoryExamples = map[string][2]string{
	"Health & Wellness":   {"patient intake + insurance pre-screening automation", "appointment reminder + follow-up sequences"},
	"Real Estate":         {"auto-routing leads from Zillow and MLS inquiries", "auto-generated listing summaries and client update sequences"},
	"Technology":          {"support ticket triage + auto-responses", "onboarding workflows for new users and clients"},
	"Beauty & Fitness":    {"booking confirmation + rebook reminder sequences", "post-appointment review request automation"},
	"Home Services":       {"quote follow-up automation", "job completion → invoice → review request flows"},
	"Creative & Media":    {"client onboarding + asset collection workflows", "automated project status update sequences"},
	"Retail":              {"abandoned cart + restock notification flows", "post-purchase review and loyalty follow-ups"},
	"Food & Beverage":     {"catering inquiry → quote → follow-up automation", "reservation confirmation + upsell sequences"},
	"Insurance":           {"claims processing + renewal reminder automation", "policy quote follow-up sequences"},
	"Dental & Medical":    {"patient intake + insurance pre-verification automation", "appointment reminder + post-visit follow-up sequences"},
	"Property Management": {"tenant communication + maintenance request routing", "lease renewal reminder + rent collection automation"},
	"Financial Advisors":  {"client onboarding + document collection automation", "portfolio review scheduling + meeting prep workflows"},
	"Veterinary":          {"pet owner intake + vaccination reminder automation", "appointment confirmation + post-visit care follow-ups"},
	"Legal (Solo/Small)":  {"client intake + document collection automation", "case status update + deadline reminder sequences"},
}

func days(n int) *int { return &n }

// defaultFollowUpDays applies to categories without their own row. Nil means no follow-up.
var defaultFollowUpDays = map[crm.Template]*int{
	crm.TemplateEmail1: days(3),
	crm.TemplateEmail2: days(7),
	crm.TemplateEmail3: nil,
	crm.TemplateEmail4: nil,
}

func followUps(email1, email2 int) map[crm.Template]*int {
	return map[crm.Template]*int{
		crm.TemplateEmail1: days(email1),
		crm.TemplateEmail2: days(email2),
		crm.TemplateEmail3: nil,
		crm.TemplateEmail4: nil,
	}
}

var defaultCategoryFollowUpDays = map[string]map[crm.Template]*int{
	"Technology":          followUps(2, 5),
	"Real Estate":         followUps(4, 10),
	"Health & Wellness":   followUps(3, 7),
	"Insurance":           followUps(3, 7),
	"Dental & Medical":    followUps(3, 7),
	"Legal (Solo/Small)":  followUps(3, 7),
	"Financial Advisors":  followUps(3, 8),
	"Property Management": followUps(3, 7),
	"Veterinary":          followUps(3, 7),
	"Beauty & Fitness":    followUps(2, 5),
	"Home Services":       followUps(2, 5),
	"Creative & Media":    followUps(3, 7),
	"Retail":              followUps(3, 7),
	"Food & Beverage":     followUps(3, 7),
}

// Identity is who the emails come from and where their links point.
type Identity struct {
	SenderName  string
	SenderEmail string
	Website     string
	BookingURL  string
}

// Catalog holds the copy and cadence tables. The zero value is not usable; use NewCatalog.
type Catalog struct {
	Identity         Identity
	categoryExamples map[string][2]string
	defaultFollowUp  map[crm.Template]*int
	categoryFollowUp map[string]map[crm.Template]*int
}

// NewCatalog builds the built-in tables and applies cfg's identity and YAML overrides.
func NewCatalog(cfg config.Config) *Catalog {
	c := &Catalog{
		Identity: Identity{
			SenderName:  cfg.SenderName,
			SenderEmail: cfg.ReplyTo,
			Website:     defaultWebsite,
			BookingURL:  cfg.BookingURL,
		},
		categoryExamples: make(map[string][2]string, len(defaultCategoryExamples)),
		defaultFollowUp:  make(map[crm.Template]*int, len(defaultFollowUpDays)),
		categoryFollowUp: make(map[string]map[crm.Template]*int, len(defaultCategoryFollowUpDays)),
	}
	for k, v := range defaultCategoryExamples {
		c.categoryExamples[k] = v
	}
	for k, v := range defaultFollowUpDays {
		c.defaultFollowUp[k] = v
	}
	for k, v := range defaultCategoryFollowUpDays {
		c.categoryFollowUp[k] = v
	}
	c.apply(cfg.Outreach)
	return c
}

func (c *Catalog) apply(file config.OutreachFile) {
	if file.Sender.Name != "" {
		c.Identity.SenderName = file.Sender.Name
	}
	if file.Sender.Email != "" {
		c.Identity.SenderEmail = file.Sender.Email
	}
	if file.Sender.Website != "" {
		c.Identity.Website = file.Sender.Website
	}
	if file.Sender.BookingURL != "" {
		c.Identity.BookingURL = file.Sender.BookingURL
	}
	for category, examples := range file.CategoryExamples {
		if len(examples) == 2 {
			c.categoryExamples[category] = [2]string{examples[0], examples[1]}
		}
	}
	for template, d := range file.DefaultFollowUpDays {
		c.defaultFollowUp[crm.Template(template)] = d
	}
	for category, row := range file.FollowUpDays {
		merged := make(map[crm.Template]*int, len(row))
		for template, d := range row {
			merged[crm.Template(template)] = d
		}
		c.categoryFollowUp[category] = merged
	}
}

// Examples returns the two example automations for category.
func (c *Catalog) Examples(category string) (string, string) {
	if ex, ok := c.categoryExamples[category]; ok {
		return ex[0], ex[1]
	}
	return fallbackExamples[0], fallbackExamples[1]
}

// FollowUpDays looks up the category row first, then the default row; a nil entry in the
// category row falls through to the default. ok is false when no follow-up should be scheduled.
func (c *Catalog) FollowUpDays(category string, template crm.Template) (int, bool) {
	if d := c.categoryFollowUp[category][template]; d != nil {
		return *d, true
	}
	if d := c.defaultFollowUp[template]; d != nil {
		return *d, true
	}
	return 0, false
}
