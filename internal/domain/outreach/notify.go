package outreach

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"

	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/mailer"
)

var contactNotice = htmltemplate.Must(htmltemplate.New("contact").Parse(`<div style="font-family: -apple-system, sans-serif; max-width: 560px; margin: 0 auto;">
  <h2 style="color: #0f5d5c; margin-bottom: 4px;">New Website Contact</h2>
  <p style="color: #6a6f73; margin-top: 0;">Someone submitted the contact form on sersweai.com</p>
  <hr style="border: none; border-top: 1px solid #e5e1d8; margin: 20px 0;" />
  <table style="width: 100%; border-collapse: collapse;">
    <tr><td style="padding: 8px 0; color: #6a6f73; width: 120px;">Name</td><td style="padding: 8px 0; font-weight: 600;">{{.FullName}}</td></tr>
    <tr><td style="padding: 8px 0; color: #6a6f73;">Email</td><td style="padding: 8px 0;"><a href="mailto:{{.Email}}">{{.Email}}</a></td></tr>
    {{with .Phone}}<tr><td style="padding: 8px 0; color: #6a6f73;">Phone</td><td style="padding: 8px 0;"><a href="tel:{{.}}">{{.}}</a></td></tr>{{end}}
    {{with .CompanyName}}<tr><td style="padding: 8px 0; color: #6a6f73;">Company</td><td style="padding: 8px 0;">{{.}}</td></tr>{{end}}
    {{with .Interest}}<tr><td style="padding: 8px 0; color: #6a6f73;">Interest</td><td style="padding: 8px 0;">{{.}}</td></tr>{{end}}
    {{with .Message}}<tr><td style="padding: 8px 0; color: #6a6f73;">Message</td><td style="padding: 8px 0;">{{.}}</td></tr>{{end}}
  </table>
  <hr style="border: none; border-top: 1px solid #e5e1d8; margin: 20px 0;" />
  <p style="color: #6a6f73; font-size: 13px;">View all contacts in your <a href="{{.DashboardURL}}">CRM dashboard</a>.</p>
</div>`))

type contactNoticeData struct {
	*crm.WebsiteContact
	DashboardURL string
}

// ContactNotifier emails the operator when the website form is submitted.
type ContactNotifier struct {
	mailer  mailer.Mailer
	from    string
	to      string
	baseURL string
	logger  *zap.Logger
}

// NewContactNotifier returns a notifier; it is a no-op when m is nil or from/to are empty.
func NewContactNotifier(m mailer.Mailer, from, to, baseURL string, logger *zap.Logger) *ContactNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactNotifier{mailer: m, from: from, to: to, baseURL: baseURL, logger: logger}
}

// Notify sends the notice. Failures are logged and never returned to the caller.
func (n *ContactNotifier) Notify(ctx context.Context, c *crm.WebsiteContact) {
	if n == nil || n.mailer == nil || n.from == "" || n.to == "" {
		return
	}
	subject := "New Contact: " + c.FullName
	if c.CompanyName != nil && *c.CompanyName != "" {
		subject += " from " + *c.CompanyName
	}

	var body bytes.Buffer
	if err := contactNotice.Execute(&body, contactNoticeData{WebsiteContact: c, DashboardURL: n.baseURL + "/crm/contacts"}); err != nil {
		n.logger.Warn("render contact notice", zap.Error(err))
		return
	}
	if _, err := n.mailer.Send(ctx, mailer.Message{
		From:    mailer.FormatAddress("SersweAI Website", n.from),
		To:      n.to,
		Subject: subject,
		HTML:    body.String(),
		Text:    fmt.Sprintf("New website contact: %s <%s>", c.FullName, c.Email),
	}); err != nil {
		n.logger.Warn("send contact notice", zap.String("contact_id", c.ID), zap.Error(err))
	}
}
