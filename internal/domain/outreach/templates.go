package outreach

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"regexp"
	"strings"
	texttemplate "text/template"
	"unicode"
	"unicode/utf8"

	"github.com/sersweai/leadcrm/internal/domain/crm"
)

// ErrUnknownTemplate is returned for template names outside email1..email4.
var ErrUnknownTemplate = errors.New("unknown template")

// Rendered is a ready-to-send email. SubjectVariant is empty when the template has a single subject.
type Rendered struct {
	Subject        string
	SubjectVariant string
	Text           string
	HTML           string
}

type templateData struct {
	FirstName   string
	Firm        string
	Category    string
	Opener      string
	Example1    string
	Example2    string
	SiteLink    string
	BookingLink string
	BookingURL  string
	PixelURL    string
	SenderName  string
	SenderEmail string
	Website     string
}

const textFooter = `{{define "footer"}}

— {{.SenderName}}
{{.SenderEmail}}
{{.Website}}

If you'd prefer not to hear from me, reply "unsubscribe."{{end}}`

const textTemplates = textFooter + `
{{define "email1"}}Hi {{.FirstName}},

{{.Opener}}

I'm Neil from SersweAI — we're a local San Diego business that helps {{.Category}} firms save time by automating repetitive admin work (intake forms, document collection, client follow-ups, scheduling) using simple AI workflows. For {{.Category}} businesses specifically, we typically build things like {{.Example1}} and {{.Example2}}.

No new software to learn — we build on top of the tools you already use.

Would you be open to a free 30-minute call where I walk through 2–3 automations specific to {{.Firm}}?

You can see what we do here: {{.SiteLink}}{{if .BookingLink}}

Book a time: {{.BookingLink}}{{end}}{{template "footer" .}}{{end}}
{{define "email2"}}Hi {{.FirstName}},

Following up — here are two workflows we've built for other {{.Category}} firms in San Diego that usually save 5–10 hours a week:

1) Smart intake + routing: new inquiries are captured, key details extracted, and routed to the right person automatically.
2) Document collection + auto-reminders: clients get a simple upload link with automatic follow-ups until everything is in.

For {{.Category}} businesses specifically, we also build things like {{.Example1}} and {{.Example2}}.

I'd love to spend 30 minutes mapping out how these could work for {{.Firm}} specifically — no cost, no obligation.

See examples on our site: {{.SiteLink}}{{if .BookingLink}}

Grab a time here: {{.BookingLink}}{{end}}{{template "footer" .}}{{end}}
{{define "email3"}}Hi {{.FirstName}},

Just one last note. I know things get busy, so no worries if now isn't the right time.

I'm based in San Diego and work with a lot of local {{.Category}} businesses — if you're curious what AI automation could look like for {{.Firm}}, I'm happy to put together a quick 1-page workflow suggestion — completely free.

Just reply or book 30 minutes here: {{if .BookingLink}}{{.BookingLink}}{{else}}{{.SiteLink}}{{end}}

Either way, you can always check out what we do at: {{.SiteLink}}{{template "footer" .}}{{end}}
{{define "email4"}}Hi {{.FirstName}},

I reached out a few weeks ago about automating some of the admin work at {{.Firm}}.

No worries if the timing wasn't right — just wanted to let you know the offer still stands.

If you ever want a quick walkthrough of what automation could look like for {{.Firm}}, I'm here.

You can see what we do here: {{.SiteLink}}{{if .BookingLink}}

Book a time: {{.BookingLink}}{{end}}{{template "footer" .}}{{end}}`

const htmlTemplates = `{{define "footer"}}
<p>— {{.SenderName}}<br/>{{.SenderEmail}}<br/><a href="{{.SiteLink}}">sersweai.com</a></p>
<p style="font-size:12px;color:#999;">If you'd prefer not to hear from me, reply "unsubscribe."</p>
<img src="{{.PixelURL}}" width="1" height="1" alt="" />
{{end}}
{{define "email1"}}
<p>Hi {{.FirstName}},</p>
<p>{{.Opener}}</p>
<p>I'm Neil from SersweAI — we're a local San Diego business that helps {{.Category}} firms save time by automating repetitive admin work (intake forms, document collection, client follow-ups, scheduling) using simple AI workflows. For {{.Category}} businesses specifically, we typically build things like {{.Example1}} and {{.Example2}}.</p>
<p>No new software to learn — we build on top of the tools you already use.</p>
<p>Would you be open to a free 30-minute call where I walk through 2–3 automations specific to {{.Firm}}?</p>
<p>You can see what we do here: <a href="{{.SiteLink}}">sersweai.com</a></p>
{{if .BookingLink}}<p>Book a time: <a href="{{.BookingLink}}">{{.BookingURL}}</a></p>{{end}}
{{template "footer" .}}{{end}}
{{define "email2"}}
<p>Hi {{.FirstName}},</p>
<p>Following up — here are two workflows we've built for other {{.Category}} firms in San Diego that usually save 5–10 hours a week:</p>
<ol>
  <li><strong>Smart intake + routing:</strong> new inquiries are captured, key details extracted, and routed to the right person automatically.</li>
  <li><strong>Document collection + auto-reminders:</strong> clients get a simple upload link with automatic follow-ups until everything is in.</li>
</ol>
<p>For {{.Category}} businesses specifically, we also build things like {{.Example1}} and {{.Example2}}.</p>
<p>I'd love to spend 30 minutes mapping out how these could work for {{.Firm}} specifically — no cost, no obligation.</p>
<p>See examples on our site: <a href="{{.SiteLink}}">sersweai.com</a></p>
{{if .BookingLink}}<p>Grab a time here: <a href="{{.BookingLink}}">{{.BookingURL}}</a></p>{{end}}
{{template "footer" .}}{{end}}
{{define "email3"}}
<p>Hi {{.FirstName}},</p>
<p>Just one last note. I know things get busy, so no worries if now isn't the right time.</p>
<p>I'm based in San Diego and work with a lot of local {{.Category}} businesses — if you're curious what AI automation could look like for {{.Firm}}, I'm happy to put together a quick 1-page workflow suggestion — completely free.</p>
<p>Just reply or book 30 minutes here: {{if .BookingLink}}<a href="{{.BookingLink}}">{{.BookingURL}}</a>{{else}}<a href="{{.SiteLink}}">sersweai.com</a>{{end}}</p>
<p>Either way, you can always check out what we do at: <a href="{{.SiteLink}}">sersweai.com</a></p>
{{template "footer" .}}{{end}}
{{define "email4"}}
<p>Hi {{.FirstName}},</p>
<p>I reached out a few weeks ago about automating some of the admin work at {{.Firm}}.</p>
<p>No worries if the timing wasn't right — just wanted to let you know the offer still stands.</p>
<p>If you ever want a quick walkthrough of what automation could look like for {{.Firm}}, I'm here.</p>
<p>You can see what we do here: <a href="{{.SiteLink}}">sersweai.com</a></p>
{{if .BookingLink}}<p>Book a time: <a href="{{.BookingLink}}">{{.BookingURL}}</a></p>{{end}}
{{template "footer" .}}{{end}}`

var (
	textSet = texttemplate.Must(texttemplate.New("outreach").Parse(textTemplates))
	htmlSet = htmltemplate.Must(htmltemplate.New("outreach").Parse(htmlTemplates))

	ratingSuffix = regexp.MustCompile(`(?i)\.?\s*Rating:[\d\s./()reviews]+\.?$`)
)

// Renderer turns a lead and template into subject and bodies.
type Renderer struct {
	catalog *Catalog
	baseURL string
}

func NewRenderer(catalog *Catalog, baseURL string) *Renderer {
	return &Renderer{catalog: catalog, baseURL: strings.TrimRight(baseURL, "/")}
}

// Render builds the email for lead. emailID is embedded in every tracked link.
func (r *Renderer) Render(lead *crm.Lead, template crm.Template, emailID string) (*Rendered, error) {
	if !template.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, template)
	}
	id := r.catalog.Identity
	category := valueOr(lead.Category, "business")
	example1, example2 := r.catalog.Examples(category)

	data := templateData{
		FirstName:   valueOr(lead.FirstName, "there"),
		Firm:        lead.CompanyName,
		Category:    category,
		Example1:    example1,
		Example2:    example2,
		SiteLink:    r.clickURL(emailID, lead.ID, id.Website),
		PixelURL:    r.openURL(emailID, lead.ID),
		SenderName:  id.SenderName,
		SenderEmail: id.SenderEmail,
		Website:     id.Website,
	}
	if id.BookingURL != "" {
		data.BookingLink = r.clickURL(emailID, lead.ID, id.BookingURL)
		data.BookingURL = id.BookingURL
	}
	if template == crm.TemplateEmail1 {
		data.Opener = opener(lead, category)
	}

	var text, html bytes.Buffer
	if err := textSet.ExecuteTemplate(&text, string(template), data); err != nil {
		return nil, fmt.Errorf("render %s text: %w", template, err)
	}
	if err := htmlSet.ExecuteTemplate(&html, string(template), data); err != nil {
		return nil, fmt.Errorf("render %s html: %w", template, err)
	}

	subject, variant := SelectSubject(template, lead.ID, lead.CompanyName, category)
	return &Rendered{
		Subject:        subject,
		SubjectVariant: variant,
		Text:           text.String(),
		HTML:           strings.TrimSpace(html.String()),
	}, nil
}

func (r *Renderer) clickURL(emailID, leadID, target string) string {
	q := url.Values{}
	q.Set("email_id", emailID)
	q.Set("lead_id", leadID)
	q.Set("url", target)
	return r.baseURL + "/api/track/click?" + q.Encode()
}

func (r *Renderer) openURL(emailID, leadID string) string {
	q := url.Values{}
	q.Set("email_id", emailID)
	q.Set("lead_id", leadID)
	return r.baseURL + "/api/track/open?" + q.Encode()
}

// opener is the email1 first paragraph: the operator's notes when present, otherwise a line
// built from the lead summary or location.
func opener(lead *crm.Lead, category string) string {
	if notes := strings.TrimSpace(valueOr(lead.Notes, "")); notes != "" {
		return notes
	}
	return ContextLine(lead.CompanyName, valueOr(lead.City, ""), category, valueOr(lead.Summary, "")) + "."
}

// ContextLine says how we found the firm. A trailing "Rating: ..." suffix on the summary is dropped.
func ContextLine(firm, city, category, summary string) string {
	clean := CleanSummary(summary)
	if clean == "" {
		where := ""
		if city != "" {
			where = " in " + city
		}
		return fmt.Sprintf("I came across %s%s and work with a lot of %s firms", firm, where, category)
	}
	lower := strings.ToLower(clean)
	if strings.HasPrefix(lower, "they") || strings.HasPrefix(lower, "the") {
		return fmt.Sprintf("I came across %s and noticed %s", firm, lowerFirst(clean))
	}
	return fmt.Sprintf("I came across %s and noticed that you %s", firm, lowerFirst(clean))
}

// CleanSummary strips a scraped rating suffix such as ". Rating: 4.8 (120 reviews)".
func CleanSummary(summary string) string {
	return strings.TrimSpace(ratingSuffix.ReplaceAllString(summary, ""))
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func valueOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
