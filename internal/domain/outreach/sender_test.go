package outreach

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/infra/config"
	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
	"github.com/sersweai/leadcrm/internal/infra/mailer"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mailer.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func (f *fakeMailer) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailer.Message(nil), f.sent...)
}

func openTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "outreach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func seedLead(t *testing.T, db *database.DB, in crm.UpsertLeadInput) *crm.Lead {
	t.Helper()

	svc := crm.NewLeadService(db)
	_, err := svc.UpsertBatch(context.Background(), []crm.UpsertLeadInput{in})
	require.NoError(t, err)

	leads, err := svc.List(context.Background(), crm.ListLeadsInput{Search: in.CompanyName})
	require.NoError(t, err)
	require.Len(t, leads, 1)
	return &leads[0].Lead
}

type senderFixture struct {
	db     *database.DB
	leads  *crm.LeadService
	emails *crm.EmailService
	mailer *fakeMailer
	bus    *eventbus.Bus
	sender *Sender
}

// Wednesday 2026-03-04 17:00 UTC, 09:00 in Los Angeles.
var fixedNow = time.Date(2026, 3, 4, 17, 0, 0, 0, time.UTC)

func newSenderFixture(t *testing.T, limit int) *senderFixture {
	t.Helper()

	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	db := openTestDB(t)
	f := &senderFixture{
		db:     db,
		leads:  crm.NewLeadService(db),
		emails: crm.NewEmailService(db),
		mailer: &fakeMailer{},
		bus:    eventbus.New(),
	}
	catalog := testCatalog()
	f.sender = NewSender(f.leads, f.emails, f.mailer, NewRenderer(catalog, "http://crm.test"), catalog, f.bus,
		Policy{DailyLimit: limit, Location: la, From: "SersweAI <neil@sersweai.com>", ReplyTo: "sersweai2@gmail.com"}, zap.NewNop())
	f.sender.now = func() time.Time { return fixedNow }
	return f
}

func TestSender_Send(t *testing.T) {
	t.Parallel()

	f := newSenderFixture(t, 25)
	lead := seedLead(t, f.db, crm.UpsertLeadInput{
		CompanyName: "Acme Tax", Zip: "92101", Category: "Insurance", Email: "owner@acme.test",
	})
	sent := f.bus.Subscribe(eventbus.TopicEmailSent)

	res, err := f.sender.Send(context.Background(), lead.ID, crm.TemplateEmail1)
	require.NoError(t, err)

	assert.Equal(t, "msg-1", res.MessageID)
	assert.Equal(t, crm.StatusEmail1Sent, res.Status)
	assert.Equal(t, "2026-03-05T08:00:00-08:00", res.ScheduledAt.Format(time.RFC3339))
	require.NotNil(t, res.NextFollowUp)
	assert.Equal(t, "2026-03-09", *res.NextFollowUp)

	msgs := f.mailer.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "owner@acme.test", msgs[0].To)
	assert.Equal(t, "SersweAI <neil@sersweai.com>", msgs[0].From)
	assert.Equal(t, "sersweai2@gmail.com", msgs[0].ReplyTo)
	assert.Equal(t, res.Subject, msgs[0].Subject)
	assert.Contains(t, msgs[0].Text, "email_id="+res.EmailID)
	assert.True(t, msgs[0].ScheduledAt.Equal(res.ScheduledAt))

	email, err := f.emails.Get(context.Background(), res.EmailID)
	require.NoError(t, err)
	require.NotNil(t, email.SentAt)
	require.NotNil(t, email.MessageID)
	assert.Equal(t, "msg-1", *email.MessageID)
	assert.Equal(t, msgs[0].Text, email.Body)

	updated, err := f.leads.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, crm.StatusEmail1Sent, updated.Status)
	require.NotNil(t, updated.LastContacted)
	assert.Equal(t, "2026-03-04", *updated.LastContacted)
	require.NotNil(t, updated.NextFollowUp)
	assert.Equal(t, "2026-03-09", *updated.NextFollowUp)

	select {
	case ev := <-sent:
		payload, ok := ev.Payload.(EmailSentEvent)
		require.True(t, ok)
		assert.Equal(t, lead.ID, payload.LeadID)
		assert.Equal(t, crm.TemplateEmail1, payload.Template)
	case <-time.After(time.Second):
		t.Fatal("no email.sent event")
	}
}

func TestSender_LastTemplateClearsFollowUp(t *testing.T) {
	t.Parallel()

	f := newSenderFixture(t, 25)
	lead := seedLead(t, f.db, crm.UpsertLeadInput{
		CompanyName: "Late Co", Zip: "1", Email: "a@late.test", NextFollowUp: "2026-03-01",
	})

	res, err := f.sender.Send(context.Background(), lead.ID, crm.TemplateEmail3)
	require.NoError(t, err)
	assert.Nil(t, res.NextFollowUp)

	updated, err := f.leads.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, crm.StatusEmail3Sent, updated.Status)
	assert.Nil(t, updated.NextFollowUp)
}

func TestSender_DailyLimit(t *testing.T) {
	t.Parallel()

	f := newSenderFixture(t, 1)
	a := seedLead(t, f.db, crm.UpsertLeadInput{CompanyName: "Alpha", Zip: "1", Email: "a@alpha.test"})
	b := seedLead(t, f.db, crm.UpsertLeadInput{CompanyName: "Beta", Zip: "2", Email: "b@beta.test"})

	_, err := f.sender.Send(context.Background(), a.ID, crm.TemplateEmail1)
	require.NoError(t, err)

	_, err = f.sender.Send(context.Background(), b.ID, crm.TemplateEmail1)
	require.ErrorIs(t, err, ErrDailyLimitReached)
	assert.Len(t, f.mailer.messages(), 1)
	assert.Equal(t, 1, f.sender.DailyLimit())

	// The cap resets at UTC midnight.
	f.sender.now = func() time.Time { return fixedNow.Add(24 * time.Hour) }
	_, err = f.sender.Send(context.Background(), b.ID, crm.TemplateEmail1)
	require.NoError(t, err)
}

func TestSender_Rejections(t *testing.T) {
	t.Parallel()

	f := newSenderFixture(t, 25)
	noEmail := seedLead(t, f.db, crm.UpsertLeadInput{
		CompanyName: "Form Only", Zip: "1", ContactFormURL: "https://formonly.test/contact",
	})
	withEmail := seedLead(t, f.db, crm.UpsertLeadInput{CompanyName: "Has Mail", Zip: "2", Email: "x@hasmail.test"})

	_, err := f.sender.Send(context.Background(), noEmail.ID, crm.TemplateEmail1)
	require.ErrorIs(t, err, ErrLeadHasNoEmail)

	_, err = f.sender.Send(context.Background(), "missing", crm.TemplateEmail1)
	require.ErrorIs(t, err, ErrLeadNotFound)

	_, err = f.sender.Send(context.Background(), withEmail.ID, "email5")
	require.ErrorIs(t, err, ErrUnknownTemplate)

	assert.Empty(t, f.mailer.messages())
}

func TestSender_NoMailer(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	leads, emails := crm.NewLeadService(db), crm.NewEmailService(db)
	catalog := testCatalog()
	s := NewSender(leads, emails, nil, NewRenderer(catalog, "http://crm.test"), catalog, nil, Policy{}, nil)
	lead := seedLead(t, db, crm.UpsertLeadInput{CompanyName: "Acme", Zip: "1", Email: "a@acme.test"})

	_, err := s.Send(context.Background(), lead.ID, crm.TemplateEmail1)
	require.ErrorIs(t, err, ErrMailerNotConfigured)
	assert.Equal(t, DefaultDailyLimit, s.DailyLimit())
}

func TestSender_ProviderFailureDiscardsPending(t *testing.T) {
	t.Parallel()

	f := newSenderFixture(t, 25)
	f.mailer.err = errors.New("provider down")
	lead := seedLead(t, f.db, crm.UpsertLeadInput{CompanyName: "Acme", Zip: "1", Email: "a@acme.test"})

	_, err := f.sender.Send(context.Background(), lead.ID, crm.TemplateEmail1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")

	var n int
	require.NoError(t, f.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM emails`).Scan(&n))
	assert.Zero(t, n)

	unchanged, err := f.leads.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, crm.StatusNotContacted, unchanged.Status)
}

func TestStatusUpdater_Apply(t *testing.T) {
	t.Parallel()

	f := newSenderFixture(t, 25)
	lead := seedLead(t, f.db, crm.UpsertLeadInput{CompanyName: "Acme", Zip: "1", Email: "a@acme.test"})
	_, err := f.sender.Send(context.Background(), lead.ID, crm.TemplateEmail1)
	require.NoError(t, err)

	changed := f.bus.Subscribe(eventbus.TopicLeadStatusChanged)
	u := NewStatusUpdater(f.emails, f.leads, f.bus, zap.NewNop())

	tr, err := u.Apply(context.Background(), "sendgrid", "msg-1.filter0001.123", crm.StatusDoNotContact)
	require.NoError(t, err)
	assert.Equal(t, Transition{Matched: true, LeadID: lead.ID, Status: crm.StatusDoNotContact}, tr)

	updated, err := f.leads.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, crm.StatusDoNotContact, updated.Status)

	select {
	case ev := <-changed:
		assert.Equal(t, StatusChangedEvent{LeadID: lead.ID, Status: crm.StatusDoNotContact, Source: "sendgrid"}, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("no lead.status_changed event")
	}

	tr, err = u.Apply(context.Background(), "resend", "unknown-id", crm.StatusNotFit)
	require.NoError(t, err)
	assert.False(t, tr.Matched)
}

func TestContactNotifier_Notify(t *testing.T) {
	t.Parallel()

	m := &fakeMailer{}
	n := NewContactNotifier(m, "site@sersweai.com", "neil@sersweai.com", "https://crm.test", nil)
	company, phone := "Acme", "555-0100"
	n.Notify(context.Background(), &crm.WebsiteContact{
		ID: "c1", FullName: "Dana <Scully>", Email: "dana@acme.test", CompanyName: &company, Phone: &phone,
	})

	msgs := m.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "New Contact: Dana <Scully> from Acme", msgs[0].Subject)
	assert.Equal(t, "neil@sersweai.com", msgs[0].To)
	assert.Contains(t, msgs[0].From, "site@sersweai.com")
	assert.Contains(t, msgs[0].HTML, "Dana &lt;Scully&gt;")
	assert.Contains(t, msgs[0].HTML, "555-0100")
	assert.Contains(t, msgs[0].HTML, "https://crm.test/crm/contacts")
	assert.NotContains(t, msgs[0].HTML, "Interest")
}

func TestContactNotifier_FailuresAreLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	n := NewContactNotifier(&fakeMailer{err: errors.New("boom")}, "a@x.test", "b@x.test", "", zap.New(core))
	n.Notify(context.Background(), &crm.WebsiteContact{ID: "c1", FullName: "A", Email: "a@b.test"})
	assert.Equal(t, 1, logs.FilterMessage("send contact notice").Len())

	// Unconfigured notifiers do nothing.
	NewContactNotifier(nil, "a@x.test", "b@x.test", "", nil).Notify(context.Background(), &crm.WebsiteContact{})
	NewContactNotifier(&fakeMailer{}, "", "b@x.test", "", nil).Notify(context.Background(), &crm.WebsiteContact{})
}

func TestNewCatalog_Identity(t *testing.T) {
	t.Parallel()

	c := NewCatalog(config.Config{SenderName: "SersweAI", ReplyTo: "r@x.test"})
	assert.Equal(t, "r@x.test", c.Identity.SenderEmail)
	assert.Equal(t, defaultWebsite, c.Identity.Website)
}
