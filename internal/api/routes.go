// Package api registers the HTTP surface: public marketing, tracking and webhook routes, and the
// password-protected dashboard API under /api.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/sersweai/leadcrm/internal/api/handlers"
	apmiddleware "github.com/sersweai/leadcrm/internal/api/middleware"
	"github.com/sersweai/leadcrm/internal/domain/crm"
	"github.com/sersweai/leadcrm/internal/domain/leadimport"
	"github.com/sersweai/leadcrm/internal/domain/outreach"
	"github.com/sersweai/leadcrm/internal/infra/config"
	"github.com/sersweai/leadcrm/internal/infra/database"
	"github.com/sersweai/leadcrm/internal/infra/eventbus"
	"github.com/sersweai/leadcrm/internal/infra/mailer"
	pkgauth "github.com/sersweai/leadcrm/pkg/auth"
)

// Deps are the long-lived collaborators the router wires into handlers.
// Mailer may be nil; sends then fail with "Mail provider not configured".
type Deps struct {
	DB       *database.DB
	Config   config.Config
	Mailer   mailer.Mailer
	Bus      eventbus.EventBus
	Logger   *zap.Logger
	Location *time.Location
}

// NewRouter creates the chi router with every route registered.
func NewRouter(deps Deps) *chi.Mux {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.Nop{}
	}
	cfg := deps.Config

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.AccessLog(deps.Logger))
	r.Use(middleware.Recoverer)

	// Domain services
	leadService := crm.NewLeadService(deps.DB)
	emailService := crm.NewEmailService(deps.DB)
	eventService := crm.NewEventService(deps.DB)
	catalog := outreach.NewCatalog(cfg)
	sender := outreach.NewSender(leadService, emailService, deps.Mailer,
		outreach.NewRenderer(catalog, cfg.BaseURL), catalog, deps.Bus,
		outreach.Policy{
			DailyLimit: cfg.DailySendLimit,
			Location:   deps.Location,
			From:       mailer.FormatAddress(cfg.SenderName, cfg.FromEmail),
			ReplyTo:    cfg.ReplyTo,
		}, deps.Logger.Named("outreach"))
	notifier := outreach.NewContactNotifier(deps.Mailer, cfg.SenderEmail, cfg.NotifyEmail, cfg.BaseURL,
		deps.Logger.Named("notify"))
	importer := leadimport.NewImporter(leadService, deps.Bus, deps.Logger.Named("import"))
	verifier := pkgauth.NewVerifier(cfg.AppPassword, cfg.AppPasswordHash, cfg.SessionSecret, cfg.SessionTTL)

	// Handlers
	authHandler := handlers.NewAuthHandler(verifier)
	leadHandler := handlers.NewLeadHandler(leadService, deps.Bus)
	timelineHandler := handlers.NewTimelineHandler(crm.NewTimelineService(leadService, emailService, eventService))
	dealHandler := handlers.NewDealHandler(crm.NewDealService(deps.DB))
	contactHandler := handlers.NewContactHandler(crm.NewContactService(deps.DB), notifier, deps.Bus)
	importHandler := handlers.NewImportHandler(importer)
	sendHandler := handlers.NewSendHandler(sender)
	trackHandler := handlers.NewTrackHandler(eventService, deps.Bus, deps.Logger.Named("track"))
	webhookHandler := handlers.NewWebhookHandler(
		outreach.NewStatusUpdater(emailService, leadService, deps.Bus, deps.Logger.Named("webhook")),
		handlers.WebhookSecrets{Resend: cfg.ResendWebhookSecret, SendGrid: cfg.SendGridWebhookSecret},
		deps.Logger.Named("webhook"))
	statsHandler := handlers.NewStatsHandler(crm.NewStatsService(deps.DB))
	followUpHandler := handlers.NewFollowUpHandler(leadService)
	liveHandler := handlers.NewLiveHandler(deps.Bus, deps.Logger.Named("live"))

	// ===== PUBLIC ROUTES =====
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})
	r.Get("/", handlers.Marketing)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/contacts", contactHandler.CreateContact)

		r.Get("/track/open", trackHandler.Open)
		r.Get("/track/click", trackHandler.Click)

		r.Post("/webhooks/resend", webhookHandler.Resend)
		r.Post("/webhooks/sendgrid", webhookHandler.SendGrid)

		// Browsers cannot set headers on websocket upgrades, so the feed also takes ?token=.
		r.With(apmiddleware.AuthQuery(verifier)).Get("/live", liveHandler.Stream)

		// ===== PROTECTED ROUTES =====
		r.Group(func(r chi.Router) {
			r.Use(apmiddleware.Auth(verifier))

			r.Get("/session", authHandler.Session)

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", leadHandler.ListLeads)
				r.Get("/{id}", leadHandler.GetLead)
				r.Patch("/{id}", leadHandler.PatchLead)
				r.Get("/{id}/timeline", timelineHandler.LeadTimeline)
			})

			r.Post("/import", importHandler.Import)
			r.Post("/send", sendHandler.Send)

			r.Route("/deals", func(r chi.Router) {
				r.Get("/", dealHandler.ListDeals)
				r.Post("/", dealHandler.CreateDeal)
				r.Get("/summary", dealHandler.Summary)
				r.Patch("/{id}", dealHandler.UpdateDeal)
				r.Delete("/{id}", dealHandler.DeleteDeal)
			})

			r.Get("/contacts", contactHandler.ListContacts)
			r.Get("/stats", statsHandler.Stats)
			r.Get("/activity", statsHandler.Activity)
			r.Get("/followups", followUpHandler.ListFollowUps)
		})
	})

	return r
}
