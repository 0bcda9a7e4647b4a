package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/relaydesk/relaydesk/internal/api/http/handlers"
	"github.com/relaydesk/relaydesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health          *handlers.HealthHandler
	Ingest          *handlers.IngestHandler
	Channels        *handlers.ChannelsHandler
	Workflows       *handlers.WorkflowHandler
	Agents          *handlers.AgentsHandler
	IngestAuth      *auth.IngestMiddleware
	AgentMiddleware *auth.AgentMiddleware
}

// RegisterRoutes wires HTTP routes. Channel webhooks and the normalized
// ingest endpoint share the ingest token; workflow management requires an
// agent JWT.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	ingestGroup := app.Group("", cfg.IngestAuth.Handle)
	ingestGroup.Post("/ingest", cfg.Ingest.Ingest)
	ingestGroup.Post("/channels/email", cfg.Channels.Email)
	ingestGroup.Post("/channels/sms", cfg.Channels.SMS)
	ingestGroup.Post("/channels/sms/status", cfg.Channels.SMSStatus)
	ingestGroup.Post("/channels/slack", cfg.Channels.Slack)
	ingestGroup.Post("/channels/widget", cfg.Channels.Widget)
	ingestGroup.Post("/customers/merge", cfg.Ingest.MergeCustomers)

	ingestGroup.Post("/agents", cfg.Agents.CreateAgent)
	ingestGroup.Post("/agents/:id/token", cfg.Agents.IssueToken)

	workflowGroup := app.Group("/workflows", cfg.AgentMiddleware.Handle)
	workflowGroup.Get("/", cfg.Workflows.ListRules)
	workflowGroup.Post("/", cfg.Workflows.CreateRule)
	workflowGroup.Put("/:id", cfg.Workflows.UpdateRule)
	workflowGroup.Post("/test", cfg.Workflows.TestRule)
}
