package auth

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/repository"
	apperrors "github.com/relaydesk/relaydesk/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated agent.
type Principal struct {
	Agent *domain.Agent
}

// AgentMiddleware validates agent bearer tokens on management routes.
type AgentMiddleware struct {
	tokens *TokenManager
	agents repository.AgentRepository
}

// NewAgentMiddleware constructs middleware.
func NewAgentMiddleware(tokens *TokenManager, agents repository.AgentRepository) *AgentMiddleware {
	return &AgentMiddleware{tokens: tokens, agents: agents}
}

// Handle enforces agent authentication for protected routes.
func (m *AgentMiddleware) Handle(c *fiber.Ctx) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	agent, err := m.agents.GetByID(c.Context(), claims.AgentID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("agent not found")
		}
		return apperrors.MapError(err)
	}
	if !agent.Active {
		return apperrors.NewForbidden("agent deactivated")
	}

	c.Locals(principalKey, &Principal{Agent: agent})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated agent.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// IngestMiddleware authenticates channel adapters with a shared bearer
// token. The hashed form is preferred; the plaintext comparison covers
// development setups without a pre-hashed secret.
type IngestMiddleware struct {
	cfg config.AuthConfig
}

// NewIngestMiddleware constructs middleware.
func NewIngestMiddleware(cfg config.AuthConfig) *IngestMiddleware {
	return &IngestMiddleware{cfg: cfg}
}

// Handle verifies the shared ingest token. Routes stay open when neither
// token form is configured, which is the local-development default.
func (m *IngestMiddleware) Handle(c *fiber.Ctx) error {
	if m.cfg.IngestTokenHash == "" && m.cfg.IngestToken == "" {
		return c.Next()
	}

	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	if m.cfg.IngestTokenHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(m.cfg.IngestTokenHash), []byte(token)) != nil {
			return apperrors.NewUnauthorized("invalid ingest token")
		}
		return c.Next()
	}

	if subtle.ConstantTimeCompare([]byte(m.cfg.IngestToken), []byte(token)) != 1 {
		return apperrors.NewUnauthorized("invalid ingest token")
	}
	return c.Next()
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return parts[1], nil
}

// HashIngestToken hashes a plaintext ingest token for INGEST_TOKEN_HASH.
func HashIngestToken(token string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
