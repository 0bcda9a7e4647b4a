package workflow

import (
	"strings"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// RenderTemplate substitutes {{ticket.*}} and {{customer.*}} placeholders
// in a message template. Unknown placeholders are left untouched so a typo
// is visible in the rendered output instead of silently vanishing.
func RenderTemplate(template string, ticket *domain.Ticket, customer *domain.Customer) string {
	replacements := make([]string, 0, 20)

	if ticket != nil {
		replacements = append(replacements,
			"{{ticket.id}}", ticket.ID,
			"{{ticket.external_key}}", ticket.ExternalKey,
			"{{ticket.subject}}", ticket.Subject,
			"{{ticket.status}}", string(ticket.Status),
			"{{ticket.priority}}", string(ticket.Priority),
		)
	}
	if customer != nil {
		replacements = append(replacements,
			"{{customer.id}}", customer.ID,
			"{{customer.name}}", customer.DisplayName(),
		)
		if customer.Email != nil {
			replacements = append(replacements, "{{customer.email}}", *customer.Email)
		}
	}

	return strings.NewReplacer(replacements...).Replace(template)
}
