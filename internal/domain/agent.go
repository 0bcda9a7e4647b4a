package domain

import "time"

// Agent is a human support agent, the target of assignment actions and
// workflow notifications.
type Agent struct {
	ID        string
	Name      string
	Email     string
	Team      *string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
