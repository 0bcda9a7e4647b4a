package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/relaydesk/relaydesk/internal/domain"
	"github.com/relaydesk/relaydesk/internal/events"
	"github.com/relaydesk/relaydesk/internal/workflow"
)

// AutomationWorker bridges the event dispatcher to the workflow engine: it
// subscribes the engine to every trigger event so published lifecycle
// events run the automation rules.
type AutomationWorker struct {
	engine *workflow.Engine
	logger *zap.Logger
}

// NewAutomationWorker creates the worker.
func NewAutomationWorker(engine *workflow.Engine, logger *zap.Logger) *AutomationWorker {
	return &AutomationWorker{engine: engine, logger: logger}
}

// Register subscribes the engine to all trigger events.
func (w *AutomationWorker) Register(dispatcher events.Dispatcher) {
	triggers := []domain.TriggerEvent{
		domain.TriggerTicketCreated,
		domain.TriggerStatusChanged,
		domain.TriggerPriorityChanged,
		domain.TriggerTicketAssigned,
		domain.TriggerSLABreach,
		domain.TriggerMessageReceived,
	}
	for _, trigger := range triggers {
		dispatcher.Subscribe(trigger, w.handle)
	}
}

func (w *AutomationWorker) handle(ctx context.Context, event events.Event) error {
	report, err := w.engine.Run(ctx, event.Type, event.Ticket, event.Customer, event.Data)
	if err != nil {
		return err
	}
	if report.RulesMatched > 0 {
		w.logger.Info("automation rules applied",
			zap.String("trigger", string(event.Type)),
			zap.String("ticket_id", report.TicketID),
			zap.Int("matched", report.RulesMatched))
	}
	return nil
}
