package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/relaydesk/relaydesk/internal/domain"
)

// WorkflowRuleRepository manages automation rule persistence. Rules are
// evaluated read-only by the engine; only the CRUD surface writes them.
type WorkflowRuleRepository interface {
	Create(ctx context.Context, rule *domain.WorkflowRule) error
	Update(ctx context.Context, rule *domain.WorkflowRule) error
	GetByID(ctx context.Context, id string) (*domain.WorkflowRule, error)
	List(ctx context.Context) ([]domain.WorkflowRule, error)
	ListActiveByTrigger(ctx context.Context, trigger domain.TriggerEvent) ([]domain.WorkflowRule, error)
}

type workflowRuleRepository struct {
	pool *pgxpool.Pool
}

// NewWorkflowRuleRepository instantiates repository.
func NewWorkflowRuleRepository(pool *pgxpool.Pool) WorkflowRuleRepository {
	return &workflowRuleRepository{pool: pool}
}

const ruleColumns = `id, name, is_active, trigger_event, conditions, actions, priority, created_at`

func (r *workflowRuleRepository) Create(ctx context.Context, rule *domain.WorkflowRule) error {
	conditions, actions, err := marshalRuleShapes(rule)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO workflow_rules (name, is_active, trigger_event, conditions, actions, priority)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		rule.Name,
		rule.IsActive,
		rule.TriggerEvent,
		conditions,
		actions,
		rule.Priority,
	).Scan(&rule.ID, &rule.CreatedAt)
}

func (r *workflowRuleRepository) Update(ctx context.Context, rule *domain.WorkflowRule) error {
	conditions, actions, err := marshalRuleShapes(rule)
	if err != nil {
		return err
	}
	const query = `
        UPDATE workflow_rules SET name=$1, is_active=$2, trigger_event=$3, conditions=$4, actions=$5, priority=$6
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		rule.Name,
		rule.IsActive,
		rule.TriggerEvent,
		conditions,
		actions,
		rule.Priority,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *workflowRuleRepository) GetByID(ctx context.Context, id string) (*domain.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM workflow_rules WHERE id=$1`
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &rules[0], nil
}

func (r *workflowRuleRepository) List(ctx context.Context) ([]domain.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM workflow_rules ORDER BY priority DESC, created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

// ListActiveByTrigger loads the evaluation set: active rules for a trigger,
// highest priority first, earliest created breaking ties.
func (r *workflowRuleRepository) ListActiveByTrigger(ctx context.Context, trigger domain.TriggerEvent) ([]domain.WorkflowRule, error) {
	query := `SELECT ` + ruleColumns + `
        FROM workflow_rules WHERE is_active=TRUE AND trigger_event=$1
        ORDER BY priority DESC, created_at ASC`
	rows, err := r.pool.Query(ctx, query, trigger)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRules(rows)
}

func marshalRuleShapes(rule *domain.WorkflowRule) ([]byte, []byte, error) {
	if rule.Conditions == nil {
		rule.Conditions = []domain.RuleCondition{}
	}
	if rule.Actions == nil {
		rule.Actions = []domain.RuleAction{}
	}
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, err
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, err
	}
	return conditions, actions, nil
}

func scanRules(rows pgx.Rows) ([]domain.WorkflowRule, error) {
	var result []domain.WorkflowRule
	for rows.Next() {
		var rule domain.WorkflowRule
		var conditions, actions []byte
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.IsActive,
			&rule.TriggerEvent,
			&conditions,
			&actions,
			&rule.Priority,
			&rule.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, err
		}
		result = append(result, rule)
	}
	return result, rows.Err()
}
