package procurement

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/procuremind/procuremind/engine/schema"
)

// RecordRun appends an agent run to the log.
func (r *Repository) RecordRun(ctx context.Context, run *AgentRun) error {
	if err := validateRecord(run); err != nil {
		return err
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.now()
	}
	run.CreatedAt = run.CreatedAt.UTC()
	id, err := r.insert(ctx, schema.TableAgentRuns, map[string]any{
		"agent_name": run.AgentName,
		"input":      run.Input,
		"output":     run.Output,
		"created_at": run.CreatedAt,
	})
	if err != nil {
		return err
	}
	run.ID = id
	return nil
}

// GetRun retrieves an agent run by ID.
func (r *Repository) GetRun(ctx context.Context, id int64) (*AgentRun, error) {
	return getByID[AgentRun](ctx, r, schema.TableAgentRuns, id, ErrAgentRunNotFound)
}

// ListRuns returns an agent's runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, agentName string) ([]*AgentRun, error) {
	q := r.selectFrom(schema.TableAgentRuns).
		Where(sq.Eq{"agent_name": agentName}).
		OrderBy("created_at DESC", "id DESC")
	return list[AgentRun](ctx, r, q)
}
