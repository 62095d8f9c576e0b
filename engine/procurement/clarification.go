package procurement

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/procuremind/procuremind/engine/schema"
)

// AskClarification records a question about a project. A nil AskedAt is set
// to now.
func (r *Repository) AskClarification(ctx context.Context, q *ClarificationQuestion) error {
	if err := validateRecord(q); err != nil {
		return err
	}
	if q.AskedAt == nil {
		now := r.now()
		q.AskedAt = &now
	}
	q.AskedAt = utcPtr(q.AskedAt)
	id, err := r.insert(ctx, schema.TableClarifications, map[string]any{
		"project_id":    q.ProjectID,
		"question_text": q.QuestionText,
		"options":       q.Options,
		"response":      q.Response,
		"asked_at":      q.AskedAt,
	})
	if err != nil {
		return err
	}
	q.ID = id
	return nil
}

// AnswerClarification stores the response to a question.
func (r *Repository) AnswerClarification(ctx context.Context, id int64, response string) error {
	if err := validate.Var(response, "max=200"); err != nil {
		return fmt.Errorf("%w: response: %w", ErrInvalid, err)
	}
	return r.update(ctx, schema.TableClarifications, id, map[string]any{"response": response}, ErrClarificationNotFound)
}

// GetClarification retrieves a question by ID.
func (r *Repository) GetClarification(ctx context.Context, id int64) (*ClarificationQuestion, error) {
	return getByID[ClarificationQuestion](ctx, r, schema.TableClarifications, id, ErrClarificationNotFound)
}

// ListClarifications returns a project's questions in the order asked.
func (r *Repository) ListClarifications(ctx context.Context, projectID int64) ([]*ClarificationQuestion, error) {
	q := r.selectFrom(schema.TableClarifications).Where(sq.Eq{"project_id": projectID}).OrderBy("id")
	return list[ClarificationQuestion](ctx, r, q)
}
