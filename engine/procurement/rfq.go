package procurement

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/procuremind/procuremind/engine/schema"
)

// StatusSent is the status MarkRFQSent records.
const StatusSent = "sent"

// CreateRFQ inserts rfq. An empty status becomes "draft".
func (r *Repository) CreateRFQ(ctx context.Context, rfq *RFQ) error {
	if rfq.Status == "" {
		rfq.Status = schema.DefaultRFQStatus
	}
	if err := validateRecord(rfq); err != nil {
		return err
	}
	rfq.SentAt = utcPtr(rfq.SentAt)
	id, err := r.insert(ctx, schema.TableRFQs, map[string]any{
		"project_id": rfq.ProjectID,
		"vendor_id":  rfq.VendorID,
		"status":     rfq.Status,
		"sent_at":    rfq.SentAt,
		"payload":    rfq.Payload,
	})
	if err != nil {
		return err
	}
	rfq.ID = id
	return nil
}

// GetRFQ retrieves an RFQ by ID.
func (r *Repository) GetRFQ(ctx context.Context, id int64) (*RFQ, error) {
	return getByID[RFQ](ctx, r, schema.TableRFQs, id, ErrRFQNotFound)
}

// SetRFQStatus records any status text; no transition rules apply.
func (r *Repository) SetRFQStatus(ctx context.Context, id int64, status string) error {
	if err := validate.Var(status, "max=64"); err != nil {
		return fmt.Errorf("%w: status: %w", ErrInvalid, err)
	}
	return r.update(ctx, schema.TableRFQs, id, map[string]any{"status": status}, ErrRFQNotFound)
}

// MarkRFQSent sets the RFQ's status to "sent" and stamps sent_at.
func (r *Repository) MarkRFQSent(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, schema.TableRFQs, id, map[string]any{
		"status":  StatusSent,
		"sent_at": at.UTC(),
	}, ErrRFQNotFound)
}

// ListRFQs returns a project's RFQs in insertion order.
func (r *Repository) ListRFQs(ctx context.Context, projectID int64) ([]*RFQ, error) {
	q := r.selectFrom(schema.TableRFQs).Where(sq.Eq{"project_id": projectID}).OrderBy("id")
	return list[RFQ](ctx, r, q)
}

// CreateQuote records a vendor's quote against an existing RFQ.
func (r *Repository) CreateQuote(ctx context.Context, q *Quote) error {
	if err := validateRecord(q); err != nil {
		return err
	}
	q.ReceivedAt = utcPtr(q.ReceivedAt)
	id, err := r.insert(ctx, schema.TableQuotes, map[string]any{
		"rfq_id":      q.RFQID,
		"vendor_id":   q.VendorID,
		"amount":      q.Amount,
		"received_at": q.ReceivedAt,
		"meta":        q.Meta,
	})
	if err != nil {
		return err
	}
	q.ID = id
	return nil
}

// GetQuote retrieves a quote by ID.
func (r *Repository) GetQuote(ctx context.Context, id int64) (*Quote, error) {
	return getByID[Quote](ctx, r, schema.TableQuotes, id, ErrQuoteNotFound)
}

// ListQuotes returns the quotes received for an RFQ, cheapest first. Quotes
// without an amount sort last.
func (r *Repository) ListQuotes(ctx context.Context, rfqID int64) ([]*Quote, error) {
	q := r.selectFrom(schema.TableQuotes).
		Where(sq.Eq{"rfq_id": rfqID}).
		OrderBy("amount IS NULL", "amount", "id")
	return list[Quote](ctx, r, q)
}
