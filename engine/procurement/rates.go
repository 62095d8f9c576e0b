package procurement

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/procuremind/procuremind/engine/schema"
)

// CreateRateSource inserts src and sets its ID.
func (r *Repository) CreateRateSource(ctx context.Context, src *RateSource) error {
	if err := validateRecord(src); err != nil {
		return err
	}
	id, err := r.insert(ctx, schema.TableRateSources, map[string]any{
		"name":        src.Name,
		"source_type": src.SourceType,
		"url":         src.URL,
		"credibility": src.Credibility,
	})
	if err != nil {
		return err
	}
	src.ID = id
	return nil
}

// GetRateSource retrieves a rate source by ID.
func (r *Repository) GetRateSource(ctx context.Context, id int64) (*RateSource, error) {
	return getByID[RateSource](ctx, r, schema.TableRateSources, id, ErrRateSourceNotFound)
}

// ListRateSources returns every rate source in insertion order.
func (r *Repository) ListRateSources(ctx context.Context) ([]*RateSource, error) {
	return list[RateSource](ctx, r, r.selectFrom(schema.TableRateSources).OrderBy("id"))
}

// PutRate caches a new rate observation. Earlier observations of the same
// item are kept; LookupRate returns the newest.
func (r *Repository) PutRate(ctx context.Context, rate *RateCache) error {
	if err := validateRecord(rate); err != nil {
		return err
	}
	if rate.RetrievedAt.IsZero() {
		rate.RetrievedAt = r.now()
	}
	rate.RetrievedAt = rate.RetrievedAt.UTC()
	id, err := r.insert(ctx, schema.TableRateCache, map[string]any{
		"item":         rate.Item,
		"median":       rate.Median,
		"confidence":   rate.Confidence,
		"source_url":   rate.SourceURL,
		"retrieved_at": rate.RetrievedAt,
		"raw_samples":  rate.RawSamples,
	})
	if err != nil {
		return err
	}
	rate.ID = id
	return nil
}

// GetRate retrieves one cached observation by ID.
func (r *Repository) GetRate(ctx context.Context, id int64) (*RateCache, error) {
	return getByID[RateCache](ctx, r, schema.TableRateCache, id, ErrRateNotFound)
}

// LookupRate returns the most recently retrieved rate for item.
func (r *Repository) LookupRate(ctx context.Context, item string) (*RateCache, error) {
	q := r.selectFrom(schema.TableRateCache).
		Where(sq.Eq{"item": item}).
		OrderBy("retrieved_at DESC", "id DESC").
		Limit(1)
	return getOne[RateCache](ctx, r, q, ErrRateNotFound)
}
