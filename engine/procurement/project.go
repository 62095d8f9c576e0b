package procurement

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/procuremind/procuremind/engine/infra/store"
	"github.com/procuremind/procuremind/engine/schema"
)

// CreateProject inserts p and sets its ID. A zero CreatedAt is set to now.
func (r *Repository) CreateProject(ctx context.Context, p *Project) error {
	if err := validateRecord(p); err != nil {
		return err
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now()
	}
	p.CreatedAt = p.CreatedAt.UTC()
	id, err := r.insert(ctx, schema.TableProjects, map[string]any{
		"name":       p.Name,
		"brief":      p.Brief,
		"created_at": p.CreatedAt,
	})
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// GetProject retrieves a project by ID
func (r *Repository) GetProject(ctx context.Context, id int64) (*Project, error) {
	return getByID[Project](ctx, r, schema.TableProjects, id, ErrProjectNotFound)
}

// ListProjects returns every project, oldest first.
func (r *Repository) ListProjects(ctx context.Context) ([]*Project, error) {
	return list[Project](ctx, r, r.selectFrom(schema.TableProjects).OrderBy("id"))
}

// UpdateProject stores p's name and brief.
func (r *Repository) UpdateProject(ctx context.Context, p *Project) error {
	if err := validateRecord(p); err != nil {
		return err
	}
	return r.update(ctx, schema.TableProjects, p.ID, map[string]any{
		"name":  p.Name,
		"brief": p.Brief,
	}, ErrProjectNotFound)
}

// DeleteProject removes a project together with its BOQ items. Projects
// still referenced by RFQs or clarifications are kept and ErrProjectInUse
// is returned.
func (r *Repository) DeleteProject(ctx context.Context, id int64) error {
	err := r.deleteByID(ctx, schema.TableProjects, id, ErrProjectNotFound)
	if err != nil && store.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: %w", ErrProjectInUse, err)
	}
	return err
}

// ProjectWithItems reads a project back with its BOQ items.
func (r *Repository) ProjectWithItems(ctx context.Context, id int64) (*ProjectItems, error) {
	p, err := r.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProjectItems{Project: p, Items: items}, nil
}

// AddItem inserts a BOQ item for an existing project.
func (r *Repository) AddItem(ctx context.Context, item *BOQItem) error {
	if err := validateRecord(item); err != nil {
		return err
	}
	id, err := r.insert(ctx, schema.TableBOQItems, itemValues(item))
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

func itemValues(item *BOQItem) map[string]any {
	return map[string]any{
		"project_id": item.ProjectID,
		"item_name":  item.ItemName,
		"unit":       item.Unit,
		"quantity":   item.Quantity,
		"unit_rate":  item.UnitRate,
		"confidence": item.Confidence,
		"metadata":   item.Metadata,
	}
}

// GetItem retrieves a BOQ item by ID
func (r *Repository) GetItem(ctx context.Context, id int64) (*BOQItem, error) {
	return getByID[BOQItem](ctx, r, schema.TableBOQItems, id, ErrBOQItemNotFound)
}

// ListItems returns a project's BOQ items in insertion order.
func (r *Repository) ListItems(ctx context.Context, projectID int64) ([]*BOQItem, error) {
	q := r.selectFrom(schema.TableBOQItems).Where(sq.Eq{"project_id": projectID}).OrderBy("id")
	return list[BOQItem](ctx, r, q)
}

// UpdateItem stores every field of item.
func (r *Repository) UpdateItem(ctx context.Context, item *BOQItem) error {
	if err := validateRecord(item); err != nil {
		return err
	}
	return r.update(ctx, schema.TableBOQItems, item.ID, itemValues(item), ErrBOQItemNotFound)
}

// DeleteItem removes a BOQ item.
func (r *Repository) DeleteItem(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, schema.TableBOQItems, id, ErrBOQItemNotFound)
}
