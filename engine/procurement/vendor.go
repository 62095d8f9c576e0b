package procurement

import (
	"context"

	"github.com/procuremind/procuremind/engine/schema"
)

// CreateVendor inserts v and sets its ID.
func (r *Repository) CreateVendor(ctx context.Context, v *Vendor) error {
	if err := validateRecord(v); err != nil {
		return err
	}
	id, err := r.insert(ctx, schema.TableVendors, vendorValues(v))
	if err != nil {
		return err
	}
	v.ID = id
	return nil
}

func vendorValues(v *Vendor) map[string]any {
	return map[string]any{
		"name":          v.Name,
		"contact_email": v.ContactEmail,
		"contact_phone": v.ContactPhone,
		"meta":          v.Meta,
	}
}

// GetVendor retrieves a vendor by ID.
func (r *Repository) GetVendor(ctx context.Context, id int64) (*Vendor, error) {
	return getByID[Vendor](ctx, r, schema.TableVendors, id, ErrVendorNotFound)
}

// UpdateVendor stores every field of v.
func (r *Repository) UpdateVendor(ctx context.Context, v *Vendor) error {
	if err := validateRecord(v); err != nil {
		return err
	}
	return r.update(ctx, schema.TableVendors, v.ID, vendorValues(v), ErrVendorNotFound)
}
