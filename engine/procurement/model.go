// Package procurement defines the procurement entities and a session-scoped
// repository that persists them through store.Session.
package procurement

import "time"

// Project is a procurement engagement. It owns its BOQ items.
type Project struct {
	ID        int64     `db:"id"         json:"id"`
	Name      string    `db:"name"       json:"name"            validate:"required,max=200"`
	Brief     *string   `db:"brief"      json:"brief,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BOQItem is one line of a project's bill of quantities.
type BOQItem struct {
	ID         int64    `db:"id"         json:"id"`
	ProjectID  int64    `db:"project_id" json:"project_id"`
	ItemName   string   `db:"item_name"  json:"item_name"            validate:"required,max=300"`
	Unit       *string  `db:"unit"       json:"unit,omitempty"       validate:"omitempty,max=64"`
	Quantity   *float64 `db:"quantity"   json:"quantity,omitempty"`
	UnitRate   *float64 `db:"unit_rate"  json:"unit_rate,omitempty"`
	Confidence *float64 `db:"confidence" json:"confidence,omitempty"`
	Metadata   JSONMap  `db:"metadata"   json:"metadata,omitempty"`
}

// ProjectItems is a project read back together with its BOQ items.
type ProjectItems struct {
	Project *Project   `json:"project"`
	Items   []*BOQItem `json:"items"`
}

// RateSource is a place market rates come from, e.g. a schedule of rates or
// a scraped catalogue.
type RateSource struct {
	ID          int64    `db:"id"          json:"id"`
	Name        string   `db:"name"        json:"name"                  validate:"required,max=200"`
	SourceType  *string  `db:"source_type" json:"source_type,omitempty" validate:"omitempty,max=64"`
	URL         *string  `db:"url"         json:"url,omitempty"         validate:"omitempty,max=1000"`
	Credibility *float64 `db:"credibility" json:"credibility,omitempty"`
}

// RateCache is a cached rate observation for an item name.
type RateCache struct {
	ID          int64     `db:"id"           json:"id"`
	Item        string    `db:"item"         json:"item"                 validate:"required,max=300"`
	Median      *float64  `db:"median"       json:"median,omitempty"`
	Confidence  *float64  `db:"confidence"   json:"confidence,omitempty"`
	SourceURL   *string   `db:"source_url"   json:"source_url,omitempty" validate:"omitempty,max=1000"`
	RetrievedAt time.Time `db:"retrieved_at" json:"retrieved_at"`
	RawSamples  JSONMap   `db:"raw_samples"  json:"raw_samples,omitempty"`
}

// Vendor is a supplier that receives RFQs and sends quotes.
type Vendor struct {
	ID           int64   `db:"id"            json:"id"`
	Name         string  `db:"name"          json:"name"                    validate:"required,max=200"`
	ContactEmail *string `db:"contact_email" json:"contact_email,omitempty" validate:"omitempty,max=200"`
	ContactPhone *string `db:"contact_phone" json:"contact_phone,omitempty" validate:"omitempty,max=50"`
	Meta         JSONMap `db:"meta"          json:"meta,omitempty"`
}

// RFQ is a request for quotation sent to a vendor for a project. Status is
// free text; new RFQs start as "draft".
type RFQ struct {
	ID        int64      `db:"id"         json:"id"`
	ProjectID int64      `db:"project_id" json:"project_id"`
	VendorID  int64      `db:"vendor_id"  json:"vendor_id"`
	Status    string     `db:"status"     json:"status"            validate:"max=64"`
	SentAt    *time.Time `db:"sent_at"    json:"sent_at,omitempty"`
	Payload   JSONMap    `db:"payload"    json:"payload,omitempty"`
}

// Quote is a vendor's answer to an RFQ.
type Quote struct {
	ID         int64      `db:"id"          json:"id"`
	RFQID      int64      `db:"rfq_id"      json:"rfq_id"`
	VendorID   int64      `db:"vendor_id"   json:"vendor_id"`
	Amount     *float64   `db:"amount"      json:"amount,omitempty"`
	ReceivedAt *time.Time `db:"received_at" json:"received_at,omitempty"`
	Meta       JSONMap    `db:"meta"        json:"meta,omitempty"`
}

// AgentRun records one invocation of an agent. Runs are never modified.
type AgentRun struct {
	ID        int64     `db:"id"         json:"id"`
	AgentName string    `db:"agent_name" json:"agent_name"       validate:"required,max=200"`
	Input     JSONMap   `db:"input"      json:"input,omitempty"`
	Output    JSONMap   `db:"output"     json:"output,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClarificationQuestion is a question raised about a project, optionally
// with a fixed set of answer options.
type ClarificationQuestion struct {
	ID           int64      `db:"id"            json:"id"`
	ProjectID    int64      `db:"project_id"    json:"project_id"`
	QuestionText string     `db:"question_text" json:"question_text"      validate:"required"`
	Options      StringList `db:"options"       json:"options,omitempty"`
	Response     *string    `db:"response"      json:"response,omitempty" validate:"omitempty,max=200"`
	AskedAt      *time.Time `db:"asked_at"      json:"asked_at,omitempty"`
}
