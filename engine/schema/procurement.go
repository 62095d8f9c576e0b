package schema

import "fmt"

// Table names of the procurement registry.
const (
	TableProjects       = "projects"
	TableBOQItems       = "boq_items"
	TableRateSources    = "rate_sources"
	TableRateCache      = "rate_cache"
	TableVendors        = "vendors"
	TableRFQs           = "rfqs"
	TableQuotes         = "quotes"
	TableAgentRuns      = "agent_runs"
	TableClarifications = "clarifications"
)

// DefaultRFQStatus is the status a new RFQ starts in.
const DefaultRFQStatus = "draft"

func id() Column {
	return Column{Name: "id", Type: Integer, PrimaryKey: true}
}

func ref(name, table, onDelete string) Column {
	return Column{
		Name:       name,
		Type:       Integer,
		References: &ForeignKey{Table: table, Column: "id", OnDelete: onDelete},
	}
}

func str(name string, size int, nullable bool) Column {
	return Column{Name: name, Type: String, Size: size, Nullable: nullable}
}

func nullable(name string, t ColumnType) Column {
	return Column{Name: name, Type: t, Nullable: true}
}

func createdNow(name string) Column {
	return Column{Name: name, Type: DateTime, DefaultNow: true}
}

// ProcurementTables returns the table definitions of the procurement domain
// in dependency order.
func ProcurementTables() []Table {
	return []Table{
		{
			Name: TableProjects,
			Columns: []Column{
				id(),
				str("name", 200, false),
				nullable("brief", Text),
				createdNow("created_at"),
			},
		},
		{
			Name: TableBOQItems,
			Columns: []Column{
				id(),
				ref("project_id", TableProjects, Cascade),
				str("item_name", 300, false),
				str("unit", 64, true),
				nullable("quantity", Float),
				nullable("unit_rate", Float),
				nullable("confidence", Float),
				nullable("metadata", JSON),
			},
		},
		{
			Name: TableRateSources,
			Columns: []Column{
				id(),
				str("name", 200, false),
				str("source_type", 64, true),
				str("url", 1000, true),
				nullable("credibility", Float),
			},
		},
		{
			Name: TableRateCache,
			Columns: []Column{
				id(),
				str("item", 300, false),
				nullable("median", Float),
				nullable("confidence", Float),
				str("source_url", 1000, true),
				createdNow("retrieved_at"),
				nullable("raw_samples", JSON),
			},
			Indexes: []Index{{Name: "ix_rate_cache_item", Columns: []string{"item"}}},
		},
		{
			Name: TableVendors,
			Columns: []Column{
				id(),
				str("name", 200, false),
				str("contact_email", 200, true),
				str("contact_phone", 50, true),
				nullable("meta", JSON),
			},
		},
		{
			Name: TableRFQs,
			Columns: []Column{
				id(),
				ref("project_id", TableProjects, ""),
				ref("vendor_id", TableVendors, ""),
				{Name: "status", Type: String, Size: 64, Default: "'" + DefaultRFQStatus + "'"},
				nullable("sent_at", DateTime),
				nullable("payload", JSON),
			},
		},
		{
			Name: TableQuotes,
			Columns: []Column{
				id(),
				ref("rfq_id", TableRFQs, ""),
				ref("vendor_id", TableVendors, ""),
				nullable("amount", Float),
				nullable("received_at", DateTime),
				nullable("meta", JSON),
			},
		},
		{
			Name: TableAgentRuns,
			Columns: []Column{
				id(),
				str("agent_name", 200, false),
				nullable("input", JSON),
				nullable("output", JSON),
				createdNow("created_at"),
			},
		},
		{
			Name: TableClarifications,
			Columns: []Column{
				id(),
				ref("project_id", TableProjects, ""),
				{Name: "question_text", Type: Text},
				nullable("options", JSON),
				str("response", 200, true),
				nullable("asked_at", DateTime),
			},
		},
	}
}

// Default returns the procurement registry.
func Default() *Registry {
	r, err := NewRegistry(ProcurementTables()...)
	if err != nil {
		panic(fmt.Sprintf("schema: procurement registry: %v", err))
	}
	return r
}
