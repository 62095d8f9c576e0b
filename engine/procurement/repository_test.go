package procurement

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/procuremind/procuremind/engine/infra/store"
	"github.com/procuremind/procuremind/engine/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFactory(t *testing.T) *store.SyncFactory {
	t.Helper()
	ctx := context.Background()
	url := "sqlite:///" + filepath.Join(t.TempDir(), "procuremind.db")
	f, err := store.NewSyncFactory(ctx, store.Options{
		Strategies: []store.Strategy[string]{store.StaticStrategy("test", url)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close(context.Background()) })
	require.NoError(t, f.InitSchema(ctx, schema.Default()))
	return f
}

// inSession runs fn in a committed scope and fails the test on error.
func inSession(t *testing.T, f *store.SyncFactory, fn func(ctx context.Context, repo *Repository) error) {
	t.Helper()
	require.NoError(t, f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
		return fn(ctx, NewRepository(s))
	}))
}

func ptr[T any](v T) *T { return &v }

func createProject(t *testing.T, f *store.SyncFactory, name string) *Project {
	t.Helper()
	p := &Project{Name: name}
	inSession(t, f, func(ctx context.Context, repo *Repository) error {
		return repo.CreateProject(ctx, p)
	})
	return p
}

func TestEntityColumns(t *testing.T) {
	entities := map[string]any{
		schema.TableProjects:       Project{},
		schema.TableBOQItems:       BOQItem{},
		schema.TableRateSources:    RateSource{},
		schema.TableRateCache:      RateCache{},
		schema.TableVendors:        Vendor{},
		schema.TableRFQs:           RFQ{},
		schema.TableQuotes:         Quote{},
		schema.TableAgentRuns:      AgentRun{},
		schema.TableClarifications: ClarificationQuestion{},
	}
	for table, entity := range entities {
		t.Run("Should map every column of "+table, func(t *testing.T) {
			typ := reflect.TypeOf(entity)
			tags := make([]string, 0, typ.NumField())
			for i := range typ.NumField() {
				tags = append(tags, typ.Field(i).Tag.Get("db"))
			}
			assert.Equal(t, columns(table), tags)
		})
	}
}

func TestProjects(t *testing.T) {
	t.Run("Should create, read, update and list projects", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Warehouse")
		assert.NotZero(t, p.ID)
		assert.False(t, p.CreatedAt.IsZero())
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			got, err := repo.GetProject(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Warehouse", got.Name)
			assert.Nil(t, got.Brief)
			assert.WithinDuration(t, p.CreatedAt, got.CreatedAt, time.Second)

			got.Brief = ptr("Two storeys")
			require.NoError(t, repo.UpdateProject(ctx, got))
			all, err := repo.ListProjects(ctx)
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "Two storeys", *all[0].Brief)
			return nil
		})
	})

	t.Run("Should reject projects without a name", func(t *testing.T) {
		f := newFactory(t)
		err := f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
			return NewRepository(s).CreateProject(ctx, &Project{})
		})
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("Should report missing projects", func(t *testing.T) {
		f := newFactory(t)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			_, err := repo.GetProject(ctx, 404)
			assert.ErrorIs(t, err, ErrProjectNotFound)
			assert.ErrorIs(t, repo.UpdateProject(ctx, &Project{ID: 404, Name: "x"}), ErrProjectNotFound)
			assert.ErrorIs(t, repo.DeleteProject(ctx, 404), ErrProjectNotFound)
			return nil
		})
	})

	t.Run("Should cascade BOQ items when deleting a project", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Temporary")
		var itemID int64
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			item := &BOQItem{ProjectID: p.ID, ItemName: "Rebar"}
			require.NoError(t, repo.AddItem(ctx, item))
			itemID = item.ID
			return repo.DeleteProject(ctx, p.ID)
		})
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			_, err := repo.GetItem(ctx, itemID)
			assert.ErrorIs(t, err, ErrBOQItemNotFound)
			return nil
		})
	})

	t.Run("Should delete projects without items", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Empty")
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			return repo.DeleteProject(ctx, p.ID)
		})
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			_, err := repo.GetProject(ctx, p.ID)
			assert.ErrorIs(t, err, ErrProjectNotFound)
			return nil
		})
	})

	t.Run("Should store creation times in UTC", func(t *testing.T) {
		f := newFactory(t)
		ist := time.FixedZone("IST", 5*3600+1800)
		created := time.Date(2025, 1, 1, 15, 30, 0, 0, ist)
		p := &Project{Name: "Zoned", CreatedAt: created}
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			return repo.CreateProject(ctx, p)
		})
		assert.Equal(t, time.UTC, p.CreatedAt.Location())
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			got, err := repo.GetProject(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, created.Equal(got.CreatedAt))
			assert.Equal(t, 10, got.CreatedAt.UTC().Hour())
			return nil
		})
	})

	t.Run("Should keep projects that RFQs reference", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Referenced")
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			v := &Vendor{Name: "Acme"}
			require.NoError(t, repo.CreateVendor(ctx, v))
			return repo.CreateRFQ(ctx, &RFQ{ProjectID: p.ID, VendorID: v.ID})
		})
		err := f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
			return NewRepository(s).DeleteProject(ctx, p.ID)
		})
		require.ErrorIs(t, err, ErrProjectInUse)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			_, err := repo.GetProject(ctx, p.ID)
			return err
		})
	})

	t.Run("Should read a project back with its items", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "With items")
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			for _, name := range []string{"Sand", "Gravel"} {
				require.NoError(t, repo.AddItem(ctx, &BOQItem{ProjectID: p.ID, ItemName: name}))
			}
			got, err := repo.ProjectWithItems(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, p.ID, got.Project.ID)
			require.Len(t, got.Items, 2)
			assert.Equal(t, "Sand", got.Items[0].ItemName)
			assert.Equal(t, "Gravel", got.Items[1].ItemName)
			return nil
		})
	})
}

func TestBOQItems(t *testing.T) {
	t.Run("Should round trip every field including metadata", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Items")
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			item := &BOQItem{
				ProjectID:  p.ID,
				ItemName:   "Cement OPC 53",
				Unit:       ptr("bag"),
				Quantity:   ptr(12.5),
				UnitRate:   ptr(415.0),
				Confidence: ptr(0.8),
				Metadata:   JSONMap{"grade": "53", "bags_per_pallet": 50},
			}
			require.NoError(t, repo.AddItem(ctx, item))
			got, err := repo.GetItem(ctx, item.ID)
			require.NoError(t, err)
			assert.Equal(t, "bag", *got.Unit)
			assert.InDelta(t, 12.5, *got.Quantity, 1e-9)
			assert.InDelta(t, 415.0, *got.UnitRate, 1e-9)
			assert.Equal(t, JSONMap{"grade": "53", "bags_per_pallet": float64(50)}, got.Metadata)

			got.Quantity = ptr(20.0)
			got.Metadata = nil
			require.NoError(t, repo.UpdateItem(ctx, got))
			updated, err := repo.GetItem(ctx, item.ID)
			require.NoError(t, err)
			assert.InDelta(t, 20.0, *updated.Quantity, 1e-9)
			assert.Nil(t, updated.Metadata)

			require.NoError(t, repo.DeleteItem(ctx, item.ID))
			assert.ErrorIs(t, repo.DeleteItem(ctx, item.ID), ErrBOQItemNotFound)
			return nil
		})
	})

	t.Run("Should report a zero project id as a dangling reference", func(t *testing.T) {
		f := newFactory(t)
		err := f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
			return NewRepository(s).AddItem(ctx, &BOQItem{ItemName: "Unassigned"})
		})
		require.ErrorIs(t, err, ErrInvalidReference)
		assert.NotErrorIs(t, err, ErrInvalid)
	})

	t.Run("Should reject items for unknown projects", func(t *testing.T) {
		f := newFactory(t)
		err := f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
			return NewRepository(s).AddItem(ctx, &BOQItem{ProjectID: 999, ItemName: "Orphan"})
		})
		require.ErrorIs(t, err, ErrInvalidReference)
		assert.True(t, store.IsForeignKeyViolation(err))
	})
}

func TestRates(t *testing.T) {
	t.Run("Should keep rate sources", func(t *testing.T) {
		f := newFactory(t)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			src := &RateSource{Name: "CPWD DSR", SourceType: ptr("cpwd"), Credibility: ptr(0.9)}
			require.NoError(t, repo.CreateRateSource(ctx, src))
			got, err := repo.GetRateSource(ctx, src.ID)
			require.NoError(t, err)
			assert.Equal(t, "cpwd", *got.SourceType)
			all, err := repo.ListRateSources(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
			return nil
		})
	})

	t.Run("Should look up the newest rate for an item", func(t *testing.T) {
		f := newFactory(t)
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			require.NoError(t, repo.PutRate(ctx, &RateCache{Item: "Cement", Median: ptr(400.0), RetrievedAt: base}))
			require.NoError(t, repo.PutRate(ctx, &RateCache{
				Item:        "Cement",
				Median:      ptr(430.0),
				RetrievedAt: base.Add(24 * time.Hour),
				RawSamples:  JSONMap{"samples": []any{420.0, 440.0}},
			}))
			require.NoError(t, repo.PutRate(ctx, &RateCache{Item: "Sand", Median: ptr(50.0), RetrievedAt: base.Add(48 * time.Hour)}))
			got, err := repo.LookupRate(ctx, "Cement")
			require.NoError(t, err)
			assert.InDelta(t, 430.0, *got.Median, 1e-9)
			assert.Equal(t, JSONMap{"samples": []any{420.0, 440.0}}, got.RawSamples)
			_, err = repo.LookupRate(ctx, "Steel")
			assert.ErrorIs(t, err, ErrRateNotFound)
			return nil
		})
	})
}

func TestRatesAcrossZones(t *testing.T) {
	t.Run("Should return the newest rate when observations carry different zones", func(t *testing.T) {
		f := newFactory(t)
		ist := time.FixedZone("IST", 5*3600+1800)
		older := time.Date(2025, 1, 1, 15, 30, 0, 0, ist)
		newer := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			require.NoError(t, repo.PutRate(ctx, &RateCache{Item: "Cement", Median: ptr(400.0), RetrievedAt: older}))
			require.NoError(t, repo.PutRate(ctx, &RateCache{Item: "Cement", Median: ptr(430.0), RetrievedAt: newer}))
			return nil
		})
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			got, err := repo.LookupRate(ctx, "Cement")
			require.NoError(t, err)
			assert.InDelta(t, 430.0, *got.Median, 1e-9)
			assert.True(t, newer.Equal(got.RetrievedAt))
			return nil
		})
	})

	t.Run("Should normalize optional timestamps", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Zoned RFQ")
		ny := time.FixedZone("EST", -5*3600)
		sentAt := time.Date(2025, 3, 1, 4, 30, 0, 0, ny)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			v := &Vendor{Name: "Acme"}
			require.NoError(t, repo.CreateVendor(ctx, v))
			rfq := &RFQ{ProjectID: p.ID, VendorID: v.ID, SentAt: &sentAt}
			require.NoError(t, repo.CreateRFQ(ctx, rfq))
			assert.Equal(t, time.UTC, rfq.SentAt.Location())
			got, err := repo.GetRFQ(ctx, rfq.ID)
			require.NoError(t, err)
			require.NotNil(t, got.SentAt)
			assert.True(t, sentAt.Equal(*got.SentAt))
			return nil
		})
	})
}

func TestVendorsRFQsAndQuotes(t *testing.T) {
	t.Run("Should drive an RFQ from draft to quotes", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Tender")
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			v := &Vendor{Name: "Acme", ContactEmail: ptr("sales@acme.example")}
			require.NoError(t, repo.CreateVendor(ctx, v))
			v.ContactPhone = ptr("+91 80 1234 5678")
			require.NoError(t, repo.UpdateVendor(ctx, v))
			gotVendor, err := repo.GetVendor(ctx, v.ID)
			require.NoError(t, err)
			assert.Equal(t, "+91 80 1234 5678", *gotVendor.ContactPhone)

			rfq := &RFQ{ProjectID: p.ID, VendorID: v.ID, Payload: JSONMap{"items": []any{"Cement"}}}
			require.NoError(t, repo.CreateRFQ(ctx, rfq))
			assert.Equal(t, "draft", rfq.Status)

			require.NoError(t, repo.SetRFQStatus(ctx, rfq.ID, "awaiting-approval"))
			got, err := repo.GetRFQ(ctx, rfq.ID)
			require.NoError(t, err)
			assert.Equal(t, "awaiting-approval", got.Status)

			sentAt := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
			require.NoError(t, repo.MarkRFQSent(ctx, rfq.ID, sentAt))
			got, err = repo.GetRFQ(ctx, rfq.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusSent, got.Status)
			require.NotNil(t, got.SentAt)
			assert.True(t, sentAt.Equal(*got.SentAt))

			for _, amount := range []*float64{ptr(500.0), nil, ptr(450.0)} {
				require.NoError(t, repo.CreateQuote(ctx, &Quote{RFQID: rfq.ID, VendorID: v.ID, Amount: amount}))
			}
			quotes, err := repo.ListQuotes(ctx, rfq.ID)
			require.NoError(t, err)
			require.Len(t, quotes, 3)
			assert.InDelta(t, 450.0, *quotes[0].Amount, 1e-9)
			assert.InDelta(t, 500.0, *quotes[1].Amount, 1e-9)
			assert.Nil(t, quotes[2].Amount)

			rfqs, err := repo.ListRFQs(ctx, p.ID)
			require.NoError(t, err)
			assert.Len(t, rfqs, 1)
			return nil
		})
	})

	t.Run("Should keep free-form contact details", func(t *testing.T) {
		f := newFactory(t)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			v := &Vendor{Name: "Acme", ContactEmail: ptr("sales desk, ask for Ravi")}
			require.NoError(t, repo.CreateVendor(ctx, v))
			got, err := repo.GetVendor(ctx, v.ID)
			require.NoError(t, err)
			assert.Equal(t, "sales desk, ask for Ravi", *got.ContactEmail)
			return nil
		})
	})

	t.Run("Should reject contact emails longer than the column", func(t *testing.T) {
		f := newFactory(t)
		long := strings.Repeat("a", 201)
		err := f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
			return NewRepository(s).CreateVendor(ctx, &Vendor{Name: "Acme", ContactEmail: &long})
		})
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("Should reject quotes for unknown RFQs", func(t *testing.T) {
		f := newFactory(t)
		err := f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
			repo := NewRepository(s)
			v := &Vendor{Name: "Acme"}
			if err := repo.CreateVendor(ctx, v); err != nil {
				return err
			}
			return repo.CreateQuote(ctx, &Quote{RFQID: 77, VendorID: v.ID})
		})
		require.ErrorIs(t, err, ErrInvalidReference)
	})
}

func TestAgentRunsAndClarifications(t *testing.T) {
	t.Run("Should list an agent's runs newest first", func(t *testing.T) {
		f := newFactory(t)
		base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			for i := range 3 {
				require.NoError(t, repo.RecordRun(ctx, &AgentRun{
					AgentName: "rate-finder",
					Input:     JSONMap{"step": i},
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}))
			}
			require.NoError(t, repo.RecordRun(ctx, &AgentRun{AgentName: "boq-parser"}))
			runs, err := repo.ListRuns(ctx, "rate-finder")
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, float64(2), runs[0].Input["step"])
			got, err := repo.GetRun(ctx, runs[2].ID)
			require.NoError(t, err)
			assert.Equal(t, float64(0), got.Input["step"])
			return nil
		})
	})

	t.Run("Should sort database-stamped runs with runs stamped in Go", func(t *testing.T) {
		f := newFactory(t)
		now := time.Now().UTC()
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			require.NoError(t, repo.RecordRun(ctx, &AgentRun{
				AgentName: "rate-finder",
				Input:     JSONMap{"when": "past"},
				CreatedAt: now.Add(-48 * time.Hour),
			}))
			_, err := repo.session.Exec(ctx, "INSERT INTO agent_runs (agent_name) VALUES (?)", "rate-finder")
			require.NoError(t, err)
			return repo.RecordRun(ctx, &AgentRun{
				AgentName: "rate-finder",
				Input:     JSONMap{"when": "future"},
				CreatedAt: now.Add(48 * time.Hour),
			})
		})
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			runs, err := repo.ListRuns(ctx, "rate-finder")
			require.NoError(t, err)
			require.Len(t, runs, 3)
			assert.Equal(t, "future", runs[0].Input["when"])
			assert.Nil(t, runs[1].Input)
			assert.WithinDuration(t, now, runs[1].CreatedAt, time.Hour)
			assert.Equal(t, "past", runs[2].Input["when"])
			return nil
		})
	})

	t.Run("Should ask and answer clarifications", func(t *testing.T) {
		f := newFactory(t)
		p := createProject(t, f, "Questions")
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			q := &ClarificationQuestion{
				ProjectID:    p.ID,
				QuestionText: "Which cement grade?",
				Options:      StringList{"OPC 43", "OPC 53"},
			}
			require.NoError(t, repo.AskClarification(ctx, q))
			require.NotNil(t, q.AskedAt)
			require.NoError(t, repo.AnswerClarification(ctx, q.ID, "OPC 53"))
			got, err := repo.GetClarification(ctx, q.ID)
			require.NoError(t, err)
			assert.Equal(t, StringList{"OPC 43", "OPC 53"}, got.Options)
			assert.Equal(t, "OPC 53", *got.Response)
			all, err := repo.ListClarifications(ctx, p.ID)
			require.NoError(t, err)
			assert.Len(t, all, 1)
			assert.ErrorIs(t, repo.AnswerClarification(ctx, 404, "x"), ErrClarificationNotFound)
			return nil
		})
	})
}

func TestSeed(t *testing.T) {
	t.Run("Should persist the demo project and item", func(t *testing.T) {
		f := newFactory(t)
		var projectID int64
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			p, _, err := Seed(ctx, repo)
			if err != nil {
				return err
			}
			projectID = p.ID
			return nil
		})
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			got, err := repo.ProjectWithItems(ctx, projectID)
			require.NoError(t, err)
			assert.Equal(t, "Demo Project", got.Project.Name)
			assert.Equal(t, "One-line brief for demo", *got.Project.Brief)
			require.Len(t, got.Items, 1)
			item := got.Items[0]
			assert.Equal(t, "Cement OPC 43", item.ItemName)
			assert.Equal(t, "bag", *item.Unit)
			assert.InDelta(t, 100.0, *item.Quantity, 1e-9)
			assert.InDelta(t, 430.0, *item.UnitRate, 1e-9)
			assert.InDelta(t, 0.93, *item.Confidence, 1e-9)
			assert.Nil(t, item.Metadata)
			return nil
		})
	})

	t.Run("Should leave nothing behind when the scope fails", func(t *testing.T) {
		f := newFactory(t)
		abort := errors.New("abort")
		err := f.WithSession(context.Background(), func(ctx context.Context, s store.Session) error {
			if _, _, err := Seed(ctx, NewRepository(s)); err != nil {
				return err
			}
			return abort
		})
		require.ErrorIs(t, err, abort)
		inSession(t, f, func(ctx context.Context, repo *Repository) error {
			all, err := repo.ListProjects(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
			return nil
		})
	})
}
