package procurement

import (
	"context"
	"fmt"
)

// Demo record values inserted by Seed.
const (
	DemoProjectName  = "Demo Project"
	DemoProjectBrief = "One-line brief for demo"
	DemoItemName     = "Cement OPC 43"
	DemoItemUnit     = "bag"
)

// Seed inserts the demo project and its single BOQ item.
func Seed(ctx context.Context, repo *Repository) (*Project, *BOQItem, error) {
	brief := DemoProjectBrief
	project := &Project{Name: DemoProjectName, Brief: &brief}
	if err := repo.CreateProject(ctx, project); err != nil {
		return nil, nil, fmt.Errorf("seeding demo project: %w", err)
	}
	unit := DemoItemUnit
	quantity, rate, confidence := 100.0, 430.0, 0.93
	item := &BOQItem{
		ProjectID:  project.ID,
		ItemName:   DemoItemName,
		Unit:       &unit,
		Quantity:   &quantity,
		UnitRate:   &rate,
		Confidence: &confidence,
	}
	if err := repo.AddItem(ctx, item); err != nil {
		return nil, nil, fmt.Errorf("seeding demo item: %w", err)
	}
	return project, item, nil
}
