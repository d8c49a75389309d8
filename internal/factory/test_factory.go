package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/mcoot/partytasks/internal/dependencies/mocks"
	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
	"github.com/mcoot/partytasks/internal/storage/memory"
	"github.com/mcoot/partytasks/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithStore(memory.New())
}

// NewTestAppWithStore creates a test App over the given store
func NewTestAppWithStore(store storage.Store) *TestApp {
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// SeedTemplates stores n templates task-1..task-n
func (t *TestApp) SeedTemplates(ctx context.Context, n int) error {
	templates := make([]*model.TaskTemplate, 0, n)
	for i := 1; i <= n; i++ {
		templates = append(templates, &model.TaskTemplate{
			ID:   model.TaskID(fmt.Sprintf("task-%d", i)),
			Text: fmt.Sprintf("Ask {target} about thing %d", i),
		})
	}
	return t.Store.SaveTaskTemplates(ctx, templates)
}
