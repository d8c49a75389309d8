package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/mcoot/partytasks/internal/model"
	"github.com/mcoot/partytasks/internal/storage"
)

// Repository provides read access to the task template catalog
type Repository struct {
	store  storage.Store
	logger *slog.Logger
}

// New creates a new template Repository
func New(store storage.Store, logger *slog.Logger) *Repository {
	return &Repository{
		store:  store,
		logger: logger.With(slog.String("component", "templates")),
	}
}

// LoadAll returns the full catalog ordered by id. Malformed ids are logged
// and still returned; the assignment engine rejects them before use.
func (r *Repository) LoadAll(ctx context.Context) ([]*model.TaskTemplate, error) {
	templates, err := r.store.ListTaskTemplates(ctx)
	if err != nil {
		return nil, err
	}

	for _, t := range templates {
		if !model.IsValidTaskIDFormat(t.ID) {
			r.logger.Warn("task template has malformed id",
				slog.String("task_id", string(t.ID)))
		}
	}

	r.logger.Debug("task templates loaded", slog.Int("count", len(templates)))
	return templates, nil
}

// ValidateTemplate checks that a template has usable text
func ValidateTemplate(t *model.TaskTemplate) error {
	if t == nil || strings.TrimSpace(t.Text) == "" {
		return model.ErrInvalidTemplate
	}
	return nil
}

// LoadFromFile replaces the catalog with the templates in a JSON file keyed
// by id, e.g. {"task-1": {"text": "..."}}
func (r *Repository) LoadFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	templates, err := Parse(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	if err := r.store.SaveTaskTemplates(ctx, templates); err != nil {
		return 0, err
	}

	r.logger.Info("task templates seeded",
		slog.String("path", path),
		slog.Int("count", len(templates)))
	return len(templates), nil
}

// Parse decodes a catalog document. Every entry must have a well-formed id
// and non-empty text.
func Parse(data []byte) ([]*model.TaskTemplate, error) {
	var doc map[model.TaskID]model.TaskTemplate
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedDocument, err)
	}

	templates := make([]*model.TaskTemplate, 0, len(doc))
	for id, t := range doc {
		t.ID = id
		if !model.IsValidTaskIDFormat(id) {
			return nil, fmt.Errorf("%w: %q", model.ErrInvalidTaskID, id)
		}
		if err := ValidateTemplate(&t); err != nil {
			return nil, fmt.Errorf("%w: %s", err, id)
		}
		templates = append(templates, &t)
	}
	slices.SortFunc(templates, func(a, b *model.TaskTemplate) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return templates, nil
}
