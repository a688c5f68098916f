package core

import (
	"fmt"
	"sort"

	"github.com/ehrbase/aqlengine/core/internal/psql"
	"github.com/google/uuid"
)

// Template is a stored operational template.
type Template = psql.Template

// TemplateStore resolves template ids to the uuids compositions reference.
// Implementations must be safe for concurrent use.
type TemplateStore = psql.TemplateStore

// StaticTemplates is a fixed TemplateStore.
type StaticTemplates struct {
	byID map[string]uuid.UUID
	list []Template
}

// NewStaticTemplates builds a store from the config entries.
func NewStaticTemplates(templates []TemplateConfig) (*StaticTemplates, error) {
	list := make([]Template, 0, len(templates))
	for _, t := range templates {
		u, err := uuid.Parse(t.UUID)
		if err != nil {
			return nil, fmt.Errorf("template %q: invalid uuid %q", t.ID, t.UUID)
		}
		list = append(list, Template{ID: t.ID, UUID: u})
	}
	return NewTemplateList(list), nil
}

// NewTemplateList builds a store from resolved templates.
func NewTemplateList(templates []Template) *StaticTemplates {
	ts := &StaticTemplates{
		byID: make(map[string]uuid.UUID, len(templates)),
		list: append([]Template(nil), templates...),
	}
	sort.Slice(ts.list, func(i, j int) bool { return ts.list[i].ID < ts.list[j].ID })
	for _, t := range ts.list {
		ts.byID[t.ID] = t.UUID
	}
	return ts
}

func (ts *StaticTemplates) TemplateUUID(templateID string) (uuid.UUID, bool) {
	u, ok := ts.byID[templateID]
	return u, ok
}

func (ts *StaticTemplates) Templates() []Template {
	return ts.list
}
