package fieldconfig

import (
	"cmp"
	"slices"
)

// FieldName is the closed set of task fields that carry display
// configuration.
type FieldName string

const (
	FieldProject    FieldName = "project"
	FieldStageGates FieldName = "stage_gates"
	FieldTaskType   FieldName = "task_type"
	FieldFrequency  FieldName = "frequency"
	FieldPriority   FieldName = "priority"
	FieldStatus     FieldName = "status"
	FieldAssignedTo FieldName = "assigned_to"
)

// FieldNames lists every field in display order.
var FieldNames = []FieldName{
	FieldProject, FieldStageGates, FieldTaskType, FieldFrequency,
	FieldPriority, FieldStatus, FieldAssignedTo,
}

func (n FieldName) Valid() bool {
	return slices.Contains(FieldNames, n)
}

type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeSelect FieldType = "select"
)

type Option struct {
	Value     string `yaml:"value" json:"option_value"`
	Label     string `yaml:"label" json:"option_label"`
	SortOrder int    `yaml:"sort_order" json:"sort_order"`
	Active    bool   `yaml:"active" json:"is_active"`
}

type Field struct {
	Name    FieldName `yaml:"-" json:"field_name"`
	Label   string    `yaml:"label" json:"label"`
	Type    FieldType `yaml:"type" json:"field_type"`
	Visible bool      `yaml:"visible" json:"visible"`
	Options []Option  `yaml:"options" json:"options"`
}

// ActiveOptions returns the active options ordered by sort_order.
func (f *Field) ActiveOptions() []Option {
	out := make([]Option, 0, len(f.Options))
	for _, o := range f.Options {
		if o.Active {
			out = append(out, o)
		}
	}
	slices.SortStableFunc(out, func(a, b Option) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})
	return out
}

// Config is an immutable snapshot of the field table.
type Config struct {
	fields map[FieldName]*Field
}

func (c *Config) Field(name FieldName) (*Field, bool) {
	f, ok := c.fields[name]
	return f, ok
}

// VisibleFields returns the visible fields in display order.
func (c *Config) VisibleFields() []*Field {
	var out []*Field
	for _, n := range FieldNames {
		if f, ok := c.fields[n]; ok && f.Visible {
			out = append(out, f)
		}
	}
	return out
}
