package fieldconfig

import "github.com/kazz187/tasktracker/internal/task"

func options(values ...string) []Option {
	out := make([]Option, len(values))
	for i, v := range values {
		out[i] = Option{Value: v, Label: v, SortOrder: i + 1, Active: true}
	}
	return out
}

// Defaults is the built-in field table used when no override file is set.
func Defaults() *Config {
	fields := []*Field{
		{Name: FieldProject, Label: "Project", Type: FieldTypeText, Visible: true},
		{Name: FieldStageGates, Label: "Stage Gates", Type: FieldTypeSelect, Visible: true},
		{Name: FieldTaskType, Label: "Task Type", Type: FieldTypeSelect, Visible: true},
		{Name: FieldFrequency, Label: "Frequency", Type: FieldTypeSelect, Visible: true, Options: options(
			string(task.FrequencyDaily), string(task.FrequencyWeekly), string(task.FrequencyMonthly),
			string(task.FrequencyYearly), string(task.FrequencyAdhoc),
		)},
		{Name: FieldPriority, Label: "Priority", Type: FieldTypeSelect, Visible: true, Options: options(
			string(task.PriorityHigh), string(task.PriorityMedium), string(task.PriorityLow),
		)},
		{Name: FieldStatus, Label: "Status", Type: FieldTypeSelect, Visible: true, Options: options(
			string(task.StatusNotStarted), string(task.StatusInProgress),
			string(task.StatusComplete), string(task.StatusOverdue),
		)},
		{Name: FieldAssignedTo, Label: "Assigned To", Type: FieldTypeSelect, Visible: true, Options: []Option{
			{Value: task.Unassigned, Label: "Unassigned", SortOrder: 0, Active: true},
		}},
	}
	c := &Config{fields: make(map[FieldName]*Field, len(fields))}
	for _, f := range fields {
		c.fields[f.Name] = f
	}
	return c
}
