package task

import (
	"fmt"
	"strings"

	"github.com/kazz187/tasktracker/pkg/cerr"
)

// violations collects per-field validation failures into a single
// InvalidArgument error.
type violations struct {
	err *cerr.Error
}

func (v *violations) add(field, rule, msg string) {
	if v.err == nil {
		v.err = cerr.NewError(cerr.InvalidArgument, "invalid task", nil)
	}
	v.err.AddDetailMessageWithCode(fmt.Sprintf("%s: %s", field, msg), field+"."+rule)
}

func (v *violations) result() error {
	if v.err == nil {
		return nil
	}
	return v.err
}

// validateCreate checks req and fills in defaults for optional fields. It
// does not require dates, so it also serves recurring templates.
func validateCreate(req *CreateRequest) error {
	var v violations
	checkCreate(&v, req)
	return v.result()
}

// validateNewTask is validateCreate plus the schedule every stored task needs.
func validateNewTask(req *CreateRequest) error {
	var v violations
	checkCreate(&v, req)
	checkDates(&v, req.StartDate, req.DueDate)
	return v.result()
}

func checkDates(v *violations, start, due Date) {
	if start.IsZero() {
		v.add("start_date", "required", "must not be empty")
	}
	if due.IsZero() {
		v.add("due_date", "required", "must not be empty")
	}
}

func checkCreate(v *violations, req *CreateRequest) {
	req.Project = strings.TrimSpace(req.Project)
	if req.Project == "" {
		v.add("project", "required", "must not be empty")
	}
	if strings.TrimSpace(req.TaskDescription) == "" {
		v.add("task_description", "required", "must not be empty")
	}
	if req.Frequency == "" {
		req.Frequency = FrequencyAdhoc
	} else if !req.Frequency.Valid() {
		v.add("frequency", "in", fmt.Sprintf("unknown frequency %q", req.Frequency))
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	} else if !req.Priority.Valid() {
		v.add("priority", "in", fmt.Sprintf("unknown priority %q", req.Priority))
	}
	if req.AssignedTo == "" {
		req.AssignedTo = Unassigned
	}
	if req.Status != nil && !req.Status.Valid() {
		v.add("status", "in", fmt.Sprintf("unknown status %q", *req.Status))
	}
	checkPercent(v, req.PercentComplete)
	checkHours(v, req.EstHours)
}

func validatePatch(p *Patch) error {
	var v violations
	if p.Project != nil {
		trimmed := strings.TrimSpace(*p.Project)
		p.Project = &trimmed
		if trimmed == "" {
			v.add("project", "required", "must not be empty")
		}
	}
	if p.StartDate != nil && p.StartDate.IsZero() {
		v.add("start_date", "required", "must not be empty")
	}
	if p.DueDate != nil && p.DueDate.IsZero() {
		v.add("due_date", "required", "must not be empty")
	}
	if p.TaskDescription != nil && strings.TrimSpace(*p.TaskDescription) == "" {
		v.add("task_description", "required", "must not be empty")
	}
	if p.Frequency != nil && !p.Frequency.Valid() {
		v.add("frequency", "in", fmt.Sprintf("unknown frequency %q", *p.Frequency))
	}
	if p.Priority != nil && !p.Priority.Valid() {
		v.add("priority", "in", fmt.Sprintf("unknown priority %q", *p.Priority))
	}
	if p.AssignedTo != nil && *p.AssignedTo == "" {
		unassigned := Unassigned
		p.AssignedTo = &unassigned
	}
	if p.Status != nil && !p.Status.Valid() {
		v.add("status", "in", fmt.Sprintf("unknown status %q", *p.Status))
	}
	if p.PercentComplete != nil {
		checkPercent(&v, *p.PercentComplete)
	}
	if p.EstHours != nil {
		checkHours(&v, *p.EstHours)
	}
	return v.result()
}

func checkPercent(v *violations, pc int) {
	if pc < 0 || pc > 100 {
		v.add("percent_complete", "range", "must be between 0 and 100")
	}
}

func checkHours(v *violations, h float64) {
	if h < 0 {
		v.add("est_hours", "gte", "must not be negative")
	}
}
