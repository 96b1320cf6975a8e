package task

import (
	"github.com/kazz187/tasktracker/pkg/cerr"
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start Date `json:"range_start"`
	End   Date `json:"range_end"`
}

func (r Range) Empty() bool {
	return r.Start.After(r.End)
}

// occurrence returns the start of the i-th occurrence. Month and year steps
// are computed from the range start each time, never chained, so a 31st does
// not drift after passing through a short month.
func occurrence(cadence Frequency, start Date, i int) Date {
	switch cadence {
	case FrequencyDaily:
		return start.AddDays(i)
	case FrequencyWeekly:
		return start.AddDays(7 * i)
	case FrequencyMonthly:
		return start.AddMonths(i)
	case FrequencyYearly:
		return start.AddYears(i)
	}
	return start
}

func checkCadence(cadence Frequency) error {
	if cadence.Periodic() {
		return nil
	}
	return cerr.NewError(cerr.InvalidArgument, "invalid cadence", nil).
		AddDetailMessageWithCode("cadence must be one of Daily, Weekly, Monthly, Yearly", "cadence.periodic")
}

// Expand produces one create request per occurrence of cadence within r.
// Occurrence i starts at r.Start advanced by i steps and is included while
// it is not after r.End. Its due date is the start of occurrence i+1. All
// other fields come from template; frequency is set to cadence.
func Expand(template CreateRequest, cadence Frequency, r Range) ([]CreateRequest, error) {
	if err := checkCadence(cadence); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, nil
	}
	n := occurrenceCount(cadence, r)
	out := make([]CreateRequest, 0, n)
	for i := range n {
		req := template
		req.Frequency = cadence
		req.StartDate = occurrence(cadence, r.Start, i)
		req.DueDate = occurrence(cadence, r.Start, i+1)
		out = append(out, req)
	}
	return out, nil
}

// Occurrences lists the occurrence start dates without building requests.
func Occurrences(cadence Frequency, r Range) ([]Date, error) {
	if err := checkCadence(cadence); err != nil {
		return nil, err
	}
	if r.Empty() {
		return nil, nil
	}
	n := occurrenceCount(cadence, r)
	out := make([]Date, n)
	for i := range n {
		out[i] = occurrence(cadence, r.Start, i)
	}
	return out, nil
}

// OccurrenceCount returns len(Expand(_, cadence, r)) without expanding.
func OccurrenceCount(cadence Frequency, r Range) (int, error) {
	if err := checkCadence(cadence); err != nil {
		return 0, err
	}
	if r.Empty() {
		return 0, nil
	}
	return occurrenceCount(cadence, r), nil
}

func occurrenceCount(cadence Frequency, r Range) int {
	var steps int
	switch cadence {
	case FrequencyDaily:
		return r.Start.DaysUntil(r.End) + 1
	case FrequencyWeekly:
		return r.Start.DaysUntil(r.End)/7 + 1
	case FrequencyMonthly:
		sy, sm, _ := r.Start.Time().Date()
		ey, em, _ := r.End.Time().Date()
		steps = (ey-sy)*12 + int(em-sm)
	case FrequencyYearly:
		steps = r.End.Time().Year() - r.Start.Time().Year()
	}
	// Month-end rollover can push the estimated last occurrence past the
	// end; step back until it fits.
	for steps > 0 && occurrence(cadence, r.Start, steps).After(r.End) {
		steps--
	}
	return steps + 1
}
