package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"vrpsolver/internal/opt"
)

// ErrInvalidProblem wraps every validation failure.
var ErrInvalidProblem = errors.New("invalid problem")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidProblem, fmt.Sprintf(format, args...))
}

// Validate checks the shape of the request so the solvers can index the
// matrix without bounds checks.
func (r *OptimizeRequest) Validate() error {
	if _, err := opt.ParseAlgorithm(r.Algorithm); err != nil {
		return invalid("%v", err)
	}
	if r.Objective != "" && r.Objective != "duration" && r.Objective != "travel" {
		return invalid("unknown objective %q (want duration or travel)", r.Objective)
	}
	if len(r.Vehicles) == 0 {
		return invalid("at least one vehicle is required")
	}
	n := len(r.Matrix)
	if n == 0 {
		return invalid("matrix is empty")
	}
	for i, row := range r.Matrix {
		if len(row) != n {
			return invalid("matrix must be square: row %d has %d entries, want %d", i, len(row), n)
		}
		for j, d := range row {
			if d < 0 {
				return invalid("matrix[%d][%d] is negative", i, j)
			}
		}
	}

	vids := lo.Map(r.Vehicles, func(v VehicleIn, _ int) string { return v.ID })
	if dup := lo.FindDuplicates(vids); len(dup) > 0 {
		return invalid("duplicate vehicle ids: %s", strings.Join(dup, ","))
	}
	jids := lo.Map(r.Jobs, func(j JobIn, _ int) string { return j.ID })
	if dup := lo.FindDuplicates(jids); len(dup) > 0 {
		return invalid("duplicate job ids: %s", strings.Join(dup, ","))
	}

	for i, v := range r.Vehicles {
		if strings.TrimSpace(v.ID) == "" {
			return invalid("vehicles[%d]: id is required", i)
		}
		if v.StartIndex < 0 || v.StartIndex >= n {
			return invalid("vehicle %s: start_index %d out of range [0,%d)", v.ID, v.StartIndex, n)
		}
		if c, ok := v.Capacity.Capacity().Value(); ok && c < 0 {
			return invalid("vehicle %s: capacity must be >= 0", v.ID)
		}
	}
	for i, j := range r.Jobs {
		if strings.TrimSpace(j.ID) == "" {
			return invalid("jobs[%d]: id is required", i)
		}
		if j.LocationIndex < 0 || j.LocationIndex >= n {
			return invalid("job %s: location_index %d out of range [0,%d)", j.ID, j.LocationIndex, n)
		}
		if j.Delivery.Delivery() < 0 {
			return invalid("job %s: delivery must be >= 0", j.ID)
		}
		if j.Service != nil && *j.Service < 0 {
			return invalid("job %s: service must be >= 0", j.ID)
		}
	}
	return nil
}
