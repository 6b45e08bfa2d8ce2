package opt

import "fmt"

// Capacity is either unlimited or a fixed limit. The zero value is unlimited.
type Capacity struct {
	limited bool
	limit   int64
}

// Unlimited returns a capacity that accepts any load.
func Unlimited() Capacity { return Capacity{} }

// Limit returns a capacity bounded by n.
func Limit(n int64) Capacity { return Capacity{limited: true, limit: n} }

// Value returns the limit and whether one applies.
func (c Capacity) Value() (int64, bool) { return c.limit, c.limited }

// IsUnlimited reports whether c has no bound.
func (c Capacity) IsUnlimited() bool { return !c.limited }

// Fits reports whether load fits in c.
func (c Capacity) Fits(load int64) bool { return !c.limited || load <= c.limit }

// Sub returns c reduced by load. Unlimited stays unlimited.
func (c Capacity) Sub(load int64) Capacity {
	if !c.limited {
		return c
	}
	return Limit(c.limit - load)
}

func (c Capacity) String() string {
	if !c.limited {
		return "unlimited"
	}
	return fmt.Sprintf("%d", c.limit)
}

// Load sums the delivery amounts of jobs.
func Load(jobs []Job) int64 {
	var sum int64
	for _, j := range jobs {
		sum += j.Delivery
	}
	return sum
}

// Feasible reports whether v can carry all of jobs at once.
func Feasible(v Vehicle, jobs []Job) bool {
	if v.Capacity.IsUnlimited() {
		return true
	}
	return v.Capacity.Fits(Load(jobs))
}
