package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var triangle = Matrix{
	{0, 5, 9},
	{5, 0, 3},
	{9, 3, 0},
}

func TestMatrixTravelAndDuration(t *testing.T) {
	jobs := []Job{{ID: "a", Location: 1, Service: 2}, {ID: "b", Location: 2, Service: 4}}

	assert.Equal(t, int64(8), triangle.Travel(0, jobs))
	assert.Equal(t, int64(14), triangle.Duration(0, jobs))
	assert.Equal(t, int64(8), triangle.Score(TravelOnly, 0, jobs))
	assert.Equal(t, int64(14), triangle.Score(DurationWithService, 0, jobs))

	assert.Zero(t, triangle.Travel(0, nil))
	assert.Zero(t, triangle.Duration(2, []Job{}))
}

func TestMatrixAsymmetricLegs(t *testing.T) {
	m := Matrix{{0, 1}, {7, 0}}
	assert.Equal(t, int64(1), m.Leg(0, 1))
	assert.Equal(t, int64(7), m.Leg(1, 0))
}

func TestBestOrderSmallSets(t *testing.T) {
	order, cost := BestOrder(triangle, 0, nil)
	assert.Empty(t, order)
	assert.Zero(t, cost)

	order, cost = BestOrder(triangle, 0, []Job{{ID: "only", Location: 2, Service: 6}})
	require.Len(t, order, 1)
	assert.Equal(t, "only", order[0].ID)
	assert.Equal(t, int64(15), cost)
}

func TestBestOrderPicksShortestTour(t *testing.T) {
	jobs := []Job{{ID: "far", Location: 2}, {ID: "near", Location: 1}}
	order, cost := BestOrder(triangle, 0, jobs)
	assert.Equal(t, []string{"near", "far"}, jobIDs(order))
	assert.Equal(t, int64(8), cost)
}

func TestBestOrderTieKeepsFirstPermutation(t *testing.T) {
	flat := Matrix{
		{0, 1, 1, 1},
		{1, 0, 1, 1},
		{1, 1, 0, 1},
		{1, 1, 1, 0},
	}
	jobs := []Job{{ID: "c", Location: 3}, {ID: "a", Location: 1}, {ID: "b", Location: 2}}
	s := sequencer{m: flat}
	order, cost := s.bestOrder(0, jobs)
	assert.Equal(t, []string{"c", "a", "b"}, jobIDs(order))
	assert.Equal(t, int64(3), cost)
	assert.Equal(t, int64(6), s.perms)
}

func TestBestOrderDoesNotMutateInput(t *testing.T) {
	jobs := []Job{{ID: "far", Location: 2}, {ID: "near", Location: 1}}
	_, _ = BestOrder(triangle, 0, jobs)
	assert.Equal(t, []string{"far", "near"}, jobIDs(jobs))
}

func TestNextPermutationLexicographic(t *testing.T) {
	idx := []int{0, 1, 2}
	var seen [][]int
	for {
		seen = append(seen, append([]int(nil), idx...))
		if !nextPermutation(idx) {
			break
		}
	}
	assert.Equal(t, [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}, seen)
}

func TestCapacity(t *testing.T) {
	u := Unlimited()
	assert.True(t, u.IsUnlimited())
	assert.True(t, u.Fits(1<<40))
	assert.True(t, u.Sub(10).IsUnlimited())
	assert.Equal(t, "unlimited", u.String())

	c := Limit(5)
	n, ok := c.Value()
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)
	assert.True(t, c.Fits(5))
	assert.False(t, c.Fits(6))
	assert.Equal(t, "2", c.Sub(3).String())

	var zero Capacity
	assert.True(t, zero.IsUnlimited())
}

func TestFeasible(t *testing.T) {
	jobs := []Job{{ID: "a", Delivery: 3}, {ID: "b", Delivery: 4}}
	assert.True(t, Feasible(Vehicle{ID: "v", Capacity: Unlimited()}, jobs))
	assert.True(t, Feasible(Vehicle{ID: "v", Capacity: Limit(7)}, jobs))
	assert.False(t, Feasible(Vehicle{ID: "v", Capacity: Limit(5)}, jobs))
	assert.True(t, Feasible(Vehicle{ID: "v", Capacity: Limit(0)}, nil))
	assert.Equal(t, int64(7), Load(jobs))
}
