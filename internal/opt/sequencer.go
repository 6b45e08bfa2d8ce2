package opt

// sequencer finds the cheapest visiting order of a fixed job set by trying
// every permutation. Permutations are generated in lexicographic order of
// the input positions, so on equal cost the earliest order wins.
type sequencer struct {
	m     Matrix
	obj   Objective
	perms int64
}

// BestOrder returns the minimum travel+service ordering of jobs from start.
func BestOrder(m Matrix, start int, jobs []Job) ([]Job, int64) {
	s := sequencer{m: m}
	return s.bestOrder(start, jobs)
}

func (s *sequencer) bestOrder(start int, jobs []Job) ([]Job, int64) {
	switch len(jobs) {
	case 0:
		return []Job{}, 0
	case 1:
		s.perms++
		return []Job{jobs[0]}, s.m.Score(s.obj, start, jobs)
	}

	idx := make([]int, len(jobs))
	for i := range idx {
		idx[i] = i
	}
	order := make([]Job, len(jobs))
	best := make([]Job, len(jobs))
	var bestCost int64
	found := false
	for {
		for i, k := range idx {
			order[i] = jobs[k]
		}
		cost := s.m.Score(s.obj, start, order)
		s.perms++
		if !found || cost < bestCost {
			bestCost = cost
			copy(best, order)
			found = true
		}
		if !nextPermutation(idx) {
			break
		}
	}
	return best, bestCost
}

// nextPermutation rearranges idx into its lexicographic successor and
// reports false once idx is the last permutation.
func nextPermutation(idx []int) bool {
	i := len(idx) - 2
	for i >= 0 && idx[i] >= idx[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(idx) - 1
	for idx[j] <= idx[i] {
		j--
	}
	idx[i], idx[j] = idx[j], idx[i]
	for l, r := i+1, len(idx)-1; l < r; l, r = l+1, r-1 {
		idx[l], idx[r] = idx[r], idx[l]
	}
	return true
}
