package opt

// Objective selects which route duration the sequencer minimizes.
type Objective int

const (
	// DurationWithService scores travel legs plus service time.
	DurationWithService Objective = iota
	// TravelOnly scores travel legs only.
	TravelOnly
)

// ParseObjective maps "travel" to TravelOnly; anything else is the default.
func ParseObjective(s string) Objective {
	if s == "travel" {
		return TravelOnly
	}
	return DurationWithService
}

func (o Objective) String() string {
	if o == TravelOnly {
		return "travel"
	}
	return "duration"
}

// Leg returns the travel time from one location to another.
func (m Matrix) Leg(from, to int) int64 { return m[from][to] }

// Travel sums the legs of visiting jobs in order from start.
func (m Matrix) Travel(start int, jobs []Job) int64 {
	var total int64
	at := start
	for _, j := range jobs {
		total += m[at][j.Location]
		at = j.Location
	}
	return total
}

// Duration is Travel plus every job's service time.
func (m Matrix) Duration(start int, jobs []Job) int64 {
	if len(jobs) == 0 {
		return 0
	}
	total := m.Travel(start, jobs)
	for _, j := range jobs {
		total += j.Service
	}
	return total
}

// Score evaluates an ordered route under the objective.
func (m Matrix) Score(o Objective, start int, jobs []Job) int64 {
	if o == TravelOnly {
		return m.Travel(start, jobs)
	}
	return m.Duration(start, jobs)
}
