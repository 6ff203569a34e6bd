package engine

// DefaultInstantQuota bounds the number of firings the scheduler accepts
// at a single simulated instant before declaring the run livelocked.
const DefaultInstantQuota = 10000

// instantQuota detects zero-delay firing cascades that never let the
// clock advance. Static cycle analysis at build time catches loops the
// model graph can see; this is the runtime backstop for loops routed
// through automata.
type instantQuota struct {
	max   int
	at    float64
	count int
}

func newInstantQuota(max int) *instantQuota {
	if max <= 0 {
		max = DefaultInstantQuota
	}
	return &instantQuota{max: max, at: -1}
}

// admit records one firing at time t and reports whether the quota still
// holds. The counter resets whenever the clock advances.
func (q *instantQuota) admit(t float64) bool {
	if t != q.at {
		q.at = t
		q.count = 0
	}
	q.count++
	return q.count <= q.max
}
