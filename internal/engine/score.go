package engine

// Score weights.  Tier seniority counts once, each verified co-rider three
// times, each recorded no-show subtracts two and a half, and historical
// wait credit is worth 0.8 per unit.
const (
	weightTier		  = 1.0
	weightCoRiders	  = 3.0
	weightViolations  = 2.5
	weightWaitHistory = 0.8
)

// Score computes a requester's priority score.	 Pure and deterministic: the
// value is snapshotted onto the booking at creation time and never
// re-derived for ranking, so later calls with updated counters may
// legitimately differ from a stored snapshot.
func Score(tier, coRiders, noShows, waitHistory int) float64 {
	return weightTier*float64(tier) +
		weightCoRiders*float64(coRiders) -
		weightViolations*float64(noShows) +
		weightWaitHistory*float64(waitHistory)
}
