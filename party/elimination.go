package party

import "fmt"

// policy computes the elimination zone of a single finished round. It is a
// pure function of the round's tally snapshot and the count of registered
// candidates, which guards against registrants that never received a vote and
// so were never inserted into the tally.
type policy struct {
	// numerator is the percentile cut, 0-100
	numerator uint64
	// top selects whether the cut removes the leaders or the stragglers
	top bool
}

// eliminated reports whether addr fell inside the elimination zone of the
// round whose tally is given.
//
// Zero-vote candidates are handled asymmetrically and deliberately so: they
// are never in the top zone, even at a 100% cut, and always in the bottom
// zone, their missing rank standing in for effectiveTotal+1.
func (p policy) eliminated(t *Tally, totalRegistered uint64, addr Identity) bool {
	totalNodes := uint64(t.Len())
	effectiveTotal := totalRegistered
	if totalNodes > effectiveTotal {
		effectiveTotal = totalNodes
	}
	pos := uint64(t.Position(addr))

	if p.top {
		threshold := totalNodes * p.numerator / 100
		if threshold > effectiveTotal {
			panic(fmt.Sprintf("elimination threshold %d exceeds candidate total %d", threshold, effectiveTotal))
		}
		if pos == 0 {
			return false
		}
		return pos <= threshold
	}

	threshold := effectiveTotal - effectiveTotal*p.numerator/100
	if threshold > effectiveTotal {
		panic(fmt.Sprintf("elimination threshold %d exceeds candidate total %d", threshold, effectiveTotal))
	}
	if pos == 0 {
		pos = effectiveTotal + 1
	}
	return pos > threshold
}
