package market

import (
	"time"
)

// IntervalLength is the dispatch cadence.
const IntervalLength = 5 * time.Minute

type layout struct {
	dir      string
	prefix   string
	ext      string
	suffixes []string
}

// The publisher stamps the file with the second it was written, which only
// ever falls in a small known set per kind.
var layouts = map[Kind]layout{
	KindPrice: {
		dir:      "/5minprices/",
		prefix:   "5minprices_",
		ext:      ".csv.gz",
		suffixes: []string{"30", "31", "32", "33", "34", "35"},
	},
	KindInfeasible: {
		dir:      "/public/",
		prefix:   "inf_rtd",
		ext:      ".csv.gz",
		suffixes: []string{"00", "01", "02", "03", "04", "05"},
	},
	KindReserve: {
		dir:      "/5minprices/",
		prefix:   "5minreserve_",
		ext:      ".csv.gz",
		suffixes: []string{"30", "31", "32", "33", "34", "35"},
	},
}

// CandidateSet is the ordered list of filenames that may hold one kind's
// payload for a cycle.
type CandidateSet struct {
	Kind       Kind
	Target     time.Time
	Stem       string
	Dir        string
	Names      []string
	Compressed bool
}

// Target floors now minus lag to the most recent interval boundary. Every
// kind derives its filename from this one value.
func Target(now time.Time, lag time.Duration) time.Time {
	t := now.Add(-lag)
	t = t.Add(-time.Duration(t.Minute()%5) * time.Minute)
	return t.Truncate(time.Minute)
}

// TargetFor applies the per-kind offset: infeasible files are stamped one
// minute before the price file of the same interval.
func TargetFor(kind Kind, target time.Time) time.Time {
	if kind == KindInfeasible {
		return target.Add(-time.Minute)
	}
	return target
}

// Candidates computes the candidate set for kind at the current time.
func Candidates(now time.Time, lag time.Duration, kind Kind) CandidateSet {
	return CandidatesAt(kind, TargetFor(kind, Target(now, lag)))
}

// CandidatesAt builds the candidate set for an already offset target time.
func CandidatesAt(kind Kind, target time.Time) CandidateSet {
	l := layouts[kind]
	stem := l.prefix + target.Format("200601021504")

	names := make([]string, len(l.suffixes))
	for i, suffix := range l.suffixes {
		names[i] = stem + suffix + l.ext
	}

	return CandidateSet{
		Kind:       kind,
		Target:     target,
		Stem:       stem,
		Dir:        l.dir,
		Names:      names,
		Compressed: l.ext == ".csv.gz",
	}
}
