package router

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/dreamware/metaroute/internal/cluster"
)

// MemberError is the overall error of a failed command: the non-suppressed
// failure selected by the deterministic tie-break, attributed to the member
// that reported it.
type MemberError struct {
	MemberID string       `json:"member_id"`
	Code     cluster.Code `json:"code"`
	Message  string       `json:"message"`
}

func (e *MemberError) Error() string {
	return e.MemberID + ": " + string(e.Code) + ": " + e.Message
}

// Outcome is the client-visible result of one routed command. Raw always
// holds one entry per resolved target, regardless of the verdict: callers
// that only check OK see a working command, callers that inspect Raw can
// still observe exactly which members reported which condition.
type Outcome struct {
	OK  bool                    `json:"ok"`
	Err *MemberError            `json:"error,omitempty"`
	Raw map[string]MemberResult `json:"raw"`
}

// Aggregate folds per-member results into one Outcome under the command's
// suppressible-error set.
//
// A failure whose code is suppressible is ignorable for the verdict but its
// raw entry is kept untouched: suppression changes only the boolean verdict,
// never the retained diagnostic record. The outcome is OK iff every
// non-ignorable result succeeded; otherwise the overall error is the
// non-ignorable failure with the lowest member ID, computed after all
// results are in so it never depends on arrival order.
func Aggregate(results map[string]MemberResult, suppressible Suppressible) Outcome {
	outcome := Outcome{OK: true, Raw: results}

	ids := maps.Keys(results)
	slices.Sort(ids)

	for _, id := range ids {
		res := results[id]
		if res.OK || suppressible[res.Code] {
			continue
		}
		outcome.OK = false
		outcome.Err = &MemberError{MemberID: id, Code: res.Code, Message: res.Message}
		break
	}
	return outcome
}
