package probe

import (
	"fmt"
	"strings"

	"clipvault/pkg/config"
)

// Verdict is the reconciled meaning of an outcome
type Verdict int

const (
	// Accepted codes go to the success list
	Accepted Verdict = iota
	// Rejected codes go to the tried set
	Rejected
	// Retry codes are recorded nowhere and may be drawn again
	Retry
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Retry:
		return "retry"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// UnreachablePolicy decides what a probe without response means
type UnreachablePolicy string

const (
	// Exhaust treats an unreachable probe as rejected
	Exhaust UnreachablePolicy = config.UnreachableExhaust
	// RetryLater leaves an unreachable code untried
	RetryLater UnreachablePolicy = config.UnreachableRetry
)

// Rejection presets
var (
	MinimalRejections = []int{403}
	StrictRejections  = []int{401, 403, 429}
)

// Classifier turns outcomes into verdicts
type Classifier struct {
	Rejected    map[int]struct{}
	Unreachable UnreachablePolicy
}

// NewClassifier builds a Classifier; an empty status list means the strict preset
func NewClassifier(rejected []int, policy UnreachablePolicy) *Classifier {
	if len(rejected) == 0 {
		rejected = StrictRejections
	}
	set := make(map[int]struct{}, len(rejected))
	for _, status := range rejected {
		set[status] = struct{}{}
	}
	if policy == "" {
		policy = Exhaust
	}
	return &Classifier{Rejected: set, Unreachable: policy}
}

// Preset returns the rejection statuses for a preset name
func Preset(name string) ([]int, error) {
	switch strings.ToLower(name) {
	case "minimal":
		return MinimalRejections, nil
	case "strict", "":
		return StrictRejections, nil
	default:
		return nil, fmt.Errorf("unknown rejection preset %q", name)
	}
}

// Classify never accepts a probe that got no response
func (c *Classifier) Classify(o Outcome) Verdict {
	if o.Status == StatusNoResponse {
		if c.Unreachable == RetryLater {
			return Retry
		}
		return Rejected
	}
	if _, ok := c.Rejected[o.Status]; ok {
		return Rejected
	}
	return Accepted
}
