package capture

import (
	"fmt"

	"github.com/papercomputeco/mnemo/pkg/record"
)

// Batch decides many candidates at once. Candidates of the same type are
// grouped and decided on their average score; a group whose average lands
// between the thresholds falls back to per-candidate decisions. Results
// are in input order. Nothing is decided when any candidate is invalid.
func (e *Engine) Batch(cands []Candidate) ([]Result, error) {
	for i, c := range cands {
		if c.Content == "" {
			return nil, fmt.Errorf("candidate %d: %w", i, ErrEmptyContent)
		}
	}

	var order []record.ActivityType
	groups := make(map[record.ActivityType][]int)
	for i, c := range cands {
		t := c.Type()
		if _, ok := groups[t]; !ok {
			order = append(order, t)
		}
		groups[t] = append(groups[t], i)
	}

	results := make([]Result, len(cands))
	for _, t := range order {
		idx := groups[t]

		sum := 0
		for _, i := range idx {
			sum += cands[i].Value.TotalScore
		}
		avg := float64(sum) / float64(len(idx))

		decision, reason := e.rule(t, avg)
		if decision == DecisionPending {
			for _, i := range idx {
				d, r := e.rule(t, float64(cands[i].Value.TotalScore))
				results[i] = e.apply(cands[i], d, r)
			}
			continue
		}

		reason = fmt.Sprintf("group of %d %s: average %s", len(idx), t, reason)
		for _, i := range idx {
			results[i] = e.apply(cands[i], decision, reason)
		}
	}

	return results, nil
}
