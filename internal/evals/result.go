// Package evals grades parsed validation reports with a fixed battery of
// deterministic checks. Checks are pure functions and order-independent;
// only error-severity failures block a report.
package evals

// Severity classifies how much weight a check carries in the aggregate.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Check is the outcome of a single evaluation rule.
type Check struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Message  string   `json:"message,omitempty"`
	Severity Severity `json:"severity"`
}

// Result aggregates every check outcome for one report.
type Result struct {
	ReportID string  `json:"report_id"`
	Checks   []Check `json:"checks"`
}

// Passed reports whether all error-severity checks passed.
// Warnings and info checks never block.
func (r Result) Passed() bool {
	for _, c := range r.Checks {
		if c.Severity == SeverityError && !c.Passed {
			return false
		}
	}
	return true
}

// Score returns the fraction of checks that passed, in [0, 1].
func (r Result) Score() float64 {
	if len(r.Checks) == 0 {
		return 0
	}
	passed := 0
	for _, c := range r.Checks {
		if c.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(r.Checks))
}
