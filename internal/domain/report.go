package domain

import (
	"fmt"
	"time"
)

// Failure identifies one record a batch job could not handle
type Failure struct {
	Ref    string `json:"ref"`
	Reason string `json:"reason"`
}

// Report is the operator summary every batch job returns
type Report struct {
	StartedAt time.Time     `json:"started_at"`
	Failures  []Failure     `json:"failures"`
	Job       string        `json:"job"`
	Duration  time.Duration `json:"duration_ns"`
	Matched   int           `json:"matched"`
	Unmatched int           `json:"unmatched"`
	Updated   int           `json:"updated"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Apply     bool          `json:"apply"`
}

// NewReport starts a report for the named job
func NewReport(job string, apply bool, startedAt time.Time) *Report {
	return &Report{
		Job:       job,
		Apply:     apply,
		StartedAt: startedAt,
		Failures:  []Failure{},
	}
}

// Fail records an error against a record reference
func (r *Report) Fail(ref string, err error) {
	r.Errors++
	r.Failures = append(r.Failures, Failure{Ref: ref, Reason: err.Error()})
}

// HasFailures reports whether any record failed
func (r *Report) HasFailures() bool {
	return r.Errors > 0
}

// Finish stamps the elapsed time
func (r *Report) Finish(now time.Time) *Report {
	r.Duration = now.Sub(r.StartedAt)
	return r
}

// Summary renders the counts on one line
func (r *Report) Summary() string {
	mode := "dry-run"
	if r.Apply {
		mode = "applied"
	}
	return fmt.Sprintf("%s (%s): matched=%d unmatched=%d updated=%d skipped=%d errors=%d",
		r.Job, mode, r.Matched, r.Unmatched, r.Updated, r.Skipped, r.Errors)
}

// Outcome is "ok" without failures, "failed" when nothing succeeded, otherwise "partial"
func (r *Report) Outcome() string {
	switch {
	case r.Errors == 0:
		return "ok"
	case r.Matched+r.Unmatched+r.Updated+r.Skipped == 0:
		return "failed"
	default:
		return "partial"
	}
}

// Merge adds the counts and failures of o to r
func (r *Report) Merge(o *Report) {
	r.Matched += o.Matched
	r.Unmatched += o.Unmatched
	r.Updated += o.Updated
	r.Skipped += o.Skipped
	r.Errors += o.Errors
	r.Failures = append(r.Failures, o.Failures...)
}
