// Package matcher resolves claimed writers and publishers to payee accounts.
//
// Identifier matching on IPI numbers always runs first. Fuzzy name matching is
// only a fallback and never overrides an IPI hit.
package matcher

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/shopspring/decimal"
)

// TiePolicy decides what happens when several candidates share the best name score
type TiePolicy string

const (
	// TiePolicyFlag reports the tie as ambiguous and assigns nobody
	TiePolicyFlag TiePolicy = "flag"
	// TiePolicyFirst assigns the first candidate in directory order
	TiePolicyFirst TiePolicy = "first"
)

// ParseTiePolicy maps configuration input onto a policy; anything unknown is flag
func ParseTiePolicy(s string) TiePolicy {
	if TiePolicy(strings.ToLower(strings.TrimSpace(s))) == TiePolicyFirst {
		return TiePolicyFirst
	}
	return TiePolicyFlag
}

// Outcome classifies a match result
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeUnmatched Outcome = "unmatched"
)

// DefaultThreshold is the minimum normalized Levenshtein similarity for a name match
var DefaultThreshold = decimal.RequireFromString("0.85")

var one = decimal.NewFromInt(1)

// Config tunes name matching
type Config struct {
	Threshold decimal.Decimal
	TiePolicy TiePolicy
}

// Result is the outcome of matching one claim
type Result struct {
	Confidence decimal.Decimal
	UserID     string
	Outcome    Outcome
	Method     domain.MatchMethod
	Reason     string
	Candidates []string
}

// Matched reports whether a single payee was resolved
func (r Result) Matched() bool {
	return r.Outcome == OutcomeMatched && r.UserID != ""
}

// UserIDPtr returns the resolved user as a nullable reference
func (r Result) UserIDPtr() *string {
	if !r.Matched() {
		return nil
	}
	id := r.UserID
	return &id
}

type candidate struct {
	user *domain.User
	name string
}

// Matcher holds the candidate directory indexed for one matching pass.
// It is read-only after construction and safe for concurrent use.
type Matcher struct {
	writerIPI    map[string][]*domain.User
	publisherIPI map[string][]*domain.User
	names        []candidate
	cfg          Config
}

// New indexes users by normalized writer and publisher IPI. The order of users
// is the directory order used for ties and must be stable between runs.
func New(users []*domain.User, cfg Config) *Matcher {
	if !cfg.Threshold.IsPositive() {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.TiePolicy == "" {
		cfg.TiePolicy = TiePolicyFlag
	}

	m := &Matcher{
		writerIPI:    make(map[string][]*domain.User),
		publisherIPI: make(map[string][]*domain.User),
		names:        make([]candidate, 0, len(users)),
		cfg:          cfg,
	}
	for _, u := range users {
		if ipi := u.GetWriterIPI(); domain.IsValidIPI(ipi) {
			key := domain.NormalizeIPI(ipi)
			m.writerIPI[key] = append(m.writerIPI[key], u)
		}
		if ipi := u.GetPublisherIPI(); domain.IsValidIPI(ipi) {
			key := domain.NormalizeIPI(ipi)
			m.publisherIPI[key] = append(m.publisherIPI[key], u)
		}
		if name := domain.NormalizeName(u.FullName); name != "" {
			m.names = append(m.names, candidate{user: u, name: name})
		}
	}
	return m
}

// Match resolves a claim. Writer IPI is tried against writer IPIs, then
// publisher IPI against publisher IPIs, then writer IPI against publisher IPIs
// for exports that put a publisher number in the writer column. Only when no
// identifier hits does name similarity run.
func (m *Matcher) Match(claim domain.Claim) Result {
	lookups := []struct {
		ipi    string
		index  map[string][]*domain.User
		method domain.MatchMethod
		label  string
	}{
		{ipi: claim.IPINumber, index: m.writerIPI, method: domain.MatchMethodWriterIPI, label: "writer IPI"},
		{ipi: claim.PublisherIPINumber, index: m.publisherIPI, method: domain.MatchMethodPublisherIPI, label: "publisher IPI"},
		{ipi: claim.IPINumber, index: m.publisherIPI, method: domain.MatchMethodPublisherIPI, label: "writer IPI on publisher account"},
	}
	for _, l := range lookups {
		if !domain.IsValidIPI(l.ipi) {
			continue
		}
		key := domain.NormalizeIPI(l.ipi)
		users := l.index[key]
		if len(users) == 0 {
			continue
		}
		return m.decide(users, one, l.method, fmt.Sprintf("%s %s", l.label, key))
	}

	return m.matchName(claim.Name)
}

func (m *Matcher) matchName(raw string) Result {
	name := domain.NormalizeName(raw)
	if name == "" {
		return Result{
			Outcome:    OutcomeUnmatched,
			Method:     domain.MatchMethodNone,
			Confidence: decimal.Zero,
			Reason:     "no usable IPI and no name",
		}
	}

	var (
		best      []*domain.User
		bestScore decimal.Decimal
	)
	for _, c := range m.names {
		score, ok := m.similar(name, c.name)
		if !ok {
			continue
		}
		switch {
		case best == nil || score.GreaterThan(bestScore):
			best, bestScore = []*domain.User{c.user}, score
		case score.Equal(bestScore):
			best = append(best, c.user)
		}
	}

	if best == nil {
		return Result{
			Outcome:    OutcomeUnmatched,
			Method:     domain.MatchMethodNone,
			Confidence: decimal.Zero,
			Reason:     fmt.Sprintf("no name reached similarity %s for %q", m.cfg.Threshold.String(), raw),
		}
	}
	return m.decide(best, bestScore, domain.MatchMethodName,
		fmt.Sprintf("name similarity %s for %q", bestScore.StringFixed(4), raw))
}

// similar returns the normalized Levenshtein similarity 1 - distance/maxLength
// and whether it reaches the threshold. The threshold comparison is exact.
func (m *Matcher) similar(a, b string) (decimal.Decimal, bool) {
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return decimal.Zero, false
	}
	dist := levenshtein.ComputeDistance(a, b)
	same := decimal.NewFromInt(int64(maxLen - dist))
	length := decimal.NewFromInt(int64(maxLen))
	if same.LessThan(m.cfg.Threshold.Mul(length)) {
		return decimal.Zero, false
	}
	return same.DivRound(length, 4), true
}

// decide applies the tie policy to the users sharing the best evidence
func (m *Matcher) decide(users []*domain.User, confidence decimal.Decimal, method domain.MatchMethod, reason string) Result {
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	if len(users) == 1 {
		return Result{
			Outcome:    OutcomeMatched,
			UserID:     users[0].ID,
			Method:     method,
			Confidence: confidence,
			Reason:     reason,
		}
	}
	if m.cfg.TiePolicy == TiePolicyFirst {
		return Result{
			Outcome:    OutcomeMatched,
			UserID:     users[0].ID,
			Method:     method,
			Confidence: confidence,
			Reason:     fmt.Sprintf("%s, first of %d tied candidates", reason, len(users)),
			Candidates: ids,
		}
	}
	return Result{
		Outcome:    OutcomeAmbiguous,
		Method:     domain.MatchMethodNone,
		Confidence: confidence,
		Reason:     fmt.Sprintf("%s, ambiguous between %d candidates", reason, len(users)),
		Candidates: ids,
	}
}

// MatchAny tries each claim in order and returns the first single resolution.
// An aggregated item may carry several claims; if any of them is ambiguous and
// none resolves, the ambiguity is reported.
func (m *Matcher) MatchAny(claims []domain.Claim) Result {
	fallback := Result{
		Outcome:    OutcomeUnmatched,
		Method:     domain.MatchMethodNone,
		Confidence: decimal.Zero,
		Reason:     "no claims",
	}
	resolved := ""
	var first Result
	for _, c := range claims {
		r := m.Match(c)
		switch r.Outcome {
		case OutcomeMatched:
			if resolved == "" {
				resolved, first = r.UserID, r
			} else if r.UserID != resolved {
				return Result{
					Outcome:    OutcomeAmbiguous,
					Method:     domain.MatchMethodNone,
					Confidence: decimal.Zero,
					Reason:     "claims resolve to different users",
					Candidates: domain.SortedUnique([]string{resolved, r.UserID}),
				}
			}
		case OutcomeAmbiguous:
			fallback = r
		default:
			if fallback.Outcome != OutcomeAmbiguous {
				fallback = r
			}
		}
	}
	if resolved != "" {
		return first
	}
	return fallback
}
