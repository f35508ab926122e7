package backfill

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/services/matcher"
	"github.com/kevin07696/royalty-service/pkg/observability"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"go.uber.org/zap"
)

// LinkCredits links placement credits to users through the payee matcher.
// Credits that resolve to nobody are marked as external writers. Ambiguous
// credits stay unresolved for an operator to decide. Without force only
// unresolved credits are considered; operator links are never touched.
func (s *Service) LinkCredits(ctx context.Context, force, apply bool) (*domain.Report, error) {
	return s.run(ctx, JobLinkCredits, apply, func(ctx context.Context, report *domain.Report) error {
		credits, err := s.store.Credits.List(ctx, nil, !force)
		if err != nil {
			return err
		}
		m, _, err := s.newMatcher(ctx, nil)
		if err != nil {
			return err
		}

		for _, c := range credits {
			if err := ctx.Err(); err != nil {
				return err
			}
			if c.IsManual() && c.IsLinked() {
				report.Skipped++
				continue
			}

			r := m.Match(c.Claim())
			observability.RecordPayeeMatch(string(r.Outcome), string(r.Method))

			next := *c
			switch r.Outcome {
			case matcher.OutcomeMatched:
				report.Matched++
				next.UserID = r.UserIDPtr()
				next.MatchMethod = r.Method
				next.IsExternalWriter = false
			case matcher.OutcomeAmbiguous:
				report.Unmatched++
				s.logger.Warn("credit matches several users",
					zap.String("credit_id", c.ID),
					zap.String("name", c.Name),
					zap.Strings("candidates", r.Candidates))
				continue
			default:
				report.Unmatched++
				next.UserID = nil
				next.MatchMethod = domain.MatchMethodNone
				next.IsExternalWriter = true
			}

			if sameLink(c, &next) || !apply {
				continue
			}
			next.UpdatedAt = timeutil.Now()
			err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
				return s.store.Credits.Update(ctx, tx, &next)
			})
			if err != nil {
				report.Fail(c.ID, err)
				continue
			}
			report.Updated++
		}
		return nil
	})
}

func sameLink(a, b *domain.PlacementCredit) bool {
	return a.IsLinked() == b.IsLinked() &&
		(!a.IsLinked() || *a.UserID == *b.UserID) &&
		a.MatchMethod == b.MatchMethod &&
		a.IsExternalWriter == b.IsExternalWriter
}
