package backfill

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/internal/domain/ports"
	"github.com/kevin07696/royalty-service/internal/services/parser"
	"github.com/kevin07696/royalty-service/internal/services/period"
	"github.com/kevin07696/royalty-service/pkg/timeutil"
	"go.uber.org/zap"
)

// BackfillPeriods runs period extraction again for every statement that has
// no period, using the rows kept in its raw metadata and its filename.
// Statements that still yield nothing are counted as unmatched.
func (s *Service) BackfillPeriods(ctx context.Context, apply bool) (*domain.Report, error) {
	return s.run(ctx, JobBackfillPeriods, apply, func(ctx context.Context, report *domain.Report) error {
		statements, err := s.store.Statements.List(ctx, nil, ports.StatementFilter{MissingPeriod: true})
		if err != nil {
			return err
		}

		for _, st := range statements {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, strategy, err := extractPeriod(st)
			if err != nil {
				report.Fail(st.ID, err)
				continue
			}
			if p == nil {
				report.Unmatched++
				continue
			}
			report.Matched++
			s.logger.Debug("period found",
				zap.String("statement_id", st.ID),
				zap.String("period", p.Label),
				zap.String("strategy", string(strategy)))
			if !apply {
				continue
			}

			written, err := s.setPeriod(ctx, st.ID, p)
			switch {
			case err != nil:
				report.Fail(st.ID, err)
			case written:
				report.Updated++
			default:
				report.Skipped++
			}
		}
		return nil
	})
}

func extractPeriod(st *domain.Statement) (*domain.Period, period.Strategy, error) {
	var items []domain.ParsedStatementItem
	if st.Metadata.HasRows() && parser.Supports(st.PROType) {
		parsed, err := parser.ParseMetadata(st.Metadata, st.PROType)
		if err != nil {
			return nil, period.StrategyNone, fmt.Errorf("re-parse stored rows: %w", err)
		}
		items = parsed.Items
	}
	p, strategy := period.Extract(st.PROType, items, st.Filename)
	return p, strategy, nil
}

// setPeriod writes p unless another run filled the period in the meantime
func (s *Service) setPeriod(ctx context.Context, statementID string, p *domain.Period) (bool, error) {
	written := false
	err := s.store.Tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		st, err := s.store.Statements.GetForUpdate(ctx, tx, statementID)
		if err != nil {
			return err
		}
		if st.HasPeriod() {
			return nil
		}
		st.SetPeriod(p)
		st.UpdatedAt = timeutil.Now()
		if err := s.store.Statements.Update(ctx, tx, st); err != nil {
			return fmt.Errorf("update statement period: %w", err)
		}
		written = true
		return nil
	})
	return written, err
}
