package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kevin07696/royalty-service/internal/app"
	"github.com/kevin07696/royalty-service/internal/config"
	"github.com/kevin07696/royalty-service/internal/domain"
	"github.com/kevin07696/royalty-service/pkg/resilience"
	"go.uber.org/zap"
)

// AdminCLI runs one operator action against the configured database
type AdminCLI struct {
	app    *app.App
	logger *zap.Logger
	out    *json.Encoder
}

type options struct {
	action      string
	file        string
	pro         string
	statementID string
	userID      string
	payoutID    string
	apply       bool
	force       bool
}

const usage = `Usage: admin -action=<action> [options]
Actions:
  ingest            - Parse a statement file into a DRAFT statement (-file, -pro)
  process           - Match payees and write statement items (-statement)
  publish           - Publish a processed statement (-statement)
  mark-paid         - Credit payees of a published statement (-statement)
  reconcile         - Recompute one user's balances (-user, -apply)
  reconcile-all     - Recompute every user's balances (-apply)
  fix-payout        - Cancel a held payout that has no transfer (-payout)
  link-credits      - Link placement credits to users (-force, -apply)
  relink-items      - Re-match unassigned items of a statement (-statement, -apply)
  backfill-periods  - Extract missing statement periods (-apply)
  backfill-invoices - Create missing invoices (-apply)
Without -apply the batch actions only report what they would change.`

func main() {
	var opts options
	flag.StringVar(&opts.action, "action", "", "Action to perform")
	flag.StringVar(&opts.file, "file", "", "Statement file for ingest")
	flag.StringVar(&opts.pro, "pro", "", "PRO of the statement file: BMI, ASCAP, SESAC, MLC")
	flag.StringVar(&opts.statementID, "statement", "", "Statement ID")
	flag.StringVar(&opts.userID, "user", "", "User ID")
	flag.StringVar(&opts.payoutID, "payout", "", "Payout request ID")
	flag.BoolVar(&opts.apply, "apply", false, "Write changes instead of reporting them")
	flag.BoolVar(&opts.force, "force", false, "Reconsider already linked credits")
	flag.Parse()

	if opts.action == "" {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := app.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := resilience.DefaultTimeoutConfig().JobContext(ctx)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer a.Close()

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	cli := &AdminCLI{app: a, logger: logger, out: out}

	result, err := cli.run(ctx, opts)
	if err != nil {
		cli.fail(err)
		return
	}
	if err := cli.out.Encode(result); err != nil {
		logger.Error("Failed to encode result", zap.Error(err))
	}
	if r, ok := result.(*domain.Report); ok && r.HasFailures() {
		os.Exit(2)
	}
}

func (cli *AdminCLI) run(ctx context.Context, opts options) (interface{}, error) {
	a := cli.app
	switch opts.action {
	case "ingest":
		if opts.file == "" {
			return nil, required("file")
		}
		if opts.pro == "" {
			return nil, required("pro")
		}
		content, err := os.ReadFile(opts.file)
		if err != nil {
			return nil, fmt.Errorf("read statement file: %w", err)
		}
		return a.Statements.Ingest(ctx, content, filepath.Base(opts.file), domain.ParsePROType(opts.pro))

	case "process":
		if opts.statementID == "" {
			return nil, required("statement")
		}
		return a.Statements.Process(ctx, opts.statementID)

	case "publish":
		if opts.statementID == "" {
			return nil, required("statement")
		}
		return a.Statements.Publish(ctx, opts.statementID)

	case "mark-paid":
		if opts.statementID == "" {
			return nil, required("statement")
		}
		return a.Statements.MarkPaid(ctx, opts.statementID)

	case "reconcile":
		if opts.userID == "" {
			return nil, required("user")
		}
		res, err := a.Reconciler.Reconcile(ctx, opts.userID)
		if err != nil || !opts.apply || !res.DiscrepancyFound {
			return res, err
		}
		return res, a.Reconciler.Apply(ctx, res)

	case "reconcile-all":
		report, discrepancies, err := a.Jobs.ReconcileAll(ctx, opts.apply)
		if err != nil {
			return nil, err
		}
		cli.logger.Info(report.Summary(), zap.Int("discrepancies", len(discrepancies)))
		if err := cli.out.Encode(discrepancies); err != nil {
			return nil, err
		}
		return report, nil

	case "fix-payout":
		if opts.payoutID == "" {
			return nil, required("payout")
		}
		return a.Reconciler.FixIncompletePayout(ctx, opts.payoutID)

	case "link-credits":
		return a.Jobs.LinkCredits(ctx, opts.force, opts.apply)

	case "relink-items":
		if opts.statementID == "" {
			return nil, required("statement")
		}
		return a.Jobs.RelinkStatementItems(ctx, opts.statementID, opts.apply)

	case "backfill-periods":
		return a.Jobs.BackfillPeriods(ctx, opts.apply)

	case "backfill-invoices":
		return a.Jobs.BackfillInvoices(ctx, opts.apply)

	default:
		return nil, fmt.Errorf("unknown action: %s\n\n%s", opts.action, usage)
	}
}

func required(flagName string) error {
	return domain.ErrValidationFailed.WithDetail("missing_flag", "-"+flagName)
}

// fail prints the error as JSON and exits non-zero
func (cli *AdminCLI) fail(err error) {
	resp := map[string]interface{}{
		"error": err.Error(),
	}
	if code := domain.GetErrorCode(err); code != "" {
		resp["code"] = code
	}
	_ = cli.out.Encode(resp)
	cli.logger.Error("Action failed", zap.Error(err))
	cli.app.Close()
	if domain.IsNotFoundError(err) {
		os.Exit(3)
	}
	os.Exit(1)
}
