// Package enrich runs the second pass over reconciled records: one LLM query
// per firmographics field, update-worthiness gating, append-only news, and a
// per-company progress ledger so an interrupted batch resumes where it left
// off.
package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/firmographics-cli/internal/model"
	"github.com/sells-group/firmographics-cli/internal/reconcile"
	"github.com/sells-group/firmographics-cli/internal/resilience"
	"github.com/sells-group/firmographics-cli/internal/snapshot"
	"github.com/sells-group/firmographics-cli/pkg/perplexity"
)

// Status is the per-company state in an enrichment run. A failed company is
// retained as pending: it stays out of the ledger and a resumed run retries
// it.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

const (
	employeesPrompt = "For %s, return ONLY a JSON object within a code block containing the current employee count as a number (not string) STRICTLY using the following format. " +
		"Format: ```{\"total\": number}```"
	locationPrompt = "For %s, return ONLY a JSON object within a code block containing headquarters location STRICTLY with these exact keys: " +
		"country, city, state, postal_code, full_address. " +
		"Format: ```{\"country\": \"value\", \"city\": \"value\", \"state\": \"value\", \"postal_code\": \"value\", \"full_address\": \"value\"}```"
	revenuePrompt = "For %s, return ONLY a JSON object within a code block containing revenue data no older than 12 months, STRICTLY with these exact keys: " +
		"amount, currency, range. Use numerical values for amount. " +
		"Format: ```{\"amount\": number, \"currency\": \"value\", \"range\": \"value\"}```"
	newsPrompt = "For %s, return ONLY a JSON array within a code block of recent news items. " +
		"Each item must STRICTLY ONLY have these exact keys: source, date, title, url, type. " +
		"Do not include any explanations or additional context. " +
		"Type must be one of: M&A, Hiring, Security, Digital Transformation, Negative Customer Feedback, Negative Press Feedback, Other. " +
		"STRICTLY follow this format ONLY. " +
		"Format: ```[{\"source\": \"value\", \"date\": \"YYYY-MM-DD\", \"title\": \"value\", \"url\": \"value\", \"type\": \"value\"}]```"
)

// Options configures an enrichment run.
type Options struct {
	// EmployeeThreshold and RevenueThreshold are the relative-difference
	// gates for replacing an existing value. Zero means the 10% default.
	EmployeeThreshold float64
	RevenueThreshold  float64

	// SnapshotPath and LedgerPath are where progress is checkpointed after
	// every company.
	SnapshotPath string
	LedgerPath   string

	// Interactive routes replacement decisions through Resolver instead of
	// applying them directly.
	Interactive bool
	Resolver    reconcile.ConflictResolver

	// Retry governs the per-field ask loop: an unparseable completion is
	// re-asked with the same prompt up to MaxAttempts. Zero means the
	// default policy.
	Retry resilience.RetryConfig
}

// Enricher drives the per-company enrichment pass.
type Enricher struct {
	llm  perplexity.Client
	opts Options
}

// New creates an enricher backed by the given LLM client.
func New(llm perplexity.Client, opts Options) *Enricher {
	if opts.EmployeeThreshold <= 0 {
		opts.EmployeeThreshold = 0.10
	}
	if opts.RevenueThreshold <= 0 {
		opts.RevenueThreshold = 0.10
	}
	if opts.Retry.MaxAttempts == 0 && opts.Retry.BaseDelay == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("perplexity", "enrich_field")
	}
	return &Enricher{llm: llm, opts: opts}
}

// Run enriches every record not yet in the progress ledger, persisting the
// snapshot and ledger after each company. With resume set, the ledger from a
// previous interrupted run is honored; otherwise the pass starts fresh. The
// ledger file is deleted once every company has completed.
func (e *Enricher) Run(ctx context.Context, records []model.CompanyRecord, resume bool) error {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	ledger := snapshot.NewLedger()
	if resume {
		loaded, err := snapshot.LoadLedger(e.opts.LedgerPath)
		if err != nil {
			return err
		}
		ledger = loaded
	}

	log.Info("starting enrichment pass",
		zap.Int("companies", len(records)),
		zap.Int("already_done", ledger.Len()),
	)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "enrich: run canceled")
		}

		rec := &records[i]
		if ledger.Has(rec.EntityName) {
			log.Debug("company already enriched, skipping",
				zap.String("company", rec.EntityName))
			continue
		}

		log.Info("enriching company",
			zap.String("company", rec.EntityName),
			zap.String("status", string(StatusInProgress)),
		)

		if err := e.enrichCompany(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return err
			}
			log.Error("company enrichment failed, will retry on next run",
				zap.String("company", rec.EntityName),
				zap.String("status", string(StatusFailed)),
				zap.Error(err),
			)
			continue
		}

		ledger.Add(rec.EntityName)
		if err := snapshot.SaveRecords(e.opts.SnapshotPath, records); err != nil {
			return err
		}
		if err := snapshot.SaveLedger(e.opts.LedgerPath, ledger); err != nil {
			return err
		}

		log.Info("company enriched",
			zap.String("company", rec.EntityName),
			zap.String("status", string(StatusDone)),
		)
	}

	if ledger.Len() >= len(records) {
		if err := snapshot.DeleteLedger(e.opts.LedgerPath); err != nil {
			return err
		}
		log.Info("enrichment pass complete, ledger cleared")
	} else {
		log.Warn("enrichment pass finished with pending companies",
			zap.Int("pending", len(records)-ledger.Len()))
	}
	return nil
}

// enrichCompany fetches fresh values for each field and applies the
// update-worthiness rules. A field-level fetch or parse failure that
// survives the retry budget degrades to "no fresh value" for that field
// only.
func (e *Enricher) enrichCompany(ctx context.Context, rec *model.CompanyRecord) error {
	log := zap.L().With(zap.String("company", rec.EntityName))

	if err := e.enrichEmployees(ctx, rec, log); err != nil {
		return err
	}
	if err := e.enrichLocation(ctx, rec, log); err != nil {
		return err
	}
	if err := e.enrichRevenue(ctx, rec, log); err != nil {
		return err
	}
	if err := e.enrichNews(ctx, rec, log); err != nil {
		return err
	}

	rec.Normalize()
	return nil
}

func (e *Enricher) enrichEmployees(ctx context.Context, rec *model.CompanyRecord, log *zap.Logger) error {
	fresh, err := fetchField(ctx, e, fmt.Sprintf(employeesPrompt, rec.EntityName), parseEmployees)
	if err != nil {
		return e.fieldFailure(ctx, "employees", err, log)
	}
	if fresh <= 0 || fresh == rec.Employees.Total {
		return nil
	}
	if !reconcile.ShouldUpdateEmployees(rec.Employees.Total, fresh, e.opts.EmployeeThreshold) {
		return nil
	}

	current := model.Employees{Total: rec.Employees.Total, ITStaff: rec.Employees.ITStaff}
	candidate := model.Employees{Total: fresh, ITStaff: rec.Employees.ITStaff}
	if e.opts.Interactive && e.opts.Resolver != nil && current.Total > 0 {
		choice, err := e.opts.Resolver.Resolve(ctx, reconcile.FieldEmployees, rec.EntityName, current, candidate)
		if err != nil {
			return err
		}
		if choice != reconcile.ChoiceCandidate {
			return nil
		}
	}
	log.Info("updating employee total",
		zap.Int("from", rec.Employees.Total), zap.Int("to", fresh))
	rec.Employees.Total = fresh
	return nil
}

func (e *Enricher) enrichLocation(ctx context.Context, rec *model.CompanyRecord, log *zap.Logger) error {
	fresh, err := fetchField(ctx, e, fmt.Sprintf(locationPrompt, rec.EntityName), parseLocation)
	if err != nil {
		return e.fieldFailure(ctx, "location", err, log)
	}
	if fresh.Empty() {
		return nil
	}
	if rec.HQAddress != nil && *rec.HQAddress == *fresh {
		return nil
	}
	if !reconcile.ShouldUpdateLocation(rec.HQAddress, fresh) {
		return nil
	}

	if e.opts.Interactive && e.opts.Resolver != nil && !rec.HQAddress.Empty() {
		choice, err := e.opts.Resolver.Resolve(ctx, reconcile.FieldLocation, rec.EntityName, rec.HQAddress, fresh)
		if err != nil {
			return err
		}
		if choice != reconcile.ChoiceCandidate {
			return nil
		}
	}
	log.Info("updating headquarters address",
		zap.Int("from_fields", rec.HQAddress.FieldCount()),
		zap.Int("to_fields", fresh.FieldCount()))
	rec.HQAddress = fresh
	return nil
}

func (e *Enricher) enrichRevenue(ctx context.Context, rec *model.CompanyRecord, log *zap.Logger) error {
	fresh, err := fetchField(ctx, e, fmt.Sprintf(revenuePrompt, rec.EntityName), parseRevenue)
	if err != nil {
		return e.fieldFailure(ctx, "revenue", err, log)
	}
	if fresh.Empty() {
		return nil
	}
	if rec.Revenue != nil && *rec.Revenue == *fresh {
		return nil
	}
	if !reconcile.ShouldUpdateRevenue(rec.Revenue, fresh, e.opts.RevenueThreshold) {
		return nil
	}

	if e.opts.Interactive && e.opts.Resolver != nil && !rec.Revenue.Empty() {
		choice, err := e.opts.Resolver.Resolve(ctx, reconcile.FieldRevenue, rec.EntityName, rec.Revenue, fresh)
		if err != nil {
			return err
		}
		if choice != reconcile.ChoiceCandidate {
			return nil
		}
	}
	fromAmount := 0.0
	if rec.Revenue != nil {
		fromAmount = rec.Revenue.Amount
	}
	log.Info("updating revenue",
		zap.Float64("from", fromAmount),
		zap.Float64("to", fresh.Amount))
	rec.Revenue = fresh
	return nil
}

func (e *Enricher) enrichNews(ctx context.Context, rec *model.CompanyRecord, log *zap.Logger) error {
	items, err := fetchField(ctx, e, fmt.Sprintf(newsPrompt, rec.EntityName), parseNews)
	if err != nil {
		return e.fieldFailure(ctx, "news", err, log)
	}

	before := len(rec.NewsUpdates)
	rec.NewsUpdates = reconcile.MergeNews(rec.NewsUpdates, items)
	if added := len(rec.NewsUpdates) - before; added > 0 {
		log.Info("appended news updates", zap.Int("added", added))
	}
	return nil
}

// parseFailure marks a completion the field parser rejected, so the fetch
// loop re-asks with the same prompt.
type parseFailure struct{ err error }

func (p *parseFailure) Error() string { return p.err.Error() }
func (p *parseFailure) Unwrap() error { return p.err }

// fetchField asks for one field and parses the reply, re-asking when the
// reply is unusable. Transport errors are not re-asked here; the LLM client
// has already retried those before returning.
func fetchField[T any](ctx context.Context, e *Enricher, prompt string, parse func(string) (T, error)) (T, error) {
	cfg := e.opts.Retry
	cfg.ShouldRetry = func(err error) bool {
		var pf *parseFailure
		return errors.As(err, &pf)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (T, error) {
		var zero T
		content, err := e.ask(ctx, prompt)
		if err != nil {
			return zero, err
		}
		val, err := parse(content)
		if err != nil {
			return zero, &parseFailure{err: err}
		}
		return val, nil
	})
}

// ask sends one user prompt and returns the completion text.
func (e *Enricher) ask(ctx context.Context, prompt string) (string, error) {
	temperature := 0.1
	resp, err := e.llm.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Messages:    []perplexity.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// fieldFailure degrades an exhausted field fetch to "no fresh value" unless
// the run itself is being canceled.
func (e *Enricher) fieldFailure(ctx context.Context, field string, err error, log *zap.Logger) error {
	if ctx.Err() != nil {
		return err
	}
	log.Warn("field fetch failed, keeping current value",
		zap.String("field", field), zap.Error(err))
	return nil
}
