// Package validate runs a batch of mod SQL against the schema model and a
// variant database. Every statement gets a Result; a failing statement never
// aborts the run.
package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/modlens/internal/graph"
	"github.com/dbsmedya/modlens/internal/logger"
	"github.com/dbsmedya/modlens/internal/schema"
	"github.com/dbsmedya/modlens/internal/simulate"
	"github.com/dbsmedya/modlens/internal/statement"
	"github.com/dbsmedya/modlens/internal/types"
)

// Status is the outcome of one statement.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusSkipped  Status = "skipped"
)

// Severity grades a Problem. Only errors reject a statement.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Problem is a typecheck finding on an INSERT record.
type Problem struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Record   int      `json:"record" yaml:"record"` // 1-based row of the VALUES list
	Column   string   `json:"column,omitempty" yaml:"column,omitempty"`
	Message  string   `json:"message" yaml:"message"`
}

// Source is one SQL script.
type Source struct {
	Name string
	SQL  string
}

// Result is the outcome of one statement.
type Result struct {
	File     string             `json:"file" yaml:"file"`
	Index    int                `json:"index" yaml:"index"` // 1-based within File
	SQL      string             `json:"sql" yaml:"sql"`
	Kind     string             `json:"kind" yaml:"kind"`
	Table    string             `json:"table,omitempty" yaml:"table,omitempty"`
	Status   Status             `json:"status" yaml:"status"`
	Records  []types.Record     `json:"-" yaml:"-"`
	Diff     types.MutationDiff `json:"diff,omitempty" yaml:"diff,omitempty"`
	Problems []Problem          `json:"problems,omitempty" yaml:"problems,omitempty"`
	Reason   string             `json:"reason,omitempty" yaml:"reason,omitempty"`
	Err      error              `json:"-" yaml:"-"`
}

// Summary counts results by status.
type Summary struct {
	Accepted int `json:"accepted" yaml:"accepted"`
	Rejected int `json:"rejected" yaml:"rejected"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Warnings int `json:"warnings" yaml:"warnings"`
}

// Report is the outcome of one validation run.
type Report struct {
	RunID       uuid.UUID     `json:"run_id" yaml:"run_id"`
	Variant     string        `json:"variant" yaml:"variant"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	CompletedAt time.Time     `json:"completed_at" yaml:"completed_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
	Results     []Result      `json:"results" yaml:"results"`
	Summary     Summary       `json:"summary" yaml:"summary"`

	// Index links the records of all accepted inserts.
	Index *graph.Index `json:"-" yaml:"-"`
	// AmbiguousPairs lists indexed child tables with several references to
	// the same parent; their edges cannot be told apart by table alone.
	AmbiguousPairs []graph.TablePair `json:"ambiguous_pairs,omitempty" yaml:"ambiguous_pairs,omitempty"`
}

// Failed reports whether any statement was rejected.
func (r *Report) Failed() bool {
	return r.Summary.Rejected > 0
}

// Records returns the records of all accepted inserts in run order.
func (r *Report) Records() []types.Record {
	var out []types.Record
	for _, res := range r.Results {
		if res.Status == StatusAccepted {
			out = append(out, res.Records...)
		}
	}
	return out
}

func (r *Report) add(res Result) {
	switch res.Status {
	case StatusAccepted:
		r.Summary.Accepted++
	case StatusRejected:
		r.Summary.Rejected++
	case StatusSkipped:
		r.Summary.Skipped++
	}
	for _, p := range res.Problems {
		if p.Severity == SeverityWarning {
			r.Summary.Warnings++
		}
	}
	r.Results = append(r.Results, res)
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(v *Validator) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithSimulator enables UPDATE and DELETE simulation. Without it mutations
// are skipped.
func WithSimulator(s *simulate.Simulator) Option {
	return func(v *Validator) {
		v.simulator = s
	}
}

// Validator classifies, typechecks and simulates statements.
type Validator struct {
	model       *schema.Model
	interpreter *statement.Interpreter
	simulator   *simulate.Simulator
	logger      *logger.Logger
}

// New creates a Validator over a model.
func New(model *schema.Model, opts ...Option) (*Validator, error) {
	if model == nil {
		return nil, fmt.Errorf("model is nil")
	}
	v := &Validator{
		model:       model,
		interpreter: statement.NewInterpreter(model),
		logger:      logger.NewDefault(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// LoadSources reads SQL files.
func LoadSources(paths []string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		sources = append(sources, Source{Name: path, SQL: string(data)})
	}
	return sources, nil
}

// Run validates every statement of every source against variant. Only a
// cancelled context stops the run early; the partial report is returned
// with the context error.
func (v *Validator) Run(ctx context.Context, variant string, sources []Source) (*Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		Variant:   variant,
		StartedAt: time.Now(),
	}
	log := v.logger.WithVariant(variant).WithFields(map[string]interface{}{"run_id": report.RunID.String()})
	log.Infow("Starting validation run", "sources", len(sources))

	defer func() {
		report.CompletedAt = time.Now()
		report.Duration = report.CompletedAt.Sub(report.StartedAt)
	}()

	for _, src := range sources {
		stmts, err := statement.Split(src.SQL)
		if err != nil {
			log.Errorw("Failed to split script", "file", src.Name, "error", err)
			report.add(Result{File: src.Name, Kind: "script", Status: StatusRejected, Reason: err.Error(), Err: err})
			continue
		}

		for i, sql := range stmts {
			if err := ctx.Err(); err != nil {
				v.finish(report, log)
				return report, err
			}
			res := v.check(ctx, log.WithStatement(src.Name, i+1), variant, sql)
			res.File, res.Index = src.Name, i+1
			report.add(res)
		}
	}

	v.finish(report, log)
	return report, nil
}

func (v *Validator) finish(report *Report, log *logger.Logger) {
	report.Index = graph.BuildIndex(report.Records(), v.model)
	report.AmbiguousPairs = report.Index.AmbiguousPairs(v.model)
	for _, p := range report.AmbiguousPairs {
		log.Warnw("Child table references the same parent through several columns",
			"parent", p.Parent, "child", p.Child, "columns", p.Columns)
	}

	log.Infow("Validation run complete",
		"accepted", report.Summary.Accepted,
		"rejected", report.Summary.Rejected,
		"skipped", report.Summary.Skipped,
		"warnings", report.Summary.Warnings,
		"references", report.Index.EdgeCount(),
	)
}

func (v *Validator) check(ctx context.Context, log *logger.Logger, variant, sql string) Result {
	res := Result{SQL: sql}

	c, err := v.interpreter.Interpret(sql, variant)
	if err != nil {
		log.Debugw("Statement rejected", "error", err)
		return reject(res, "invalid", err)
	}

	switch c := c.(type) {
	case *statement.Insert:
		res.Kind, res.Table, res.Records = "insert", c.Table, c.Records
		res.Problems = v.typecheck(c)
		res.Status = StatusAccepted
		for _, p := range res.Problems {
			if p.Severity == SeverityError {
				res.Status = StatusRejected
				break
			}
		}
		log.WithTable(c.Table).Debugw("Insert checked", "records", len(c.Records), "problems", len(res.Problems))

	case *statement.Mutation:
		res.Kind = "update"
		if c.Kind == statement.MutationDelete {
			res.Kind = "delete"
		}
		if shape, err := statement.ParseMutation(c.SQL); err == nil {
			res.Table = shape.Table
		}
		if v.simulator == nil {
			res.Status, res.Reason = StatusSkipped, "no variant database to simulate against"
			return res
		}
		diff, err := v.simulator.Simulate(ctx, c)
		if err != nil {
			log.Debugw("Simulation rejected statement", "error", err)
			return reject(res, res.Kind, err)
		}
		res.Status, res.Diff = StatusAccepted, diff

	case *statement.Unsupported:
		res.Kind, res.Status, res.Reason = "unsupported", StatusSkipped, c.Reason
		log.Debugw("Statement skipped", "reason", c.Reason)
	}
	return res
}

func reject(res Result, kind string, err error) Result {
	res.Kind, res.Status, res.Reason, res.Err = kind, StatusRejected, err.Error(), err
	var serr *types.SchemaError
	if errors.As(err, &serr) && serr.Table != "" && res.Table == "" {
		res.Table = serr.Table
	}
	return res
}

// typecheck reports required columns an INSERT leaves out (errors) and
// literal values whose kind does not fit the column type (warnings).
func (v *Validator) typecheck(ins *statement.Insert) []Problem {
	var problems []Problem
	required := v.model.RequiredColumns(ins.Table)

	for i, rec := range ins.Records {
		for _, col := range required {
			if _, ok := rec.Get(col); !ok {
				problems = append(problems, Problem{
					Severity: SeverityError,
					Record:   i + 1,
					Column:   col,
					Message:  fmt.Sprintf("missing required column %s.%s", ins.Table, col),
				})
			}
		}
		for _, col := range rec.Columns() {
			val, _ := rec.Get(col)
			ct, err := v.model.ColumnType(ins.Table, col)
			if err != nil || ct.Accepts(val) {
				continue
			}
			problems = append(problems, Problem{
				Severity: SeverityWarning,
				Record:   i + 1,
				Column:   col,
				Message:  fmt.Sprintf("%s.%s is %s but got %s %s", ins.Table, col, ct, val.Kind, val.SQL()),
			})
		}
	}
	return problems
}
