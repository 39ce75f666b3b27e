package diagnostic

import (
	"context"
	"errors"
	"io"
	"time"

	"vdt/internal/catalog"
	"vdt/internal/models"
	"vdt/internal/obd"
	"vdt/internal/report"
	"vdt/pkg/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder stores completed checks.
type Recorder interface {
	Record(ctx context.Context, rec models.CheckRecord) error
}

// Result is the outcome of one check. Err is ErrNotConnected or
// ErrQueryFailed when the check short-circuited, or a file write error
// when codes were read but could not all be saved.
type Result struct {
	models.CheckRecord
	Err error
}

type Option func(*Workflow)

// WithRecorder stores every check in r.
func WithRecorder(r Recorder) Option {
	return func(w *Workflow) {
		w.recorder = r
	}
}

// WithClock replaces the clock used to stamp checks.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		w.now = now
	}
}

// Workflow runs a complete check: connect, read, describe, log, report.
type Workflow struct {
	connector *Connector
	reader    *Reader
	catalog   *catalog.Catalog
	sink      *report.Sink
	recorder  Recorder
	now       func() time.Time
}

func New(provider obd.OBDProvider, cat *catalog.Catalog, sink *report.Sink, console io.Writer, opts ...Option) *Workflow {
	w := &Workflow{
		connector: NewConnector(provider, console),
		reader:    NewReader(console),
		catalog:   cat,
		sink:      sink,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Check runs one check. Connection and query failures skip the log and
// report writes.
func (w *Workflow) Check(ctx context.Context) Result {
	res := Result{CheckRecord: models.CheckRecord{
		ID:        uuid.New().String(),
		CheckedAt: w.now(),
	}}
	log.Info("Starting check", zap.String("check_id", res.ID))

	conn, err := w.connector.Connect(ctx)
	if err != nil {
		res.Outcome = models.OutcomeNotConnected
		res.Err = err
		w.record(ctx, res.CheckRecord)
		return res
	}

	codes, err := w.reader.ReadCodes(ctx, conn)
	if cerr := conn.Close(); cerr != nil {
		log.Warn("Failed to close connection", zap.Error(cerr))
	}
	if err != nil {
		res.Outcome = models.OutcomeQueryFailed
		res.Err = err
		w.record(ctx, res.CheckRecord)
		return res
	}

	res.Outcome = models.OutcomeSuccess
	res.Entries = w.catalog.DescribeAll(codes)

	w.sink.LogCodes(res.Entries)
	if err := w.sink.GenerateReport(res.Entries); err != nil {
		log.Error("Failed to write report", zap.Error(err))
		res.Err = err
	}
	if err := w.sink.GeneratePDF(res.CheckRecord); err != nil {
		log.Error("Failed to write PDF report", zap.Error(err))
		res.Err = errors.Join(res.Err, err)
	}

	w.record(ctx, res.CheckRecord)
	log.Info("Check finished", zap.String("check_id", res.ID), zap.Int("codes", len(res.Entries)))
	return res
}

func (w *Workflow) record(ctx context.Context, rec models.CheckRecord) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.Record(ctx, rec); err != nil {
		log.Warn("Failed to record check", zap.String("check_id", rec.ID), zap.Error(err))
	}
}
