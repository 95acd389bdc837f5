// Package mongostore implements the identity store contracts over MongoDB
// collections managed by package repository.
package mongostore

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tendant/simple-idm-mongo/pkg/domain"
	"github.com/tendant/simple-idm-mongo/pkg/store"
)

const tracerName = "github.com/tendant/simple-idm-mongo/pkg/mongostore"

// Options configures a store. Zero values select a discarding logger,
// a no-op observer and the global tracer provider.
type Options struct {
	Logger   *slog.Logger
	Observer store.Observer
	Tracer   trace.Tracer
}

type instrumentation struct {
	store    string
	logger   *slog.Logger
	observer store.Observer
	tracer   trace.Tracer
}

func newInstrumentation(name string, opts Options) instrumentation {
	in := instrumentation{
		store:    name,
		logger:   opts.Logger,
		observer: opts.Observer,
		tracer:   opts.Tracer,
	}
	if in.logger == nil {
		in.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if in.observer == nil {
		in.observer = store.NopObserver{}
	}
	if in.tracer == nil {
		in.tracer = otel.Tracer(tracerName)
	}
	in.logger = in.logger.With("store", name)
	return in
}

// operation tracks one traced and observed store call.
type operation struct {
	in    *instrumentation
	name  string
	span  trace.Span
	start time.Time
}

func (in *instrumentation) begin(ctx context.Context, op string) (context.Context, *operation) {
	ctx, span := in.tracer.Start(ctx, in.store+"."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "mongodb"),
			attribute.String("idstore.store", in.store),
		))
	return ctx, &operation{in: in, name: op, span: span, start: time.Now()}
}

func (o *operation) done(err error) {
	o.doneResult(domain.Success(), err)
}

func (o *operation) doneResult(res domain.Result, err error) {
	outcome := store.OutcomeOf(res, err)
	switch outcome {
	case store.OutcomeError:
		o.span.RecordError(err)
		o.span.SetStatus(codes.Error, err.Error())
	case store.OutcomeFailure:
		o.span.SetStatus(codes.Error, res.String())
		o.in.logger.Warn("store operation failed", "op", o.name, "result", res.String())
	}
	elapsed := time.Since(o.start)
	o.span.SetAttributes(attribute.String("idstore.outcome", string(outcome)))
	o.span.End()
	o.in.logger.Debug("store operation", "op", o.name, "outcome", string(outcome), "elapsed", elapsed)
	o.in.observer.ObserveOperation(o.in.store, o.name, outcome, elapsed)
}
