// Package dispatch maps named tool operations onto the vault and transfer
// services. Every invocation is validated against a static schema, run under
// a timeout and answered with a text envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"social-custody-gateway/internal/observability"
	"social-custody-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds a handler when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Handler executes one validated operation.
type Handler func(ctx context.Context, args Args) (any, error)

// Operation is one entry of the dispatch table.
type Operation struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// OperationInfo describes an operation for discovery.
type OperationInfo struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Content is one block of an envelope.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the envelope returned for every invocation.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

// Outcome labels used in metrics.
const (
	outcomeCompleted = "completed"
	outcomeErrored   = "errored"
	outcomeTimedOut  = "timed_out"
	outcomeRejected  = "rejected"
)

// Dispatcher routes operation names to handlers.
type Dispatcher struct {
	ops     map[string]Operation
	timeout time.Duration
	metrics *observability.Metrics
	log     zerolog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(disp *Dispatcher) { disp.metrics = m }
}

// New builds a dispatcher over ops. Operation names must be unique.
func New(ops []Operation, log zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ops:     make(map[string]Operation, len(ops)),
		timeout: DefaultTimeout,
		log:     log.With().Str("component", "dispatcher").Logger(),
	}
	for _, op := range ops {
		if _, dup := d.ops[op.Name]; dup {
			panic(fmt.Sprintf("dispatch: duplicate operation %q", op.Name))
		}
		d.ops[op.Name] = op
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Operations lists the table sorted by name.
func (d *Dispatcher) Operations() []OperationInfo {
	infos := make([]OperationInfo, 0, len(d.ops))
	for _, op := range d.ops {
		infos = append(infos, OperationInfo{Name: op.Name, Description: op.Description, Params: op.Params})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

type handlerOutcome struct {
	value any
	err   error
}

// Dispatch runs one operation. It never returns an error; failures are
// reported inside the envelope.
//
// The handler runs detached from ctx cancellation. When the timeout fires
// first the caller gets TimedOut while the handler keeps running to
// completion in the background, so a transfer may still land after a
// TimedOut response.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params map[string]any) Result {
	start := time.Now()

	op, ok := d.ops[name]
	if !ok {
		d.metrics.ObserveDispatch("unknown", outcomeRejected, time.Since(start))
		return d.failure(name, apperror.ErrUnknownOperation(name))
	}

	args, err := validate(op.Params, params)
	if err != nil {
		d.metrics.ObserveDispatch(name, outcomeRejected, time.Since(start))
		return d.failure(name, err)
	}

	done := make(chan handlerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error().Str("operation", name).Interface("panic", r).Msg("handler panicked")
				done <- handlerOutcome{err: apperror.InternalError(fmt.Errorf("handler %s panicked: %v", name, r))}
			}
		}()
		value, err := op.Handler(context.WithoutCancel(ctx), args)
		done <- handlerOutcome{value: value, err: err}
	}()

	timer := time.NewTimer(d.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			d.metrics.ObserveDispatch(name, outcomeErrored, time.Since(start))
			return d.failure(name, out.err)
		}
		d.metrics.ObserveDispatch(name, outcomeCompleted, time.Since(start))
		return d.success(name, out.value)
	case <-timer.C:
		d.metrics.ObserveDispatch(name, outcomeTimedOut, time.Since(start))
		return d.failure(name, apperror.ErrTimedOut(name, d.timeout))
	}
}

func (d *Dispatcher) success(name string, value any) Result {
	text, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return d.failure(name, apperror.InternalError(fmt.Errorf("encode %s result: %w", name, err)))
	}
	return Result{Content: []Content{{Type: "text", Text: string(text)}}}
}

func (d *Dispatcher) failure(name string, err error) Result {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.InternalError(err)
	}

	evt := d.log.Warn()
	if appErr.Kind == apperror.KindInternal || appErr.Kind == apperror.KindCipherError {
		evt = d.log.Error()
	}
	evt.Err(err).Str("operation", name).Str("kind", string(appErr.Kind)).Msg("operation failed")

	return Result{
		Content: []Content{{Type: "text", Text: fmt.Sprintf("%s: %s", appErr.Kind, appErr.Message)}},
		IsError: true,
	}
}

// ErrorText returns the text of the first content block.
func (r Result) ErrorText() string {
	if !r.IsError || len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}
