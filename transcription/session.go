package transcription

import (
	"context"
	"fmt"
	"iter"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/pilgi/errors"
	"github.com/kbukum/pilgi/logger"
	"github.com/kbukum/pilgi/observability"
	"github.com/kbukum/pilgi/provider"
	"github.com/kbukum/pilgi/resilience"
)

var _ provider.Iterator[ProgressEvent] = (*Stream)(nil)

// Texts rendered by a session.
const (
	TextNoInput      = "Please upload an audio or video file."
	TextStarting     = "🔄 Starting transcription..."
	TextFirstRunHint = "\n(The first run may take 2-3 minutes while the model downloads)"
	TextAnalyzing    = "🔄 Analyzing audio file..."
	TextConverting   = "🔄 Converting to text..."
	TextEmptyResult  = "[no transcription result]"

	// SuccessMarker opens the footer of every terminal success text.
	SuccessMarker = "\n\n---\n✅ "
)

// Session outcomes recorded in logs, spans and metrics.
const (
	OutcomeInvalid   = "invalid"
	OutcomeNotReady  = "not_ready"
	OutcomeRejected  = "rejected"
	OutcomeFault     = "fault"
	OutcomeEmpty     = "empty"
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
)

// DefaultPacing is the delay between rendered tokens.
const DefaultPacing = 30 * time.Millisecond

// Fractions of the invocation phase.
const (
	fractionStarting   = 0.0
	fractionAnalyzing  = 0.3
	fractionConverting = 0.6
	fractionRendering  = 1.0 - fractionConverting
)

type stage int

const (
	stageValidate stage = iota
	stageAnalyze
	stageConvert
	stageInvoke
	stageRender
	stageFooter
	stageDone
)

// SessionOption configures a Stream.
type SessionOption func(*Stream)

// WithPacing sets the delay between rendered tokens. Zero disables pacing.
func WithPacing(d time.Duration) SessionOption {
	return func(s *Stream) {
		if d >= 0 {
			s.pacing = d
		}
	}
}

// WithClock replaces the wall clock used for the elapsed time.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Stream) { s.now = now }
}

// WithSessionID sets the id used in logs and spans.
func WithSessionID(id string) SessionOption {
	return func(s *Stream) { s.id = id }
}

// WithFirstRunHint appends the model-download notice to the starting text.
func WithFirstRunHint(enabled bool) SessionOption {
	return func(s *Stream) { s.firstRunHint = enabled }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(l *logger.Logger) SessionOption {
	return func(s *Stream) { s.log = l }
}

// WithSessionMetrics records session outcomes and engine durations.
func WithSessionMetrics(m *observability.Metrics) SessionOption {
	return func(s *Stream) { s.metrics = m }
}

// WithServiceName sets the service name on session spans.
func WithServiceName(name string) SessionOption {
	return func(s *Stream) { s.service = name }
}

// Stream is one transcription session. It turns the engine's one-shot
// result into an ordered sequence of ProgressEvents ending in exactly one
// terminal event. A Stream is driven by a single consumer and is not safe
// for concurrent use.
type Stream struct {
	handle *EngineHandle
	req    Request

	id           string
	service      string
	pacing       time.Duration
	firstRunHint bool
	now          func() time.Time
	log          *logger.Logger
	metrics      *observability.Metrics

	stage    stage
	started  time.Time
	fraction float64
	language string
	tokens   []string
	next     int
	builder  strings.Builder

	op   *observability.Operation
	span trace.Span
}

// NewSession creates a session for req on handle. Nothing happens until the
// first Next; handle may be nil, in which case the session ends not-ready.
func NewSession(handle *EngineHandle, req Request, opts ...SessionOption) *Stream {
	s := &Stream{
		handle:  handle,
		req:     req,
		service: "pilgi",
		pacing:  DefaultPacing,
		now:     time.Now,
		log:     logger.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	s.log = s.log.WithComponent("transcription")
	return s
}

// ID returns the session id.
func (s *Stream) ID() string { return s.id }

// Next returns the next event. It returns ok=false once the terminal event
// has been delivered. If ctx ends, Next returns ctx.Err() and the session
// is over without a terminal event.
func (s *Stream) Next(ctx context.Context) (ProgressEvent, bool, error) {
	if s.stage == stageDone {
		return ProgressEvent{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		return s.cancel(ctx, err)
	}

	switch s.stage {
	case stageValidate:
		return s.begin(ctx)
	case stageAnalyze:
		s.stage = stageConvert
		return s.progress(fractionAnalyzing, PhaseAnalyzing, TextAnalyzing), true, nil
	case stageConvert:
		s.stage = stageInvoke
		return s.progress(fractionConverting, PhaseConverting, TextConverting), true, nil
	case stageInvoke:
		return s.invoke(ctx)
	case stageRender:
		if err := s.pace(ctx); err != nil {
			return s.cancel(ctx, err)
		}
		return s.renderToken(), true, nil
	case stageFooter:
		if err := s.pace(ctx); err != nil {
			return s.cancel(ctx, err)
		}
		return s.footer(ctx), true, nil
	}
	return ProgressEvent{}, false, nil
}

// Events returns the session as a range-over-func sequence. A cancellation
// error is yielded once as the last pair.
func (s *Stream) Events(ctx context.Context) iter.Seq2[ProgressEvent, error] {
	return provider.All[ProgressEvent](ctx, s)
}

// Close ends the session. A session abandoned before its terminal event is
// recorded as cancelled.
func (s *Stream) Close() error {
	if s.stage != stageDone && s.op != nil {
		s.finish(context.Background(), OutcomeCancelled, context.Canceled)
		s.log.Info("session abandoned", logger.Fields(logger.FieldSessionID, s.id))
	}
	s.stage = stageDone
	return nil
}

func (s *Stream) begin(ctx context.Context) (ProgressEvent, bool, error) {
	if strings.TrimSpace(s.req.AudioPath) == "" {
		s.reject(ctx, OutcomeInvalid)
		return ProgressEvent{
			Fraction: 0,
			Phase:    PhaseValidation,
			Text:     TextNoInput,
			Kind:     KindError,
			Terminal: true,
			Err:      errors.MissingField("file"),
		}, true, nil
	}

	if !s.handle.Ready() {
		s.reject(ctx, OutcomeNotReady)
		model := ""
		if s.handle != nil {
			model = s.handle.Name()
		}
		appErr := errors.EngineNotReady(model)
		return ProgressEvent{
			Fraction: 0,
			Phase:    PhaseNotReady,
			Text:     appErr.Message,
			Kind:     KindError,
			Terminal: true,
			Err:      appErr,
		}, true, nil
	}

	s.started = s.now()
	spanCtx, op := observability.BeginOperation(ctx, observability.SpanSession, s.service, logger.RequestIDFromContext(ctx), s.id, s.metrics)
	s.op, s.span = op, op.Span()
	if traceID, spanID := observability.TraceIDs(spanCtx); traceID != "" {
		s.log = s.log.WithContext(logger.ContextWithTrace(ctx, traceID, spanID))
	}
	s.span.SetAttributes(
		attribute.String(observability.AttrModel, s.handle.Name()),
		attribute.String(observability.AttrBackend, s.handle.Backend()),
		attribute.String(observability.AttrLanguage, s.req.LanguageOrAuto()),
	)
	s.log.Info("session started", logger.Fields(
		logger.FieldSessionID, s.id,
		logger.FieldModel, s.handle.Name(),
		logger.FieldAudioPath, s.req.AudioPath,
	))

	text := TextStarting
	if s.firstRunHint {
		text += TextFirstRunHint
	}
	s.stage = stageAnalyze
	return s.progress(fractionStarting, PhaseStarting, text), true, nil
}

type invocation struct {
	result *Result
	err    error
}

func (s *Stream) invoke(ctx context.Context) (ProgressEvent, bool, error) {
	engineCtx, cancel := context.WithCancel(trace.ContextWithSpan(ctx, s.span))
	defer cancel()

	done := make(chan invocation, 1)
	go func() {
		var inv invocation
		defer func() {
			if p := recover(); p != nil {
				inv = invocation{err: &panicError{value: p}}
			}
			done <- inv
		}()
		spanCtx, span := observability.StartSpan(engineCtx, observability.SpanEngine)
		defer span.End()
		start := time.Now()
		inv.result, inv.err = s.handle.invoke(spanCtx, s.req)
		if s.metrics != nil {
			s.metrics.RecordEngine(spanCtx, s.handle.Name(), time.Since(start))
		}
		if inv.err != nil {
			observability.SetSpanError(spanCtx, inv.err)
		}
	}()

	var inv invocation
	select {
	case inv = <-done:
	case <-ctx.Done():
		return s.cancel(ctx, ctx.Err())
	}

	if inv.err != nil {
		if ctx.Err() != nil {
			return s.cancel(ctx, ctx.Err())
		}
		return s.fault(ctx, inv.err), true, nil
	}
	if inv.result == nil {
		inv.result = &Result{}
	}

	s.language = inv.result.Language
	s.tokens = strings.Fields(inv.result.Text)
	if len(s.tokens) == 0 {
		return s.empty(ctx), true, nil
	}
	s.stage = stageRender
	return s.renderToken(), true, nil
}

func (s *Stream) renderToken() ProgressEvent {
	i := s.next
	s.builder.WriteString(s.tokens[i])
	s.builder.WriteByte(' ')
	s.next++
	if s.next == len(s.tokens) {
		s.stage = stageFooter
	}
	return s.event(tokenFraction(i, len(s.tokens)), PhaseWriting, s.builder.String(), KindToken)
}

// tokenFraction is the progress after rendering token i of n.
func tokenFraction(i, n int) float64 {
	if i+1 >= n {
		return 1.0
	}
	return fractionConverting + fractionRendering*float64(i+1)/float64(n)
}

func (s *Stream) footer(ctx context.Context) ProgressEvent {
	elapsed := s.now().Sub(s.started)
	summary := &Summary{
		Model:          s.handle.ShortName(),
		ModelID:        s.handle.Name(),
		Language:       s.language,
		Tokens:         len(s.tokens),
		Elapsed:        elapsed,
		ElapsedSeconds: math.Round(elapsed.Seconds()*10) / 10,
	}
	text := strings.Join(s.tokens, " ") + Footer(summary.Model, elapsed)

	s.span.SetAttributes(attribute.Int(observability.AttrTokens, len(s.tokens)))
	s.finish(ctx, OutcomeCompleted, nil)
	s.log.Info("session completed", logger.MergeWithDuration(logger.Fields(
		logger.FieldSessionID, s.id,
		logger.FieldTokens, len(s.tokens),
		logger.FieldOutcome, OutcomeCompleted,
	), elapsed))

	ev := s.event(1.0, PhaseDone, text, KindSuccess)
	ev.Terminal = true
	ev.Summary = summary
	return ev
}

// Footer renders the summary appended to a successful transcription.
func Footer(model string, elapsed time.Duration) string {
	return fmt.Sprintf("%sDone\nModel: %s | Elapsed: %.1fs", SuccessMarker, model, elapsed.Seconds())
}

func (s *Stream) empty(ctx context.Context) ProgressEvent {
	elapsed := s.now().Sub(s.started)
	s.finish(ctx, OutcomeEmpty, nil)
	s.log.Info("session produced no text", logger.MergeWithDuration(logger.Fields(
		logger.FieldSessionID, s.id,
		logger.FieldOutcome, OutcomeEmpty,
	), elapsed))

	ev := s.event(1.0, PhaseDone, TextEmptyResult, KindEmpty)
	ev.Terminal = true
	ev.Summary = &Summary{
		Model:          s.handle.ShortName(),
		ModelID:        s.handle.Name(),
		Language:       s.language,
		Elapsed:        elapsed,
		ElapsedSeconds: math.Round(elapsed.Seconds()*10) / 10,
	}
	return ev
}

func (s *Stream) fault(ctx context.Context, err error) ProgressEvent {
	category := FaultCategory(err)
	message := faultMessage(err)

	outcome := OutcomeFault
	var appErr *errors.AppError
	if resilience.IsRejected(err) {
		outcome = OutcomeRejected
		category = CategoryBusy
		message = "The model is busy with another transcription. Please try again shortly."
		appErr = errors.Busy(s.handle.Name()).WithCause(err)
	} else {
		appErr = errors.EngineFault(message, err)
	}
	appErr.WithDetails(map[string]any{
		"audio_path": s.req.AudioPath,
		"category":   category,
	})

	s.finish(ctx, outcome, err)
	s.log.Error("session failed", logger.Fields(
		logger.FieldSessionID, s.id,
		logger.FieldAudioPath, s.req.AudioPath,
		logger.FieldOutcome, outcome,
		"category", category,
		logger.FieldError, err.Error(),
	))

	ev := s.event(s.fraction, PhaseFailed, FaultText(message, s.req.AudioPath, category), KindError)
	ev.Terminal = true
	ev.Err = appErr
	return ev
}

// FaultText renders the error envelope shown for a failed session.
func FaultText(message, audioPath, category string) string {
	return fmt.Sprintf("❌ Error: %s\n\nDebug info:\n- File: %s\n- Error type: %s", message, audioPath, category)
}

func (s *Stream) reject(ctx context.Context, outcome string) {
	s.stage = stageDone
	if s.metrics != nil {
		s.metrics.RecordSessionOutcome(ctx, outcome)
	}
	s.log.Info("session rejected", logger.Fields(
		logger.FieldSessionID, s.id,
		logger.FieldOutcome, outcome,
	))
}

func (s *Stream) cancel(ctx context.Context, err error) (ProgressEvent, bool, error) {
	if s.op != nil {
		s.finish(context.WithoutCancel(ctx), OutcomeCancelled, err)
		s.log.Info("session cancelled", logger.Fields(
			logger.FieldSessionID, s.id,
			logger.FieldOutcome, OutcomeCancelled,
			logger.FieldTokens, s.next,
		))
	}
	s.stage = stageDone
	return ProgressEvent{}, false, err
}

func (s *Stream) finish(ctx context.Context, outcome string, err error) {
	s.stage = stageDone
	if s.op == nil {
		return
	}
	s.op.End(ctx, outcome, err)
	s.op = nil
}

// pace waits between successive rendered events.
func (s *Stream) pace(ctx context.Context) error {
	if s.pacing <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.pacing)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Stream) progress(fraction float64, phase, text string) ProgressEvent {
	return s.event(fraction, phase, text, KindProgress)
}

func (s *Stream) event(fraction float64, phase, text string, kind Kind) ProgressEvent {
	if fraction < s.fraction {
		fraction = s.fraction
	}
	s.fraction = fraction
	return ProgressEvent{
		Fraction: fraction,
		Phase:    phase,
		Text:     text,
		Kind:     kind,
	}
}
