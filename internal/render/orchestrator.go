package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/emotivox/internal/history"
	"github.com/MrWong99/emotivox/internal/observe"
	"github.com/MrWong99/emotivox/internal/pipeline"
	"github.com/MrWong99/emotivox/internal/preset"
	"github.com/MrWong99/emotivox/internal/resolve"
	"github.com/MrWong99/emotivox/pkg/provider/tts"
)

// DefaultSynthesisTimeout bounds the synthesis call when no timeout is
// configured.
const DefaultSynthesisTimeout = 30 * time.Second

// Recorder persists render outcomes. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (history.Entry, error)
}

// StateHook observes every state transition of every render.
type StateHook func(ctx context.Context, id string, s State)

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMetrics records render and synthesis instruments on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithRecorder stores every finished render.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithSynthesisTimeout bounds each synthesis call. Non-positive values
// keep the default.
func WithSynthesisTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithStateHook registers h for state transitions.
func WithStateHook(h StateHook) Option {
	return func(o *Orchestrator) {
		o.onState = h
	}
}

// Orchestrator runs renders. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	resolver *resolve.Resolver
	synth    tts.Synthesizer
	pipeline *pipeline.Pipeline
	exporter *Exporter

	logger   *slog.Logger
	metrics  *observe.Metrics
	recorder Recorder
	timeout  time.Duration
	onState  StateHook
	newID    func() string
}

// New wires an orchestrator from its collaborators.
func New(resolver *resolve.Resolver, synth tts.Synthesizer, pl *pipeline.Pipeline, exp *Exporter, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		synth:    synth,
		pipeline: pl,
		exporter: exp,
		logger:   slog.Default(),
		timeout:  DefaultSynthesisTimeout,
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Resolver returns the parameter resolver.
func (o *Orchestrator) Resolver() *resolve.Resolver { return o.resolver }

// Exporter returns the exporter.
func (o *Orchestrator) Exporter() *Exporter { return o.exporter }

// Render runs req to completion. The returned [Result] is always populated;
// the error is non-nil exactly when Result.Success is false.
func (o *Orchestrator) Render(ctx context.Context, req Request) (Result, error) {
	id := o.newID()
	ctx, span := observe.StartSpan(ctx, "render")
	defer span.End()
	span.SetAttributes(attribute.String("render.id", id))

	start := time.Now()
	if o.metrics != nil {
		o.metrics.ActiveRenders.Add(ctx, 1)
		defer o.metrics.ActiveRenders.Add(ctx, -1)
	}

	res, err := o.render(ctx, id, req)
	status := observe.StatusSuccess
	if err != nil {
		res.Success = false
		res.Error = err.Error()
		status = observe.StatusFailed
		if errors.Is(err, ErrEmptyInput) {
			status = observe.StatusEmpty
		}
		observe.FailSpan(span, err)
		o.transition(ctx, id, Failed)
		observe.WithTrace(ctx, o.logger).Warn("render failed", "id", id, "err", err)
	} else {
		res.Success = true
		o.transition(ctx, id, Done)
	}
	if o.metrics != nil {
		o.metrics.RecordRender(ctx, status, time.Since(start))
	}
	if !errors.Is(err, ErrEmptyInput) {
		o.record(ctx, res)
	}
	return res, err
}

func (o *Orchestrator) render(ctx context.Context, id string, req Request) (Result, error) {
	res := Result{ID: id, WordCount: WordCount(req.Text), Format: ParseFormat(req.Format)}

	o.transition(ctx, id, Validating)
	if strings.TrimSpace(req.Text) == "" {
		return res, &EmptyInputError{}
	}
	r := o.resolver.Resolve(req.resolveRequest())
	res.Language = r.Language
	res.VoiceType = r.VoiceType
	res.Emotion = r.Emotion
	res.Speed = r.Params.Speed
	res.Pitch = r.Params.Pitch
	res.Volume = r.Params.Volume
	res.AudioEffect = r.Params.AudioEffect
	res.Warnings = r.Warnings

	o.transition(ctx, id, Synthesizing)
	sctx, cancel := context.WithTimeout(ctx, o.timeout)
	synthStart := time.Now()
	baseline, err := o.synth.Synthesize(sctx, req.Text, r.Language)
	cancel()
	if err == nil && (baseline == nil || baseline.Frames() == 0) {
		err = errors.New("synthesizer returned no audio")
	}
	if o.metrics != nil {
		o.metrics.RecordSynthesis(ctx, o.synth.Name(), time.Since(synthStart), err)
	}
	if err != nil {
		return res, err
	}

	o.transition(ctx, id, Transforming)
	out, report := o.pipeline.Run(ctx, pipeline.Input{
		Waveform: baseline,
		Params:   r.Params,
		Text:     req.Text,
	})
	for _, se := range report.Errors() {
		res.StageErrors = append(res.StageErrors, se.Error())
	}

	o.transition(ctx, id, Exporting)
	name := FileName(r.Language, r.VoiceType, r.Emotion, id, res.Format)
	path, err := o.exporter.Export(ctx, out, name, res.Format)
	if err != nil {
		return res, err
	}
	res.FilePath = path
	res.DurationSeconds = out.Seconds()
	return res, nil
}

// ManipulateRequest edits a previously rendered file.
type ManipulateRequest struct {
	AudioPath       string  `json:"audio_path"`
	Speed           float64 `json:"speed"`
	Pitch           float64 `json:"pitch"`
	Volume          float64 `json:"volume"`
	EQBass          float64 `json:"eq_bass"`
	EQMid           float64 `json:"eq_mid"`
	EQTreble        float64 `json:"eq_treble"`
	EffectType      string  `json:"effect_type"`
	EffectIntensity float64 `json:"effect_intensity"`
}

// ManipulateResult is the outcome of [Orchestrator.Manipulate].
type ManipulateResult struct {
	Success         bool    `json:"success"`
	FilePath        string  `json:"file_path,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// Manipulate loads a rendered file, applies the requested adjustments and
// exports the result as a new file in the same format.
func (o *Orchestrator) Manipulate(ctx context.Context, req ManipulateRequest) (ManipulateResult, error) {
	ctx, span := observe.StartSpan(ctx, "render.manipulate")
	defer span.End()

	res, err := o.manipulate(ctx, req)
	if err != nil {
		observe.FailSpan(span, err)
		res.Error = err.Error()
		return res, err
	}
	res.Success = true
	return res, nil
}

func (o *Orchestrator) manipulate(ctx context.Context, req ManipulateRequest) (ManipulateResult, error) {
	var res ManipulateResult

	effect := preset.Effect(strings.TrimSpace(req.EffectType))
	if effect != "" && !effect.IsKnown() {
		return res, fmt.Errorf("unknown audio effect %q", req.EffectType)
	}

	src, err := o.exporter.Locate(req.AudioPath)
	if err != nil {
		return res, err
	}
	w, format, err := Load(src)
	if err != nil {
		return res, fmt.Errorf("render: load %s: %w", req.AudioPath, err)
	}

	out, err := pipeline.Adjust(w, pipeline.Adjustments{
		Speed:           req.Speed,
		Pitch:           req.Pitch,
		Volume:          req.Volume,
		Bass:            req.EQBass,
		Mid:             req.EQMid,
		Treble:          req.EQTreble,
		Effect:          effect,
		EffectIntensity: req.EffectIntensity,
	}, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
	if err != nil {
		return res, fmt.Errorf("render: manipulate: %w", err)
	}

	name := fmt.Sprintf("manipulated_%s.%s", o.newID(), format)
	path, err := o.exporter.Export(ctx, out, name, format)
	if err != nil {
		return res, err
	}
	res.FilePath = path
	res.DurationSeconds = out.Seconds()
	return res, nil
}

func (o *Orchestrator) transition(ctx context.Context, id string, s State) {
	o.logger.Debug("render state", "id", id, "state", s.String())
	if o.onState != nil {
		o.onState(ctx, id, s)
	}
}

func (o *Orchestrator) record(ctx context.Context, res Result) {
	if o.recorder == nil {
		return
	}
	e := history.Entry{
		Success:         res.Success,
		FilePath:        res.FilePath,
		Language:        res.Language,
		VoiceType:       res.VoiceType,
		Emotion:         res.Emotion,
		Speed:           res.Speed,
		Pitch:           res.Pitch,
		Volume:          res.Volume,
		AudioEffect:     string(res.AudioEffect),
		Format:          string(res.Format),
		DurationSeconds: res.DurationSeconds,
		Error:           res.Error,
	}
	if id, err := uuid.Parse(res.ID); err == nil {
		e.ID = id
	}
	if _, err := o.recorder.Record(ctx, e); err != nil {
		o.logger.Warn("failed to record render history", "id", res.ID, "err", err)
	}
}
