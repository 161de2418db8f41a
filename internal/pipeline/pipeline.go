// Package pipeline applies resolved expressive parameters to a baseline
// speech waveform.
//
// A [Pipeline] is a fixed, ordered chain of twelve stages. Each stage is
// skipped when its governing parameter is neutral. A stage that fails (by
// returning an error or panicking) is recorded as a [StageError] in the run
// [Report] and the waveform from before that stage is carried forward
// unchanged. A broken stage therefore never prevents delivery of the rest
// of the transform.
//
// Stages that need randomness draw from a [math/rand/v2.Rand] created per
// run, so a fixed seed (see [WithSeed]) yields identical output.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrWong99/emotivox/internal/observe"
	"github.com/MrWong99/emotivox/internal/resolve"
	"github.com/MrWong99/emotivox/pkg/audio"
)

// StageName identifies a pipeline stage.
type StageName string

// Stages in execution order.
const (
	StageSpeed       StageName = "speed"
	StagePitch       StageName = "pitch"
	StageVolume      StageName = "volume"
	StageEmphasis    StageName = "emphasis"
	StageTimbre      StageName = "timbre"
	StageEQ          StageName = "eq_profile"
	StageVariability StageName = "variability"
	StageEffect      StageName = "audio_effect"
	StageProsody     StageName = "prosody"
	StageSentence    StageName = "sentence_dynamics"
	StageLayering    StageName = "voice_layering"
	StageSpectral    StageName = "spectral_enhancement"
)

// Outcome is what happened to a stage during a run.
type Outcome int

const (
	Skipped Outcome = iota
	Applied
	Failed
)

// String returns "skipped", "applied" or "failed".
func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped"
	case Applied:
		return "applied"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// StageError records a failed stage. The waveform from before the stage
// was kept.
type StageError struct {
	Stage StageName
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageResult is the per-stage entry of a [Report].
type StageResult struct {
	Stage    StageName
	Outcome  Outcome
	Duration time.Duration
	Err      *StageError
}

// Report summarises one pipeline run.
type Report struct {
	Stages []StageResult
}

// Errors returns the stage errors of the run in order.
func (r Report) Errors() []*StageError {
	var errs []*StageError
	for _, s := range r.Stages {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

// Applied returns the names of stages that changed the waveform.
func (r Report) Applied() []StageName {
	var names []StageName
	for _, s := range r.Stages {
		if s.Outcome == Applied {
			names = append(names, s.Stage)
		}
	}
	return names
}

// Input is everything one run consumes.
type Input struct {
	Waveform *audio.Waveform
	Params   resolve.EffectiveParameters

	// Text is the source text; sentence dynamics map it onto time slices.
	Text string

	// Rand overrides the pipeline's random source for this run.
	Rand *rand.Rand
}

// runContext is passed to every stage.
type runContext struct {
	params resolve.EffectiveParameters
	text   string
	rng    *rand.Rand
}

type stage struct {
	name   StageName
	active func(*runContext) bool
	apply  func(*runContext, *audio.Waveform) (*audio.Waveform, error)
}

// FailureHook is called for every failed stage.
type FailureHook func(ctx context.Context, stage StageName, err error)

// Option is a functional option for configuring a [Pipeline].
type Option func(*Pipeline)

// WithLogger sets the logger used for stage diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithSeed makes every run start from the same PCG state, so identical
// inputs produce identical output.
func WithSeed(seed uint64) Option {
	return func(p *Pipeline) {
		p.newRand = func() *rand.Rand {
			return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
	}
}

// WithFailureHook registers a callback for failed stages (metrics).
func WithFailureHook(h FailureHook) Option {
	return func(p *Pipeline) {
		p.onFailure = h
	}
}

// Pipeline runs the ordered stage chain. It is safe for concurrent use;
// each run owns its waveforms and random source.
type Pipeline struct {
	stages    []stage
	logger    *slog.Logger
	newRand   func() *rand.Rand
	onFailure FailureHook
}

// New returns a pipeline with the standard twelve stages.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		stages: standardStages(),
		logger: slog.Default(),
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []StageName {
	names := make([]StageName, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.name
	}
	return names
}

// Run applies every active stage to in.Waveform in order and returns the
// final waveform. in.Waveform itself is never modified. Run does not fail:
// stage errors are reported in the [Report].
func (p *Pipeline) Run(ctx context.Context, in Input) (*audio.Waveform, Report) {
	rng := in.Rand
	if rng == nil {
		rng = p.newRand()
	}
	rc := &runContext{params: in.Params, text: in.Text, rng: rng}

	report := Report{Stages: make([]StageResult, 0, len(p.stages))}
	current := in.Waveform
	for _, s := range p.stages {
		if !s.active(rc) {
			report.Stages = append(report.Stages, StageResult{Stage: s.name, Outcome: Skipped})
			continue
		}

		start := time.Now()
		out, err := p.runStage(ctx, s, rc, current)
		res := StageResult{Stage: s.name, Duration: time.Since(start)}
		if err != nil {
			res.Outcome = Failed
			res.Err = &StageError{Stage: s.name, Err: err}
			p.logger.Warn("pipeline stage failed; keeping previous waveform",
				"stage", s.name,
				"format", audio.FormatOf(current).String(),
				"err", err,
			)
			if p.onFailure != nil {
				p.onFailure(ctx, s.name, err)
			}
		} else {
			res.Outcome = Applied
			current = out
		}
		report.Stages = append(report.Stages, res)
	}

	if current == in.Waveform {
		current = in.Waveform.Clone()
	}
	return current, report
}

func (p *Pipeline) runStage(ctx context.Context, s stage, rc *runContext, w *audio.Waveform) (out *audio.Waveform, err error) {
	_, span := observe.StartSpan(ctx, "pipeline."+string(s.name))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
		observe.FailSpan(span, err)
	}()

	span.SetAttributes(
		attribute.Int("audio.frames", w.Frames()),
		attribute.Int("audio.sample_rate", w.SampleRate),
	)
	out, err = s.apply(rc, w)
	if err == nil && out == nil {
		err = errors.New("stage returned no waveform")
	}
	return out, err
}
