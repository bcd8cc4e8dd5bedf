package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Skufu/neurorisk/internal/catalog"
)

// Scorer is the remote model that predicts a risk percentage from a flat
// feature mapping keyed by FieldSpec.Feature.
type Scorer interface {
	Predict(ctx context.Context, test *catalog.Test, features map[string]float64) (Prediction, error)
}

// Recorder observes scoring outcomes.
type Recorder interface {
	ObserveAssessment(test string, source Source)
	ObserveRemoteFailure(test string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAssessment(string, Source) {}
func (nopRecorder) ObserveRemoteFailure(string)      {}

// Engine scores validated input. It holds no per-form state and is safe for
// concurrent use.
type Engine struct {
	scorer   Scorer
	logger   zerolog.Logger
	recorder Recorder
	now      func() time.Time
}

type Option func(*Engine)

func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(scorer Scorer, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		scorer:   scorer,
		logger:   logger,
		recorder: nopRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeRisk asks the remote model for a prediction. When the model fails and
// the test allows it, the local fallback result is returned with RemoteError
// set; otherwise the error is a *PredictionError. Caller cancellation is
// returned as is and never triggers the fallback.
func (e *Engine) ComputeRisk(ctx context.Context, test *catalog.Test, values map[string]float64) (*RiskAssessment, error) {
	features := make(map[string]float64, len(test.Fields))
	for _, f := range test.Fields {
		v, ok := values[f.Key]
		if !ok {
			return nil, fmt.Errorf("assessment: missing value for %q: %w", f.Key, ErrIncomplete)
		}
		features[f.Feature] = v
	}

	pred, err := e.scorer.Predict(ctx, test, features)
	if err == nil {
		conf := pred.Confidence
		ra := e.newAssessment(test, pred.RiskPercentage, remoteRiskLevel(pred.RiskPercentage), SourceRemote)
		ra.Confidence = &conf
		e.recorder.ObserveAssessment(test.ID, SourceRemote)
		return ra, nil
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}

	e.recorder.ObserveRemoteFailure(test.ID)
	if !test.Fallback {
		e.logger.Warn().Err(err).Str("test", test.ID).Msg("model prediction failed, no fallback for test")
		return nil, &PredictionError{Test: test.ID, Err: err}
	}

	e.logger.Warn().Err(err).Str("test", test.ID).Msg("model prediction failed, using local fallback")
	pct, breakdown := fallbackScore(test.Fields, values)
	ra := e.newAssessment(test, pct, fallbackRiskLevel(pct), SourceFallback)
	ra.RemoteError = PredictionFailedMessage
	ra.Breakdown = &breakdown
	e.recorder.ObserveAssessment(test.ID, SourceFallback)
	return ra, nil
}

func (e *Engine) newAssessment(test *catalog.Test, pct float64, level RiskLevel, src Source) *RiskAssessment {
	guidance := test.Guidance.Low
	if level == RiskHigh {
		guidance = test.Guidance.High
	}
	return &RiskAssessment{
		ID:             uuid.New(),
		Test:           test.ID,
		RiskPercentage: pct,
		RiskLevel:      level,
		Source:         src,
		Guidance:       append([]string(nil), guidance...),
		AssessedAt:     e.now().UTC(),
	}
}

// fallbackScore is 100 * sum / (fieldCount * fallbackMaxScore), rounded to
// two decimal places.
func fallbackScore(fields []catalog.FieldSpec, values map[string]float64) (float64, Breakdown) {
	sum := decimal.Zero
	for _, f := range fields {
		sum = sum.Add(decimal.NewFromFloat(values[f.Key]))
	}
	n := decimal.NewFromInt(int64(len(fields)))

	pct := sum.Mul(decimal.NewFromInt(100)).Div(n.Mul(decimal.NewFromInt(fallbackMaxScore))).Round(2)
	return pct.InexactFloat64(), Breakdown{
		TotalSum: sum.Round(2).InexactFloat64(),
		Average:  sum.Div(n).Round(2).InexactFloat64(),
	}
}
