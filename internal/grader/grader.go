// Package grader runs one handwriting evaluation: content gate, preprocessing,
// classification and scoring.
package grader

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/hwr-api/internal/preprocess"
	"github.com/Brownie44l1/hwr-api/internal/scoring"
)

// Classifier maps a normalized tensor to one score per label. It is the only
// blocking step of an evaluation and should honor ctx cancellation.
type Classifier interface {
	Classify(ctx context.Context, tensor preprocess.Tensor) ([]float32, error)
}

type ClassifierFunc func(ctx context.Context, tensor preprocess.Tensor) ([]float32, error)

func (f ClassifierFunc) Classify(ctx context.Context, tensor preprocess.Tensor) ([]float32, error) {
	return f(ctx, tensor)
}

// Inspector receives the normalized and smoothed image of each evaluation
// that reaches the classifier.
type Inspector func(img *preprocess.PixelBuffer)

type Config struct {
	Preprocess preprocess.Options
	Scoring    scoring.Options
}

func DefaultConfig() Config {
	return Config{
		Preprocess: preprocess.DefaultOptions(),
		Scoring:    scoring.DefaultOptions(),
	}
}

type Grader struct {
	classifier Classifier
	labels     []string
	cfg        Config
	log        *logrus.Logger
	inspect    Inspector
}

type Option func(*Grader)

func WithLogger(log *logrus.Logger) Option {
	return func(g *Grader) { g.log = log }
}

func WithInspector(fn Inspector) Option {
	return func(g *Grader) { g.inspect = fn }
}

// New builds a Grader. A nil classifier is allowed; evaluations then fail
// with ErrClassifierUnavailable after the content gate.
func New(classifier Classifier, labels []string, cfg Config, opts ...Option) *Grader {
	g := &Grader{
		classifier: classifier,
		labels:     append([]string(nil), labels...),
		cfg:        cfg,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logrus.New()
		g.log.SetLevel(logrus.WarnLevel)
	}
	return g
}

func (g *Grader) Labels() []string {
	return append([]string(nil), g.labels...)
}

func (g *Grader) Config() Config { return g.cfg }

func (g *Grader) Ready() bool { return g.classifier != nil }

// Evaluate grades buf against target. No partial verdict is ever returned:
// on error the verdict is nil.
func (g *Grader) Evaluate(ctx context.Context, buf *preprocess.PixelBuffer, target string) (*scoring.Verdict, error) {
	pre := g.cfg.Preprocess
	if !preprocess.HasContent(buf, pre.Threshold, pre.MinStrokeArea) {
		return nil, ErrEmptyCanvas
	}
	if g.classifier == nil {
		return nil, ErrClassifierUnavailable
	}
	if g.cfg.Scoring.Strict && scoring.IndexOf(g.labels, target) < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, target)
	}

	res := preprocess.Run(buf, pre)
	g.log.WithFields(logrus.Fields{
		"width":  buf.Width,
		"height": buf.Height,
		"box":    res.Box,
		"crop":   res.Placement.Crop.String(),
		"scale":  res.Placement.Scale,
	}).Debug("[grader.Evaluate] preprocessed canvas")

	if g.inspect != nil {
		g.inspect(res.Image)
	}

	scores, err := g.classify(ctx, res.Tensor)
	if err != nil {
		return nil, err
	}

	verdict, err := scoring.NewVerdict(scores, g.labels, target, g.cfg.Scoring)
	if err != nil {
		return nil, err
	}

	g.log.WithFields(logrus.Fields{
		"target":    verdict.TargetLabel,
		"score":     verdict.ScorePercent,
		"tier":      verdict.Tier.String(),
		"predicted": verdict.Predicted,
	}).Info("[grader.Evaluate] verdict")
	return &verdict, nil
}

// Predict classifies an already-built tensor and ranks the result.
func (g *Grader) Predict(ctx context.Context, tensor preprocess.Tensor) ([]scoring.ClassScore, error) {
	if g.classifier == nil {
		return nil, ErrClassifierUnavailable
	}
	scores, err := g.classify(ctx, tensor)
	if err != nil {
		return nil, err
	}
	return scoring.Rank(scores, g.labels, g.cfg.Scoring.TopK), nil
}

func (g *Grader) classify(ctx context.Context, tensor preprocess.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	scores, err := g.classifier.Classify(ctx, tensor)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, err
	case errors.Is(err, ErrClassifierUnavailable):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}
	// An abandoned request discards whatever the classifier produced.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := scoring.Validate(scores, len(g.labels)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}
	return scores, nil
}
