// Package matting turns a portrait into a foreground-only image: it sizes
// and normalises the picture for the network, asks an Engine for a matte
// and composites the source over a background using a cutoff threshold.
package matting

import (
	"context"
	"errors"
	"image"

	"github.com/sirupsen/logrus"
)

// Engine runs the matting network on a normalised tensor.
type Engine interface {
	Infer(ctx context.Context, input *Tensor) (*Matte, error)
}

// Pipeline is safe for concurrent use when its Engine is.
type Pipeline struct {
	engine        Engine
	referenceSize int
	logger        logrus.FieldLogger
}

type Option func(*Pipeline)

// WithReferenceSize overrides DefaultReferenceSize.
func WithReferenceSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.referenceSize = n
		}
	}
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPipeline(engine Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:        engine,
		referenceSize: DefaultReferenceSize,
		logger:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ReferenceSize reports the size the pipeline scales images towards.
func (p *Pipeline) ReferenceSize() int { return p.referenceSize }

// Prepare converts img into a pixel grid and the network input tensor.
func (p *Pipeline) Prepare(img image.Image) (*PixelGrid, *Tensor, error) {
	grid, err := FromImage(img)
	if err != nil {
		return nil, nil, err
	}
	geo, err := ComputeResizeGeometry(grid.Height, grid.Width, p.referenceSize)
	if err != nil {
		return nil, nil, err
	}
	p.logger.WithFields(logrus.Fields{
		"width":         grid.Width,
		"height":        grid.Height,
		"channels":      grid.Channels,
		"target_width":  geo.TargetWidth,
		"target_height": geo.TargetHeight,
	}).Debug("resize geometry")

	tensor, err := Normalize(grid, geo)
	if err != nil {
		return nil, nil, err
	}
	return grid, tensor, nil
}

// Infer validates the tensor, runs the engine and checks the matte covers
// the same plane as the input. Every failure is an InferenceError.
func (p *Pipeline) Infer(ctx context.Context, input *Tensor) (*Matte, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, inferenceFailed(err, "request cancelled")
	}

	matte, err := p.engine.Infer(ctx, input)
	if err != nil {
		var ie *InferenceError
		if errors.As(err, &ie) {
			return nil, err
		}
		return nil, inferenceFailed(err, "engine")
	}
	if err := matte.validate(); err != nil {
		return nil, err
	}
	if matte.Height != input.Height() || matte.Width != input.Width() {
		return nil, inferenceFailed(nil, "matte is %dx%d, input is %dx%d",
			matte.Width, matte.Height, input.Width(), input.Height())
	}
	return matte, nil
}

// Run produces the foreground of img over bg.
func (p *Pipeline) Run(ctx context.Context, img image.Image, threshold int, bg Background) (*image.NRGBA, error) {
	grid, tensor, err := p.Prepare(img)
	if err != nil {
		return nil, err
	}
	matte, err := p.Infer(ctx, tensor)
	if err != nil {
		return nil, err
	}
	out, err := CompositeForeground(matte, grid, threshold, bg)
	if err != nil {
		return nil, err
	}
	p.logger.WithFields(logrus.Fields{
		"threshold":  threshold,
		"background": bg.String(),
	}).Debug("composited foreground")
	return out, nil
}

// Matte returns the refined matte of img at the source resolution.
func (p *Pipeline) Matte(ctx context.Context, img image.Image) (*image.Gray, error) {
	grid, tensor, err := p.Prepare(img)
	if err != nil {
		return nil, err
	}
	matte, err := p.Infer(ctx, tensor)
	if err != nil {
		return nil, err
	}
	return refine(matte, grid.Width, grid.Height)
}
