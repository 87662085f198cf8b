package matting

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	mu     sync.Mutex
	value  float32
	err    error
	shrink int
	shapes [][4]int64
}

func (f *fakeEngine) Infer(_ context.Context, input *Tensor) (*Matte, error) {
	f.mu.Lock()
	f.shapes = append(f.shapes, input.Shape)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return constantMatte(input.Height()-f.shrink, input.Width(), f.value), nil
}

func portrait(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	return img
}

func TestPipeline_Run(t *testing.T) {
	engine := &fakeEngine{value: 0.9}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := NewPipeline(engine, WithLogger(logger))

	out, err := p.Run(context.Background(), portrait(600, 1000), 120, Transparent())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 600, 1000), out.Bounds())
	require.Len(t, engine.shapes, 1)
	assert.Equal(t, [4]int64{1, 3, 512, 288}, engine.shapes[0])
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 90, A: 255}, out.NRGBAAt(10, 20))
	assert.NotEmpty(t, hook.AllEntries())
}

func TestPipeline_RunBelowThresholdUsesBackground(t *testing.T) {
	p := NewPipeline(&fakeEngine{value: 0.1})
	red := color.NRGBA{R: 255, A: 255}

	out, err := p.Run(context.Background(), portrait(64, 64), 100, SolidColor(red))
	require.NoError(t, err)
	assert.Equal(t, red, out.NRGBAAt(32, 32))
}

func TestPipeline_Matte(t *testing.T) {
	p := NewPipeline(&fakeEngine{value: 1})

	m, err := p.Matte(context.Background(), portrait(300, 200))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 300, 200), m.Bounds())
	assert.Equal(t, uint8(255), m.GrayAt(150, 100).Y)
}

func TestPipeline_EngineFailure(t *testing.T) {
	p := NewPipeline(&fakeEngine{err: errors.New("Got invalid dimensions for input")})

	_, err := p.Run(context.Background(), portrait(64, 64), 100, Transparent())
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "Got invalid dimensions for input")
}

func TestPipeline_EngineInferenceErrorIsKept(t *testing.T) {
	orig := &InferenceError{Msg: "shape mismatch"}
	p := NewPipeline(&fakeEngine{err: orig})

	_, err := p.Run(context.Background(), portrait(64, 64), 100, Transparent())
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Same(t, orig, ie)
}

func TestPipeline_MatteSizeMismatch(t *testing.T) {
	p := NewPipeline(&fakeEngine{value: 1, shrink: 32})

	_, err := p.Run(context.Background(), portrait(64, 64), 100, Transparent())
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.Contains(t, err.Error(), "matte is")
}

func TestPipeline_DegenerateImage(t *testing.T) {
	engine := &fakeEngine{value: 1}
	p := NewPipeline(engine)

	_, err := p.Run(context.Background(), portrait(100, 1), 100, Transparent())
	var ge *InvalidGeometryError
	require.True(t, errors.As(err, &ge))
	assert.Empty(t, engine.shapes)
}

func TestPipeline_CancelledContext(t *testing.T) {
	engine := &fakeEngine{value: 1}
	p := NewPipeline(engine)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, portrait(64, 64), 100, Transparent())
	var ie *InferenceError
	require.True(t, errors.As(err, &ie))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, engine.shapes)
}

func TestPipeline_ReferenceSize(t *testing.T) {
	engine := &fakeEngine{value: 1}
	p := NewPipeline(engine, WithReferenceSize(256), WithReferenceSize(-1))
	assert.Equal(t, 256, p.ReferenceSize())

	_, err := p.Run(context.Background(), portrait(200, 100), 0, Transparent())
	require.NoError(t, err)
	assert.Equal(t, [4]int64{1, 3, 128, 256}, engine.shapes[0])
}

func TestPipeline_ConcurrentRuns(t *testing.T) {
	p := NewPipeline(&fakeEngine{value: 0.8})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()
			_, err := p.Run(context.Background(), portrait(size, size), 100, Transparent())
			errs <- err
		}(64 + i*32)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
