package model

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/modnet-matting/internal/matting"
)

var errorf = errors.Errorf

// Options configure how the ONNX runtime is brought up.
type Options struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses
	// the platform default lookup.
	LibraryPath string
	// IntraOpThreads bounds the threads a single run may use; 0 keeps
	// the runtime default.
	IntraOpThreads int
	Logger         logrus.FieldLogger
}

// Engine owns one ONNX session for the matting network. The session is
// created on first use and shared read-only by every caller until Close.
type Engine struct {
	modelPath string
	opts      Options
	logger    logrus.FieldLogger

	once    sync.Once
	loadErr error
	closed  bool
	mu      sync.RWMutex

	session  *ort.DynamicAdvancedSession
	Metadata Metadata
}

func NewEngine(modelPath string, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{
		modelPath: modelPath,
		opts:      opts,
		logger:    logger.WithField("model", modelPath),
	}
}

// Load initialises the runtime and session once. Later calls return the
// first outcome.
func (e *Engine) Load() error {
	e.once.Do(func() {
		e.loadErr = e.load()
	})
	return e.loadErr
}

// Loaded reports whether the session is ready.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.session != nil && !e.closed
}

func (e *Engine) load() error {
	if e.opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(e.opts.LibraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return errors.Wrap(err, "failed to initialize ONNX environment")
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(e.modelPath)
	if err != nil {
		return errors.Wrap(err, "failed to read model inputs and outputs")
	}
	metadata, err := newMetadata(inputs, outputs)
	if err != nil {
		return err
	}

	var sessionOpts *ort.SessionOptions
	if e.opts.IntraOpThreads > 0 {
		sessionOpts, err = ort.NewSessionOptions()
		if err != nil {
			return errors.Wrap(err, "failed to create session options")
		}
		defer sessionOpts.Destroy()
		if err := sessionOpts.SetIntraOpNumThreads(e.opts.IntraOpThreads); err != nil {
			return errors.Wrap(err, "failed to set intra-op threads")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(e.modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName}, sessionOpts)
	if err != nil {
		return errors.Wrap(err, "failed to create ONNX session")
	}

	e.mu.Lock()
	e.session = session
	e.Metadata = metadata
	e.mu.Unlock()

	e.logger.WithFields(logrus.Fields{
		"input":        metadata.InputName,
		"input_shape":  metadata.InputShape,
		"output":       metadata.OutputName,
		"output_shape": metadata.OutputShape,
	}).Info("model loaded")
	return nil
}

// Infer runs the network on input and returns its matte. It is safe for
// concurrent use; every call owns its tensors.
func (e *Engine) Infer(ctx context.Context, input *matting.Tensor) (*matting.Matte, error) {
	if err := e.Load(); err != nil {
		return nil, &matting.InferenceError{Msg: "load model", Err: err}
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}
	if err := checkShape(e.Metadata.InputShape, input.Shape[:]); err != nil {
		return nil, &matting.InferenceError{Msg: "input " + e.Metadata.InputName, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &matting.InferenceError{Msg: "request cancelled", Err: err}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, &matting.InferenceError{Msg: "engine is closed"}
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape[:]...), input.Data)
	if err != nil {
		return nil, &matting.InferenceError{Msg: "failed to create input tensor", Err: err}
	}
	defer inputTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, &matting.InferenceError{Msg: "run", Err: err}
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, &matting.InferenceError{Msg: "output " + e.Metadata.OutputName + " is not a float32 tensor"}
	}
	matte, err := matteFromOutput(out.GetShape(), out.GetData())
	if err != nil {
		return nil, &matting.InferenceError{Msg: "output " + e.Metadata.OutputName, Err: err}
	}
	return matte, nil
}

// Close releases the session and the runtime environment.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}

// checkShape compares got against the declared dimensions, where any
// non-positive declared dimension accepts every size.
func checkShape(declared []int64, got []int64) error {
	if len(declared) == 0 {
		return nil
	}
	if len(declared) != len(got) {
		return errorf("rank %d, model expects %v", len(got), declared)
	}
	for i, d := range declared {
		if d > 0 && d != got[i] {
			return errorf("shape %v, model expects %v", got, declared)
		}
	}
	return nil
}

// matteFromOutput accepts (1,1,H,W), (1,H,W) or (H,W) float data.
func matteFromOutput(shape ort.Shape, data []float32) (*matting.Matte, error) {
	if len(shape) < 2 {
		return nil, errorf("shape %v has no spatial dims", shape)
	}
	for _, d := range shape[:len(shape)-2] {
		if d != 1 {
			return nil, errorf("shape %v is not a single matte", shape)
		}
	}
	h, w := shape[len(shape)-2], shape[len(shape)-1]
	if h <= 0 || w <= 0 {
		return nil, errorf("shape %v has empty spatial dims", shape)
	}
	if int64(len(data)) != h*w {
		return nil, errorf("holds %d values, shape %v needs %d", len(data), shape, h*w)
	}
	return &matting.Matte{
		Height: int(h),
		Width:  int(w),
		Data:   append([]float32(nil), data...),
	}, nil
}
