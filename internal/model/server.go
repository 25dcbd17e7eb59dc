package model

import (
	"context"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Brownie44l1/hwr-api/internal/grader"
	"github.com/Brownie44l1/hwr-api/internal/preprocess"
)

// Classifier owns one ONNX session with pre-allocated input and output
// tensors. Runs are serialized; Close waits for an in-flight run.
type Classifier struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	closed       bool
}

// Open initializes the ONNX runtime and loads modelPath. libraryPath points at
// the onnxruntime shared library; empty uses the platform default.
func Open(modelPath string, metadata Metadata, libraryPath string) (*Classifier, error) {
	if err := metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", grader.ErrClassifierUnavailable, err)
	}
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %w", grader.ErrClassifierUnavailable, err)
	}

	c, err := newClassifier(modelPath, metadata)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("%w: %w", grader.ErrClassifierUnavailable, err)
	}
	return c, nil
}

func newClassifier(modelPath string, metadata Metadata) (*Classifier, error) {
	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Classifier{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

type runResult struct {
	scores []float32
	err    error
}

// Classify runs one inference. If ctx ends first the call returns
// immediately and the run's output is dropped when it completes.
func (c *Classifier) Classify(ctx context.Context, tensor preprocess.Tensor) ([]float32, error) {
	if tensor.Len() != c.Metadata.InputSize() {
		return nil, fmt.Errorf("expected %d input values, got %d", c.Metadata.InputSize(), tensor.Len())
	}

	done := make(chan runResult, 1)
	go func() {
		scores, err := c.run(tensor.Values)
		done <- runResult{scores: scores, err: err}
	}()

	select {
	case r := <-done:
		return r.scores, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Classifier) run(input []float32) ([]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, grader.ErrClassifierUnavailable
	}

	copy(c.inputTensor.GetData(), input)
	if err := c.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := append([]float32(nil), c.outputTensor.GetData()...)
	if c.Metadata.ApplySoftmax {
		softmax(out)
	}
	return out, nil
}

// Close releases the session, tensors and runtime environment. Later calls
// to Classify report grader.ErrClassifierUnavailable.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// softmax converts logits in place to probabilities.
func softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	maxV := v[0]
	for _, x := range v[1:] {
		if x > maxV {
			maxV = x
		}
	}
	var sum float64
	for i, x := range v {
		e := math.Exp(float64(x - maxV))
		v[i] = float32(e)
		sum += e
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / sum)
	}
}
