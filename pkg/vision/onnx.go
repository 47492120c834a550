package vision

import (
	"fmt"
	"os"
	"sync"

	"github.com/teslashibe/go-focuspet/pkg/detection"
	"gocv.io/x/gocv"
)

// ONNXExecutor runs the BlazeFace model with OpenCV's DNN module.
type ONNXExecutor struct {
	net     gocv.Net
	outputs []string
	anchors int
	mu      sync.Mutex // Protects inference
}

// NewONNXExecutor loads the model. anchors is the expected anchor count,
// used to tell the regression output from the classification output.
func NewONNXExecutor(modelPath string, anchors int) (*ONNXExecutor, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model file not found: %s", detection.ErrModelLoad, modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load model from %s", detection.ErrModelLoad, modelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ONNXExecutor{
		net:     net,
		outputs: outputNames(&net),
		anchors: anchors,
	}, nil
}

func outputNames(net *gocv.Net) []string {
	var names []string
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		name := layer.GetName()
		layer.Close()
		if name != "_input" {
			names = append(names, name)
		}
	}
	return names
}

// Run implements detection.ModelExecutor.
func (e *ONNXExecutor) Run(input detection.Tensor) (detection.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	blob := gocv.NewMatWithSizes(input.Shape, gocv.MatTypeCV32F)
	defer blob.Close()

	dst, err := blob.DataPtrFloat32()
	if err != nil {
		return detection.Output{}, fmt.Errorf("input blob: %w", err)
	}
	if len(dst) != len(input.Data) {
		return detection.Output{}, fmt.Errorf("%w: input has %d values, blob %d", detection.ErrTensorShape, len(input.Data), len(dst))
	}
	copy(dst, input.Data)

	e.net.SetInput(blob, "")
	outs := e.net.ForwardLayers(e.outputs)
	defer func() {
		for _, m := range outs {
			m.Close()
		}
	}()

	var out detection.Output
	for _, m := range outs {
		values, err := m.DataPtrFloat32()
		if err != nil {
			return detection.Output{}, fmt.Errorf("read output: %w", err)
		}
		switch len(values) {
		case e.anchors * detection.RegressionSize:
			out.Regressors = append([]float32(nil), values...)
		case e.anchors:
			out.Classifications = append([]float32(nil), values...)
		}
	}

	if out.Regressors == nil || out.Classifications == nil {
		return detection.Output{}, fmt.Errorf("%w: no outputs matching %d anchors among %d", detection.ErrTensorShape, e.anchors, len(outs))
	}
	return out, nil
}

// Close implements detection.ModelExecutor.
func (e *ONNXExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
