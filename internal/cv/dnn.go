//go:build gocv

package cv

import (
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/andresmejia3/emotag/internal/types"
)

// DNN runs an exported expression model (ONNX, TensorFlow pb) in process.
type DNN struct {
	mu  sync.Mutex
	net gocv.Net
}

// NewDNN loads model. Keras .h5 files are not readable by OpenCV; export to ONNX first.
func NewDNN(model string) (*DNN, error) {
	net := gocv.ReadNet(model, "")
	if net.Empty() {
		return nil, fmt.Errorf("reading model %s", model)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &DNN{net: net}, nil
}

func (d *DNN) Classify(ctx context.Context, t types.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(t.Data) != types.TensorSize {
		return nil, fmt.Errorf("tensor has %d values, want %d", len(t.Data), types.TensorSize)
	}

	buf := make([]byte, 4*len(t.Data))
	for i, v := range t.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	face, err := gocv.NewMatFromBytes(types.TensorSide, types.TensorSide, gocv.MatTypeCV32F, buf)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	// Values are already in [0,1]; no scaling or mean subtraction.
	blob := gocv.BlobFromImage(face, 1.0, image.Pt(types.TensorSide, types.TensorSide), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	defer prob.Close()

	probMat := prob.Reshape(1, 1)
	defer probMat.Close()

	scores := make([]float32, probMat.Total())
	for i := range scores {
		scores[i] = probMat.GetFloatAt(0, i)
	}
	return scores, nil
}

func (d *DNN) Close() error {
	return d.net.Close()
}
