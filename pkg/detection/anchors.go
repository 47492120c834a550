package detection

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Anchor is the normalized center of one grid cell prediction slot.
type Anchor struct {
	X float32
	Y float32
}

// AnchorLayer describes one level of the anchor grid.
type AnchorLayer struct {
	Stride  int // Pixels per grid cell at the model input size
	PerCell int // Anchors stacked on every cell
}

// DefaultAnchorLayers is the BlazeFace front-camera layout:
// a 16x16 grid with 2 anchors per cell and an 8x8 grid with 6.
var DefaultAnchorLayers = []AnchorLayer{
	{Stride: 8, PerCell: 2},
	{Stride: 16, PerCell: 6},
}

// DefaultAnchorCount is the number of anchors of the default layout at 128px.
const DefaultAnchorCount = 896

// GenerateAnchors builds the anchor grid for inputSize.
// The result is deterministic for a given layout.
func GenerateAnchors(inputSize int, layers []AnchorLayer) []Anchor {
	var anchors []Anchor
	for _, layer := range layers {
		grid := inputSize / layer.Stride
		for y := 0; y < grid; y++ {
			for x := 0; x < grid; x++ {
				a := Anchor{
					X: (float32(x) + 0.5) / float32(grid),
					Y: (float32(y) + 0.5) / float32(grid),
				}
				for k := 0; k < layer.PerCell; k++ {
					anchors = append(anchors, a)
				}
			}
		}
	}
	return anchors
}

// DefaultAnchors returns the 896-anchor grid for a 128px input.
func DefaultAnchors() []Anchor {
	return GenerateAnchors(128, DefaultAnchorLayers)
}

// AnchorsFromFloats converts a flat [x0, y0, x1, y1, ...] array.
// It reports false when the length is not exactly 2*count.
func AnchorsFromFloats(data []float32, count int) ([]Anchor, bool) {
	if len(data) != count*2 {
		return nil, false
	}
	anchors := make([]Anchor, count)
	for i := range anchors {
		anchors[i] = Anchor{X: data[2*i], Y: data[2*i+1]}
	}
	return anchors, true
}

// LoadAnchors reads an anchor file. Failing to open or read the file is an
// error; a file that parses to the wrong number of values falls back to
// the generated grid with a warning.
func LoadAnchors(path string, fallback []Anchor, logger *zap.SugaredLogger) ([]Anchor, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read anchors %s: %v", ErrModelLoad, path, err)
	}

	values := parseAnchorFile(buf)
	anchors, ok := AnchorsFromFloats(values, len(fallback))
	if !ok {
		if logger != nil {
			logger.Warnw("anchors file parsing failed, using generated anchors",
				"path", path,
				"got", len(values),
				"expected", len(fallback)*2,
			)
		}
		return fallback, nil
	}
	return anchors, nil
}

var npyMagic = []byte("\x93NUMPY")

// parseAnchorFile decodes a .npy array of little-endian float32, or a raw
// little-endian float32 dump when the npy magic is absent. Unsupported
// dtypes decode to nil.
func parseAnchorFile(buf []byte) []float32 {
	if !bytes.HasPrefix(buf, npyMagic) {
		return decodeFloat32LE(buf)
	}

	if len(buf) < 10 {
		return nil
	}

	var headerLen, dataStart int
	switch buf[6] {
	case 1:
		headerLen = int(binary.LittleEndian.Uint16(buf[8:10]))
		dataStart = 10 + headerLen
	case 2, 3:
		if len(buf) < 12 {
			return nil
		}
		headerLen = int(binary.LittleEndian.Uint32(buf[8:12]))
		dataStart = 12 + headerLen
	default:
		return nil
	}
	if dataStart > len(buf) {
		return nil
	}

	header := string(buf[dataStart-headerLen : dataStart])
	if !strings.Contains(header, "'<f4'") && !strings.Contains(header, "'float32'") {
		return nil
	}
	if strings.Contains(header, "'fortran_order': True") {
		return nil
	}

	return decodeFloat32LE(buf[dataStart:])
}

func decodeFloat32LE(buf []byte) []float32 {
	n := len(buf) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return out
}
