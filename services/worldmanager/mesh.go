package worldmanager

import (
	"bytes"
	"math"
	"os"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// DefaultAutoscaleThresholdMM is the largest extent below which a mesh is taken to be in meters.
const DefaultAutoscaleThresholdMM = 10

// meshBounds is the axis aligned bounding box of a mesh, in mm, after autoscaling.
type meshBounds struct {
	Min, Max r3.Vector
	Scale    float64
}

func (b meshBounds) dims() r3.Vector {
	return b.Max.Sub(b.Min)
}

func (b meshBounds) center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// loadMesh reads a PLY mesh and returns its raw bytes and bounds. Meshes whose largest extent
// is below threshold are scaled from meters to mm.
func loadMesh(filename string, threshold float64) ([]byte, meshBounds, error) {
	//nolint:gosec
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, meshBounds{}, err
	}
	bounds, err := plyBounds(data)
	if err != nil {
		return nil, meshBounds{}, errors.Wrapf(err, "reading mesh %q", filename)
	}
	bounds.Scale = 1
	d := bounds.dims()
	if largest := math.Max(d.X, math.Max(d.Y, d.Z)); largest > 0 && largest < threshold {
		bounds.Scale = 1000
		bounds.Min = bounds.Min.Mul(1000)
		bounds.Max = bounds.Max.Mul(1000)
	}
	return data, bounds, nil
}

func plyBounds(data []byte) (bounds meshBounds, err error) {
	// goply panics on malformed input
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("malformed ply: %v", r)
		}
	}()

	vertices := goply.New(bytes.NewReader(data)).Elements("vertex")
	if len(vertices) == 0 {
		return meshBounds{}, errors.New("mesh has no vertices")
	}
	bounds.Min = r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	bounds.Max = r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	for _, vertex := range vertices {
		var pt r3.Vector
		if pt.X, err = plyFloat(vertex["x"]); err != nil {
			return meshBounds{}, err
		}
		if pt.Y, err = plyFloat(vertex["y"]); err != nil {
			return meshBounds{}, err
		}
		if pt.Z, err = plyFloat(vertex["z"]); err != nil {
			return meshBounds{}, err
		}
		bounds.Min = r3.Vector{X: math.Min(bounds.Min.X, pt.X), Y: math.Min(bounds.Min.Y, pt.Y), Z: math.Min(bounds.Min.Z, pt.Z)}
		bounds.Max = r3.Vector{X: math.Max(bounds.Max.X, pt.X), Y: math.Max(bounds.Max.Y, pt.Y), Z: math.Max(bounds.Max.Z, pt.Z)}
	}
	return bounds, nil
}

func plyFloat(v interface{}) (float64, error) {
	switch f := v.(type) {
	case float32:
		return float64(f), nil
	case float64:
		return f, nil
	case int32:
		return float64(f), nil
	case uint32:
		return float64(f), nil
	default:
		return 0, errors.Errorf("unsupported vertex coordinate type %T", v)
	}
}
