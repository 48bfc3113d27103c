package imaging

import (
	"errors"
	"sync"

	"github.com/ironsheep/pixel-mosaic-mcp/internal/logging"
)

// ErrFallbackToCPU indicates an edge backend cannot handle a request.
// DetectEdges treats it, and any other backend error, as a signal to run
// the CPU path instead.
var ErrFallbackToCPU = errors.New("imaging: falling back to CPU edge detection")

// EdgeBackend is an optional accelerated implementation of BuildEdgeMap.
//
// Implementations must honor the same contract as the CPU path: a map of
// exactly Width*Height values in [0,1], thresholded with the same sharpness
// semantics. A backend that is unavailable returns (nil, nil) or an error.
type EdgeBackend interface {
	// Name identifies the backend in logs (e.g. "wgpu").
	Name() string

	// BuildEdgeMap computes the edge map of buf.
	BuildEdgeMap(buf *PixelBuffer, sharpness float64) (*EdgeMap, error)
}

var (
	backendMu sync.RWMutex
	backend   EdgeBackend
)

// RegisterEdgeBackend installs b as the accelerated edge backend. Only one
// backend is active; a later call replaces the earlier one and nil removes it.
func RegisterEdgeBackend(b EdgeBackend) {
	backendMu.Lock()
	backend = b
	backendMu.Unlock()
}

func currentBackend() EdgeBackend {
	backendMu.RLock()
	defer backendMu.RUnlock()
	return backend
}

// DetectEdges builds the edge map for buf, preferring the registered backend.
//
// The backend result is discarded in favor of the CPU path when it is nil,
// has the wrong length, or contains no edges at all (which is how a silently
// failing device usually shows up). The returned bool reports whether the
// backend produced the map, for caller-side telemetry only.
//
// Backends only receive sharpness, so a registered backend is bypassed when
// opts asks for anything other than the default binary percentile mode.
func DetectEdges(buf *PixelBuffer, opts EdgeOptions) (*EdgeMap, bool) {
	b := currentBackend()
	if b == nil || buf == nil || !buf.Valid() || !backendCompatible(opts) {
		return BuildEdgeMap(buf, opts), false
	}

	log := logging.Logger()
	m, err := b.BuildEdgeMap(buf, opts.Sharpness)
	switch {
	case err != nil:
		if !errors.Is(err, ErrFallbackToCPU) {
			log.Warn("edge backend failed, using CPU", "backend", b.Name(), "error", err)
		}
	case m == nil:
		log.Debug("edge backend unavailable, using CPU", "backend", b.Name())
	case !m.Matches(buf.Width, buf.Height):
		log.Warn("edge backend returned mismatched map, using CPU",
			"backend", b.Name(), "len", len(m.Values), "want", buf.Width*buf.Height)
	case m.EdgeCount() == 0:
		log.Debug("edge backend found no edges, re-running on CPU", "backend", b.Name())
	default:
		return sanitizeEdgeMap(m), true
	}

	return BuildEdgeMap(buf, opts), false
}

func backendCompatible(opts EdgeOptions) bool {
	return opts.Mode == ThresholdPercentile && opts.Binarize && opts.BlurRadius == 0
}

// sanitizeEdgeMap clamps backend values into [0,1]; NaN becomes 0.
func sanitizeEdgeMap(m *EdgeMap) *EdgeMap {
	for i, v := range m.Values {
		if v != v {
			m.Values[i] = 0
			continue
		}
		m.Values[i] = clampFloat(v, 0, 1)
	}
	return m
}
