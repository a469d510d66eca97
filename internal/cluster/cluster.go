// Package cluster names the input contract to the downstream K-Medians
// audience-segmentation algorithm, which is deliberately out of scope here
// — only its input contract is defined. This package provides the
// Clusterer interface the Session Manager's computeSegments event calls
// against, plus a single deterministic stub implementation so the
// repository is runnable end-to-end without a real clustering service
// wired in.
package cluster

import (
	"context"
	"sort"

	"audiencelens/internal/models"
)

// Request is everything a real K-Medians implementation needs: the
// confirmed variable codes and their catalog records, rehydrated from the
// current snapshot by the caller (never held long-term by a Session, per §9's
// cyclic-reference note).
type Request struct {
	SessionID     string
	VariableCodes []string
	Variables     []*models.Variable
	TargetCount   int // desired number of segments; 0 lets the implementation choose
}

// Clusterer is the contract the Session Manager's computeSegments transition
// calls. A production deployment swaps in a real K-Medians service behind
// this interface; no clustering math belongs in this module.
type Clusterer interface {
	Cluster(ctx context.Context, req Request) ([]models.Segment, error)
}

// defaultSegmentCount is used when a Request does not specify TargetCount.
const defaultSegmentCount = 3

// RoundRobinStub is a deterministic placeholder Clusterer: it distributes
// the confirmed variable codes evenly across TargetCount (or
// defaultSegmentCount) buckets in sorted code order. It exists only so
// computeSegments has something to call in tests and local runs; it makes
// no claim to the statistical properties a real K-Medians segmentation
// would have.
type RoundRobinStub struct{}

// Cluster implements Clusterer.
func (RoundRobinStub) Cluster(ctx context.Context, req Request) ([]models.Segment, error) {
	if len(req.VariableCodes) == 0 {
		return nil, nil
	}
	n := req.TargetCount
	if n <= 0 {
		n = defaultSegmentCount
	}
	if n > len(req.VariableCodes) && len(req.VariableCodes) > 0 {
		n = len(req.VariableCodes)
	}
	if n <= 0 {
		return nil, nil
	}

	codes := append([]string(nil), req.VariableCodes...)
	sort.Strings(codes)

	segments := make([]models.Segment, n)
	for i := range segments {
		segments[i] = models.Segment{
			ID:    segmentID(req.SessionID, i),
			Label: segmentLabel(i),
		}
	}
	for i, code := range codes {
		b := i % n
		segments[b].VariableIDs = append(segments[b].VariableIDs, code)
		segments[b].Size++
	}
	return segments, nil
}

func segmentID(sessionID string, index int) string {
	return sessionID + "-segment-" + itoa(index)
}

func segmentLabel(index int) string {
	return "Segment " + itoa(index+1)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[i:])
}
