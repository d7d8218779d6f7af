package clone

import (
	"sync/atomic"
)

// Progress counts the documents and bytes acknowledged by the destination.
// It is shared by every collection copy of one migration. Counters only grow.
type Progress struct {
	documents atomic.Int64
	sizeBytes atomic.Uint64
}

// ProgressSnapshot is a point-in-time read of [Progress].
type ProgressSnapshot struct {
	Documents int64  `json:"documents"`
	SizeBytes uint64 `json:"sizeBytes"`
}

// Add records an acknowledged batch.
func (p *Progress) Add(docs int64, sizeBytes uint64) {
	if docs <= 0 {
		return
	}

	p.documents.Add(docs)
	p.sizeBytes.Add(sizeBytes)
}

func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Documents: p.documents.Load(),
		SizeBytes: p.sizeBytes.Load(),
	}
}
