package output

import "browser-agent/internal/domain/entity"

// RecorderPort is the write-only recording sink. It receives every appended
// step and any binary artifacts (screenshots) produced along the way.
// Implementations must tolerate concurrent writers.
type RecorderPort interface {
	RecordStep(ownerID string, step entity.Step)
	RecordArtifact(ownerID, name string, data []byte)
	Close() error
}
