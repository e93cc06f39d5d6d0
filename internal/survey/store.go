package survey

import (
	"context"

	"majorcompass/internal/model"
)

// ResultStore persists finalized results
type ResultStore interface {
	// NewCode returns a fresh result code
	NewCode(ctx context.Context) (string, error)
	// Save stores rec under rec.Code
	Save(ctx context.Context, rec *model.ResultRecord) error
}

// SnapshotStore keeps resume snapshots keyed by session id.
// Load returns nil, nil when no snapshot exists and wraps model.ErrCorruptSnapshot
// when one exists but cannot be decoded.
type SnapshotStore interface {
	Save(ctx context.Context, snap *model.Snapshot) error
	Load(ctx context.Context, sessionID string) (*model.Snapshot, error)
	Delete(ctx context.Context, sessionID string) error
}
