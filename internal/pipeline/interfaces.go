package pipeline

import (
	"context"

	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/imaging"
	"github.com/rox-lucas-sh/image-scan-vision/internal/upstream"
)

// Upstream is the set of external service calls the pipeline makes
type Upstream interface {
	Upload(ctx context.Context, image []byte, contentType string) (string, error)
	Scan(ctx context.Context, imageID string) (string, error)
	VerifyScan(ctx context.Context, scanID string) ([]byte, error)
	GeneratePoints(ctx context.Context, token string, req upstream.PointsRequest) (string, error)
	VerifyPoints(ctx context.Context, token, transactionID string) (upstream.PointsStatus, error)
}

// ImageNormalizer fits a raw image into the upload budget
type ImageNormalizer interface {
	Normalize(raw []byte) (imaging.Normalized, error)
}

// ImageRegistry holds image bytes behind ephemeral handles
type ImageRegistry interface {
	Register(data []byte, contentType string) entry.Image
	Release(img entry.Image)
}

// PointsTimeoutNotifier is told when points verification gives up
type PointsTimeoutNotifier interface {
	PointsTimedOut(ctx context.Context, e entry.Entry)
}

// Controller re-enters or terminates the pipeline for an existing entry.
// None of its operations ever create a new entry.
type Controller interface {
	RetryOCR(ctx context.Context, id, scanID string) (entry.Entry, error)
	RetryPoints(ctx context.Context, id, transactionID string) (entry.Entry, error)
	CancelProcessing(id string) (entry.Entry, error)
	DeleteEntry(id string) (entry.Entry, error)
}
