package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rox-lucas-sh/image-scan-vision/internal/auth"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/shared"
	"github.com/rox-lucas-sh/image-scan-vision/internal/entrystore"
	"github.com/rox-lucas-sh/image-scan-vision/internal/imaging"
	"github.com/rox-lucas-sh/image-scan-vision/internal/pipeline"
	"github.com/rox-lucas-sh/image-scan-vision/internal/snapshot"
)

// emptyEntry is passed when no entry state accompanies an error
var emptyEntry entry.Entry

// respondEntryError maps a service error to a response. e is the entry
// state returned alongside the error; it is included when it exists.
func respondEntryError(c *gin.Context, err error, e entry.Entry) {
	var data any
	if e.ID != "" {
		data = mapEntryToResponse(e)
	}

	var (
		networkErr  *shared.NetworkError
		protocolErr *shared.ProtocolError
		timeoutErr  *shared.TimeoutError
	)

	switch {
	case errors.Is(err, entry.ErrEntryNotFound{}):
		RespondNotFound(c, "Entry not found")
	case errors.Is(err, snapshot.ErrImageExpired), errors.Is(err, snapshot.ErrImageNotFound):
		RespondNotFound(c, err.Error())
	case errors.Is(err, imaging.ErrUnsupportedImage), errors.Is(err, imaging.ErrOverBudget):
		RespondUnprocessable(c, err.Error())
	case errors.Is(err, auth.ErrEmptyToken), errors.Is(err, auth.ErrTokenExpired):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, pipeline.ErrNoScanID),
		errors.Is(err, pipeline.ErrNotValid),
		errors.Is(err, pipeline.ErrNotProcessing),
		errors.Is(err, shared.ErrUserCancelled),
		errors.Is(err, entrystore.ErrStaleGeneration),
		errors.Is(err, entry.ErrIllegalTransition{}):
		RespondConflict(c, err.Error(), data)
	case errors.As(err, &networkErr), errors.As(err, &protocolErr), errors.As(err, &timeoutErr):
		RespondBadGateway(c, err.Error(), data)
	default:
		RespondInternalError(c)
	}
}
