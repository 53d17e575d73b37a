package snapshot

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rox-lucas-sh/image-scan-vision/internal/domain/entry"
)

const ephemeralScheme = "session://"

var (
	// ErrImageExpired is returned for an ephemeral handle that this process no longer holds
	ErrImageExpired  = errors.New("ephemeral image is no longer available")
	ErrInvalidImage  = errors.New("image reference is not valid")
	ErrImageNotFound = errors.New("entry has no image")
)

type heldImage struct {
	data        []byte
	contentType string
}

// Registry holds image bytes behind ephemeral handles for the life of the
// process and turns them into self-contained data URLs on demand.
type Registry struct {
	mu     sync.RWMutex
	images map[string]heldImage
}

func NewRegistry() *Registry {
	return &Registry{images: make(map[string]heldImage)}
}

// Register stores the bytes and returns an ephemeral image reference
func (r *Registry) Register(data []byte, contentType string) entry.Image {
	handle := ephemeralScheme + uuid.NewString()
	r.mu.Lock()
	r.images[handle] = heldImage{data: append([]byte(nil), data...), contentType: contentType}
	r.mu.Unlock()
	return entry.EphemeralImage(handle)
}

// Release forgets an ephemeral handle. Other image kinds are ignored.
func (r *Registry) Release(img entry.Image) {
	if img.Kind != entry.ImageEphemeral {
		return
	}
	r.mu.Lock()
	delete(r.images, img.Ref)
	r.mu.Unlock()
}

// Durable returns a self-contained form of img. Ephemeral handles are
// encoded as data URLs; durable images are returned unchanged; a missing
// image stays missing.
func (r *Registry) Durable(img entry.Image) (entry.Image, error) {
	switch img.Kind {
	case entry.ImageNone:
		return entry.Image{}, nil
	case entry.ImageDurable:
		if !strings.HasPrefix(img.Ref, "data:") {
			return entry.Image{}, ErrInvalidImage
		}
		return img, nil
	case entry.ImageEphemeral:
		r.mu.RLock()
		held, ok := r.images[img.Ref]
		r.mu.RUnlock()
		if !ok {
			return entry.Image{}, ErrImageExpired
		}
		return entry.DurableImage(dataURL(held.contentType, held.data)), nil
	}
	return entry.Image{}, ErrInvalidImage
}

// Bytes returns the raw image bytes and content type for any image kind
func (r *Registry) Bytes(img entry.Image) ([]byte, string, error) {
	switch img.Kind {
	case entry.ImageNone:
		return nil, "", ErrImageNotFound
	case entry.ImageEphemeral:
		r.mu.RLock()
		held, ok := r.images[img.Ref]
		r.mu.RUnlock()
		if !ok {
			return nil, "", ErrImageExpired
		}
		return held.data, held.contentType, nil
	case entry.ImageDurable:
		return decodeDataURL(img.Ref)
	}
	return nil, "", ErrInvalidImage
}

func dataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeDataURL(ref string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(ref, "data:")
	if !ok {
		return nil, "", ErrInvalidImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", ErrInvalidImage
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: only base64 data URLs are supported", ErrInvalidImage)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return data, contentType, nil
}
