package entry

// Status is the OCR-stage state of an entry.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusValid      Status = "valid"
	StatusInvalid    Status = "invalid"
	StatusError      Status = "error"
	StatusCancelled  Status = "cancelled"
)

// IsValid reports whether s is one of the known statuses
func (s Status) IsValid() bool {
	switch s {
	case StatusProcessing, StatusValid, StatusInvalid, StatusError, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the OCR stage has finished for this status.
// Only a retry moves a terminal entry back to processing.
func (s Status) Terminal() bool {
	return s != StatusProcessing
}

// carriesError reports whether an entry in this status must have a non-empty error message
func (s Status) carriesError() bool {
	return s == StatusError || s == StatusCancelled
}

// ImageKind tells how an entry's image is referenced
type ImageKind string

const (
	ImageNone      ImageKind = ""
	ImageEphemeral ImageKind = "ephemeral" // process-local handle, dies with the session
	ImageDurable   ImageKind = "durable"   // self-contained data URL
)

// Image is the entry's document image reference
type Image struct {
	Kind ImageKind `json:"kind" bson:"kind"`
	Ref  string    `json:"ref" bson:"ref"`
}

func EphemeralImage(handle string) Image {
	return Image{Kind: ImageEphemeral, Ref: handle}
}

func DurableImage(dataURL string) Image {
	return Image{Kind: ImageDurable, Ref: dataURL}
}

// IsZero reports whether the entry has no image
func (i Image) IsZero() bool {
	return i.Kind == ImageNone || i.Ref == ""
}
