package shared

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNetworkError_Error(t *testing.T) {
	testCases := []struct {
		name     string
		err      *NetworkError
		expected string
	}{
		{"StatusAndCause", &NetworkError{Op: "upload", StatusCode: 500, Err: io.EOF}, "upload failed with status 500: EOF"},
		{"StatusOnly", &NetworkError{Op: "scan", StatusCode: 404}, "scan failed with status 404"},
		{"CauseOnly", &NetworkError{Op: "scan verify", Err: io.ErrUnexpectedEOF}, "scan verify failed: unexpected EOF"},
		{"Bare", &NetworkError{Op: "points verify"}, "points verify failed"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.err.Error())
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	var err error = &NetworkError{Op: "upload", Err: io.EOF}
	assert.True(t, errors.Is(err, io.EOF))

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestProtocolAndTimeoutErrors(t *testing.T) {
	assert.Equal(t, "upload response is missing image_id", (&ProtocolError{Op: "upload", Field: "image_id"}).Error())
	assert.Equal(t, "OCR verification timed out after 2m0s", (&TimeoutError{Op: "OCR verification", After: 2 * time.Minute}).Error())
}
