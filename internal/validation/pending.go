package validation

import (
	"bytes"
	"encoding/json"
	"strings"
)

var pendingStatuses = map[string]bool{
	"processing":  true,
	"pending":     true,
	"queued":      true,
	"in_progress": true,
}

// Pending reports whether a scan verification body says the scan has not
// finished yet. Empty bodies and status-only objects such as
// {"status":"processing"} are pending; anything else is a result to classify.
func Pending(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return false
	}
	for k := range obj {
		if k != "status" && k != "message" {
			return false
		}
	}

	var status string
	if err := json.Unmarshal(obj["status"], &status); err != nil {
		return false
	}
	return pendingStatuses[strings.ToLower(status)]
}
