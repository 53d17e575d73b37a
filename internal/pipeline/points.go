package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// purchaseValueFields are tried in order when reading the purchase value
var purchaseValueFields = []string{"valor_total", "total", "valor"}

var ErrNoPurchaseValue = errors.New("purchase value not found")

// PurchaseValue reads the purchase amount from an OCR payload. Numbers are
// used as is; strings may carry a currency prefix and use either dot or
// Brazilian decimal notation ("42.50", "R$ 1.234,56", "42,50").
func PurchaseValue(data json.RawMessage) (float64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return 0, ErrNoPurchaseValue
	}

	for _, name := range purchaseValueFields {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			continue
		}

		var n float64
		if err := json.Unmarshal(raw, &n); err == nil {
			return n, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("%s is neither a number nor a string", name)
		}
		v, err := parseAmount(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}
	return 0, ErrNoPurchaseValue
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")

	comma := strings.LastIndex(s, ",")
	dot := strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && comma > dot:
		// 1.234,56
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case comma >= 0:
		// 1,234.56
		s = strings.ReplaceAll(s, ",", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// Params returns the OCR payload as the rule parameters, or an empty object
// when the payload is not an object
func Params(data json.RawMessage) json.RawMessage {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil || probe == nil {
		return json.RawMessage(`{}`)
	}
	return data
}
