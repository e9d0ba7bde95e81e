package database

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"savium-invest-go/internal/store"

	"github.com/shopspring/decimal"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty", store.ErrInvalidPath)
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return nil, fmt.Errorf("%w: %q", store.ErrInvalidPath, path)
		}
	}
	return segments, nil
}

// jsonPath converts a dotted field path into an SQLite JSON path.
func jsonPath(path string) (string, error) {
	if _, err := splitPath(path); err != nil {
		return "", err
	}
	return "$." + path, nil
}

func getPath(data map[string]any, path string) (any, bool, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, false, err
	}
	var cur any = data
	for _, seg := range segments {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false, nil
		}
	}
	return cur, true, nil
}

func setPath(data map[string]any, path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}
	obj := data
	for _, seg := range segments[:len(segments)-1] {
		next, ok := obj[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			obj[seg] = next
		}
		obj = next
	}
	obj[segments[len(segments)-1]] = value
	return nil
}

// normalize turns any JSON-marshalable value into its generic JSON form,
// with numbers kept as json.Number so decimals round-trip exactly.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal value: %w", err)
	}
	return decodeJSON(raw)
}

func normalizeObject(v any) (map[string]any, error) {
	n, err := normalize(v)
	if err != nil {
		return nil, err
	}
	obj, ok := n.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must be a JSON object, got %T", v)
	}
	return obj, nil
}

func decodeJSON(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("unable to decode document: %w", err)
	}
	return out, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	v, err := decodeJSON(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("stored document is not a JSON object")
	}
	return obj, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, nil
	case string:
		if n == "" {
			return decimal.Zero, nil
		}
		return decimal.NewFromString(n)
	case json.Number:
		return decimal.NewFromString(n.String())
	case float64:
		return decimal.NewFromFloat(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", store.ErrNotNumeric, v)
	}
}

// filterArg maps a Go filter value onto what json_extract returns for it.
func filterArg(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}
