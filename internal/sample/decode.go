package sample

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/spf13/cast"
)

// FromAny converts a generically decoded value (as produced by encoding/json
// with or without UseNumber) into a Value. Shapes outside the union, such as
// objects or booleans, are rejected with ErrUnusable.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return None(), nil
	case Value:
		return t, nil
	case string:
		return Text(t), nil
	case bool:
		return Value{}, fmt.Errorf("%w: boolean %v", ErrUnusable, t)
	case map[string]any:
		return Value{}, fmt.Errorf("%w: object with %d keys", ErrUnusable, len(t))
	case []any:
		items := make([]Value, 0, len(t))
		for i, el := range t {
			v, err := FromAny(el)
			if err != nil {
				return Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			items = append(items, v)
		}
		return Vec(items...), nil
	case []float64:
		return Nums(t...), nil
	default:
		f, err := cast.ToFloat64E(t)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %T", ErrUnusable, x)
		}
		return Num(f), nil
	}
}

// DecodeJSON decodes a JSON payload. An empty body or a JSON null is Absent.
func DecodeJSON(data []byte) (Value, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return None(), nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrUnusable, err)
	}
	return FromAny(x)
}
