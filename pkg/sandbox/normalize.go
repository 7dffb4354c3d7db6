package sandbox

import (
	"math"
	"reflect"
)

// jsonNormalize walks a value and replaces NaN and infinite floats with nil,
// so any value a script hands to emit serializes cleanly. Aggregations over
// sparse columns produce NaN freely; the contract requires null.
func jsonNormalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		return jsonNormalize(float64(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = jsonNormalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonNormalize(e)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonNormalize(e)
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = jsonNormalize(e)
		}
		return out
	}

	// Generic fallback for other slice and map shapes scripts may build.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = jsonNormalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		for _, k := range rv.MapKeys() {
			if k.Kind() != reflect.String {
				return v
			}
			out[k.String()] = jsonNormalize(rv.MapIndex(k).Interface())
		}
		return out
	}
	return v
}
