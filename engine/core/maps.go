package core

// CloneMap returns a shallow copy of the provided map. A nil input yields nil
// so callers can distinguish "absent" from "empty".
func CloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ToStringMap converts supported map forms into map[string]string.
// Note: For map[string]string inputs, this returns a copy to avoid aliasing.
// Unsupported inputs return nil.
func ToStringMap(v any) map[string]string {
	if v == nil {
		return nil
	}
	out := map[string]string{}
	switch m := v.(type) {
	case map[string]string:
		return CloneMap(m)
	case map[string]any:
		for k, vv := range m {
			if s, ok := vv.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
