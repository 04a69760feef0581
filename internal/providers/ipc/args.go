package ipc

// Helpers for reading loosely typed arguments exported from JavaScript.
// Numbers arrive as int64 or float64 depending on their value.

// StringArg returns args[i] if it is a string
func StringArg(args []interface{}, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(string)
	return s, ok
}

// IntArg returns args[i] as an int, or def when absent or not numeric
func IntArg(args []interface{}, i int, def int) int {
	if i >= len(args) {
		return def
	}
	switch v := args[i].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	}
	return def
}

// MapArg returns args[i] if it is an object
func MapArg(args []interface{}, i int) (map[string]interface{}, bool) {
	if i >= len(args) {
		return nil, false
	}
	m, ok := args[i].(map[string]interface{})
	return m, ok
}
