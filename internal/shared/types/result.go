package types

// Result represents a host operation result
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *string     `json:"error,omitempty"`
}

// Success wraps data in a successful result
func Success(data interface{}) Result {
	return Result{Success: true, Data: data}
}

// Failure builds a failed result from an error
func Failure(err error) Result {
	msg := err.Error()
	return Result{Success: false, Error: &msg}
}

// Failuref builds a failed result from a message
func Failuref(msg string) Result {
	return Result{Success: false, Error: &msg}
}
