package model

// OperationError records an input line that could not be turned into an operation.
type OperationError struct {
	Line  uint64 `json:"line"`
	Raw   string `json:"raw"`
	Error string `json:"error"`
}
