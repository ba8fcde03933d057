package authkit

import "net/http"

// Status codes carried by a Result.
const (
	CodeOK               = http.StatusOK
	CodeBadRequest       = http.StatusBadRequest
	CodeUnauthorized     = http.StatusUnauthorized
	CodeForbidden        = http.StatusForbidden
	CodeMethodNotAllowed = http.StatusMethodNotAllowed
	CodeConflict         = http.StatusConflict
	CodeInternal         = http.StatusInternalServerError
)

// ResultError is one failed check.
type ResultError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome envelope returned by every workflow operation.
//
// A Result starts successful (200). The first failed Check sets Code and
// Message; later failures only append to Errors. Callers choose between
// short-circuit evaluation (return on the first false Check) and
// accumulation (run every Check, then inspect the Result).
type Result struct {
	Code    int            `json:"code"`
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	Errors  []ResultError  `json:"errors,omitempty"`
}

// NewResult returns a successful Result with an empty data map.
func NewResult() *Result {
	return &Result{
		Code:    CodeOK,
		Success: true,
		Data:    map[string]any{},
	}
}

// Check records a failure with code and message when ok is false and
// reports ok unchanged.
func (r *Result) Check(ok bool, code int, message string) bool {
	if ok {
		return true
	}
	r.Fail(code, message)
	return false
}

// Fail records a failure.
func (r *Result) Fail(code int, message string) *Result {
	r.Errors = append(r.Errors, ResultError{Code: code, Message: message})
	if r.Success {
		r.Code = code
		r.Message = message
		r.Success = code < 300
	}
	return r
}

// Succeed sets the success message. It does not clear recorded failures.
func (r *Result) Succeed(message string) *Result {
	if r.Success {
		r.Message = message
	}
	return r
}

// Set stores a data value.
func (r *Result) Set(key string, value any) *Result {
	if r.Data == nil {
		r.Data = map[string]any{}
	}
	r.Data[key] = value
	return r
}

// Failed reports whether any check failed.
func (r *Result) Failed() bool {
	return !r.Success
}

// HasError reports whether a failure with code was recorded.
func (r *Result) HasError(code int) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}
