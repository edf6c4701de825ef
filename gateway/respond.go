package gateway

import (
	"encoding/json"
	"net/http"
)

// statusError couples an HTTP status code with a message the submitter
// is allowed to see.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return e.message
}

func errBadRequest(message string) *statusError {
	return &statusError{code: http.StatusBadRequest, message: message}
}

func errInternal(message string) *statusError {
	return &statusError{code: http.StatusInternalServerError, message: message}
}

// writeJSONErr answers with a {code, error} payload. The status code is
// repeated in the body so that inspecting the payload alone is enough to
// understand the response.
func writeJSONErr(w http.ResponseWriter, code int, message string) {
	b, err := json.Marshal(struct {
		Code  int    `json:"code"`
		Error string `json:"error"`
	}{
		Code:  code,
		Error: message,
	})
	if err != nil {
		code = http.StatusInternalServerError
		b = []byte(`{"code":500,"error":"Response serialization failure."}`)
	}
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(code)

	_, _ = w.Write(b)
	// Be nice to CLI.
	_, _ = w.Write([]byte{'\n'})
}
