package endpoints

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx answer. Successful answers
// carry the payload itself.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

type APIResponse struct{}

// WriteErrorResponseWithStatusCode writes msg with the code derived from
// err. msg is what the client sees; err never leaks past GetErrorCode.
func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, msg string, StatusCode int) {
	code := GetErrorCode(err)
	if StatusCode == http.StatusUnauthorized {
		code = API_UNAUTHORIZED
	}

	errJson, _ := json.Marshal(ErrorResponse{Error: msg, ErrorCode: code})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(StatusCode)
	w.Write(errJson)
}

func (res APIResponse) WriteResultResponse(w http.ResponseWriter, result interface{}) {
	resJson, err := json.Marshal(result)
	if err != nil {
		res.WriteErrorResponseWithStatusCode(w, err, ErrInternal.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(resJson)
}
