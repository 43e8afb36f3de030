package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
	Field  string `json:"field,omitempty"`
}

var kindStatus = map[common.Kind]int{
	common.KindConflict:        http.StatusConflict,
	common.KindUnauthorized:    http.StatusUnauthorized,
	common.KindNotFound:        http.StatusNotFound,
	common.KindInvalidArgument: http.StatusUnprocessableEntity,
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var e *common.Error
	if !errors.As(err, &e) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: "internal error"})
		return
	}
	code, ok := kindStatus[e.Kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	writeJSON(w, code, ErrorResponse{Detail: detail(e), Code: e.Code, Field: e.Field})
}

func detail(e *common.Error) string {
	switch {
	case e.Code == common.CodeMissingAuth:
		return "Not authenticated"
	case e.Code != common.CodeUnauthorized:
		return e.Message
	case errors.Is(e, common.ErrTokenExpired):
		return "Expired token"
	default:
		return "Invalid token"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
