// Package errors define el shape externo estable de los errores HTTP.
package errors

import (
	"encoding/json"
	"net/http"
	"time"
)

// errorResponse estructura interna para la serialización JSON.
// Controla exactamente qué campos ve el cliente.
type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteError escribe la respuesta HTTP del error. Maneja *AppError y
// errores genéricos (que colapsan a INTERNAL_SERVER_ERROR).
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Detail:    appErr.Detail,
		RequestID: w.Header().Get("X-Request-ID"),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}
