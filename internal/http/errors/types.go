package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Error original (causa), útil para logs, no se expone al cliente
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail agrega detalle adicional. Devuelve una COPIA para no mutar las
// variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa). Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// ---------------------------------------------------------------------------------
// 400 Bad Request
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrValidation = &AppError{
		Code:       "VALIDATION",
		Message:    "Uno o más campos no pasan la validación.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 401 Unauthorized — el shape externo de credenciales es deliberadamente
// uniforme: el cliente solo ve la categoría, nunca qué chequeo falló.
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "No autorizado. Se requiere autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentials = &AppError{
		Code:       "INVALID_CREDENTIALS",
		Message:    "Las credenciales proporcionadas son inválidas.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrSessionExpired = &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    "La sesión ha expirado, por favor inicie sesión nuevamente.",
		HTTPStatus: http.StatusUnauthorized,
	}
)

// ---------------------------------------------------------------------------------
// 403 Forbidden
// ---------------------------------------------------------------------------------

var (
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "No tiene permisos para realizar esta acción.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrAccountLocked = &AppError{
		Code:       "ACCOUNT_LOCKED",
		Message:    "La cuenta está temporalmente bloqueada por intentos fallidos.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrOriginMismatch = &AppError{
		Code:       "ORIGIN_MISMATCH",
		Message:    "El tipo de inicio de sesión no corresponde al dominio de origen.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrInactiveTenant = &AppError{
		Code:       "INACTIVE_TENANT",
		Message:    "La organización está suspendida o pendiente de activación.",
		HTTPStatus: http.StatusForbidden,
	}
)

// ---------------------------------------------------------------------------------
// 404 Not Found
// ---------------------------------------------------------------------------------

var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrUnknownTenant = &AppError{
		Code:       "UNKNOWN_TENANT",
		Message:    "El subdominio no corresponde a ninguna organización.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrStoreNotFound = &AppError{
		Code:       "STORE_NOT_FOUND",
		Message:    "No existe un data store para la organización indicada.",
		HTTPStatus: http.StatusNotFound,
	}
)

// ---------------------------------------------------------------------------------
// 409 Conflict
// ---------------------------------------------------------------------------------

var (
	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "La solicitud entra en conflicto con el estado actual.",
		HTTPStatus: http.StatusConflict,
	}

	ErrTrustExists = &AppError{
		Code:       "TRUST_EXISTS",
		Message:    "Ya existe una organización con ese código, subdominio o email.",
		HTTPStatus: http.StatusConflict,
	}

	ErrAlreadyProvisioned = &AppError{
		Code:       "ALREADY_PROVISIONED",
		Message:    "El data store de la organización ya fue provisionado.",
		HTTPStatus: http.StatusConflict,
	}

	ErrPrincipalExists = &AppError{
		Code:       "PRINCIPAL_EXISTS",
		Message:    "El identificador ya está en uso.",
		HTTPStatus: http.StatusConflict,
	}
)

// ---------------------------------------------------------------------------------
// 429 Too Many Requests
// ---------------------------------------------------------------------------------

var ErrRateLimitExceeded = &AppError{
	Code:       "RATE_LIMIT_EXCEEDED",
	Message:    "Ha excedido el límite de solicitudes. Intente más tarde.",
	HTTPStatus: http.StatusTooManyRequests,
}

// ---------------------------------------------------------------------------------
// 500+ Server Errors
// ---------------------------------------------------------------------------------

var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	// ErrPoolExhausted es transitorio: el cliente puede reintentar; nunca se
	// confunde con una denegación de autenticación/autorización.
	ErrPoolExhausted = &AppError{
		Code:       "POOL_EXHAUSTED",
		Message:    "El pool de conexiones está saturado. Reintente en unos segundos.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrProvisionFailed = &AppError{
		Code:       "PROVISION_FAILED",
		Message:    "No se pudo provisionar el data store de la organización.",
		HTTPStatus: http.StatusBadGateway,
	}
)
