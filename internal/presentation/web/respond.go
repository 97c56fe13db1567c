package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"photo-studio/internal/domain"
)

// errInvalidRequestBody общий текст ошибки для некорректного JSON
const errInvalidRequestBody = "invalid request body"

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError переводит ошибку приложения в HTTP-статус и текст для пользователя
func respondDomainError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), domain.UserMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNoDevice):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrAborted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidFacing):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrDeviceLost), errors.Is(err, domain.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// HealthCheck отвечает на проверку живости
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
