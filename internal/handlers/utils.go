package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"storefront/internal/apperror"
)

const (
	maxBodyBytes     = 1 << 20
	defaultPageLimit = 50
)

// ErrorResponse представляет структуру ответа с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// writeJSONResponse отправляет JSON ответ
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeErrorResponse отправляет ответ с ошибкой
func writeErrorResponse(w http.ResponseWriter, statusCode int, code apperror.Code, message string) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Code:    string(code),
		Message: message,
	}
	writeJSONResponse(w, statusCode, response)
}

// decodeJSON читает ровно одно JSON-значение без неизвестных полей.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.WithCode(apperror.KindValidation, apperror.CodeMalformedInput, "request body is empty", err)
		}
		return apperror.WithCode(apperror.KindValidation, apperror.CodeMalformedInput, "invalid request body", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.WithCode(apperror.KindValidation, apperror.CodeMalformedInput, "request body must contain a single JSON object", err)
	}
	return nil
}

// parsePagination читает limit и offset; пустые значения дают значения по умолчанию.
func parsePagination(r *http.Request) (int, int, error) {
	query := r.URL.Query()

	limit := defaultPageLimit
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return 0, 0, apperror.WithCode(apperror.KindValidation, apperror.CodeMalformedInput, "limit must be a positive integer", err)
		}
		limit = v
	}

	offset := 0
	if raw := query.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, 0, apperror.WithCode(apperror.KindValidation, apperror.CodeMalformedInput, "offset must be a non-negative integer", err)
		}
		offset = v
	}

	return limit, offset, nil
}
