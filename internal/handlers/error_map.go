package handlers

import (
	"net/http"

	"storefront/internal/apperror"
	"storefront/internal/logger"
)

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
// Сообщения persistence и неизвестных ошибок наружу не попадают.
func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	code := apperror.CodeOf(err)
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		writeErrorResponse(w, http.StatusNotFound, code, err.Error())
	case apperror.Is(err, apperror.KindValidation):
		writeErrorResponse(w, http.StatusBadRequest, code, err.Error())
	case apperror.Is(err, apperror.KindConflict):
		writeErrorResponse(w, http.StatusConflict, code, err.Error())
	default:
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		writeErrorResponse(w, http.StatusInternalServerError, apperror.CodePersistence, internalMessage)
	}
}
