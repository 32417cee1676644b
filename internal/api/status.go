package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

// statusFromKind отображает kind доменной ошибки в HTTP-статус.
func statusFromKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindValidation, domain.KindInvalidPagination:
		return http.StatusBadRequest
	case domain.KindOutOfStock,
		domain.KindSaleAlreadyCanceled,
		domain.KindItemAlreadyCanceled,
		domain.KindAlreadyDeleted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Type    string             `json:"type"`
	Error   string             `json:"error"`
	Details []domain.FieldError `json:"details,omitempty"`
}

// writeError завершает запрос доменной ошибкой. Внутренние причины
// не просачиваются клиенту, а уходят в лог.
func (h *Handler) writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusFromKind(kind)

	var derr *domain.Error
	message := "internal server error"
	var details []domain.FieldError
	if errors.As(err, &derr) {
		details = derr.Fields
		if status != http.StatusInternalServerError {
			message = derr.Message
		}
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
	}

	c.AbortWithStatusJSON(status, errorResponse{
		Type:    string(kind),
		Error:   message,
		Details: details,
	})
}
