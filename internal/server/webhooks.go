package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentdomain "github.com/domijob/domijob/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

// HandlePaymentWebhook ingests one provider delivery. Redeliveries and
// event types we do not handle are acknowledged with 200 so the provider
// stops retrying.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "processed"})
	case errors.Is(err, paymentdomain.ErrEventAlreadyProcessed):
		c.JSON(http.StatusOK, gin.H{"status": "already_processed"})
	case errors.Is(err, paymentdomain.ErrEventIgnored):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		AbortWithError(c, err)
	}
}
