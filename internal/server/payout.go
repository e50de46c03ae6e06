package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	payoutdomain "github.com/domijob/domijob/internal/payout/domain"
)

type requestPayoutRequest struct {
	// Amount in cents; omitted withdraws the full pending balance.
	Amount *int64 `json:"amount"`
}

func (s *Server) RequestPayout(c *gin.Context) {
	user, _ := userID(c)

	var body requestPayoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	payout, err := s.payoutSvc.Request(c.Request.Context(), payoutdomain.RequestPayoutRequest{
		UserID: user,
		Amount: body.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payout)
}

func (s *Server) ListPayouts(c *gin.Context) {
	user, _ := userID(c)

	resp, err := s.payoutSvc.List(c.Request.Context(), payoutdomain.ListRequest{
		UserID:    user,
		PageToken: c.Query("page_token"),
		PageSize:  queryInt(c, "page_size"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPayout(c *gin.Context) {
	user, _ := userID(c)

	payoutID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payout id"))
		return
	}

	payout, err := s.payoutSvc.Get(c.Request.Context(), user, payoutID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, payout)
}

type transitionPayoutRequest struct {
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transaction_id"`
}

func (s *Server) TransitionPayout(c *gin.Context) {
	payoutID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid payout id"))
		return
	}

	var body transitionPayoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	payout, err := s.payoutSvc.Transition(c.Request.Context(), payoutdomain.TransitionRequest{
		PayoutID:      payoutID,
		NewStatus:     payoutdomain.Status(body.Status),
		TransactionID: body.TransactionID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, payout)
}
