package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	creditdomain "github.com/domijob/domijob/internal/credit/domain"
	"github.com/domijob/domijob/internal/credit/guest"
)

// GrantSignupBonus grants the one-time signup bonus and folds any remaining
// guest allowance into the new authoritative balance. The guest cookie is
// cleared so the allowance cannot be spent twice.
func (s *Server) GrantSignupBonus(c *gin.Context) {
	user, _ := userID(c)

	carryOver := int64(0)
	if raw, err := c.Cookie(guest.CookieName); err == nil {
		carryOver = int64(s.guestCodec.Decode(raw))
	}

	resp, err := s.creditSvc.GrantSignupBonus(c.Request.Context(), creditdomain.GrantSignupBonusRequest{
		UserID:         user,
		GuestCarryOver: carryOver,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.SetCookie(guest.CookieName, "", -1, "/", "", s.cfg.CookieSecure, true)

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCreditBalance(c *gin.Context) {
	user, _ := userID(c)

	balance, err := s.creditSvc.BalanceOf(c.Request.Context(), user)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

func (s *Server) ListCreditTransactions(c *gin.Context) {
	user, _ := userID(c)

	resp, err := s.creditSvc.ListTransactions(c.Request.Context(), creditdomain.ListTransactionsRequest{
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

type debitCreditsRequest struct {
	Feature string `json:"feature" binding:"required"`
}

type debitCreditsResponse struct {
	Cost      int64 `json:"cost"`
	Remaining int64 `json:"remaining"`
	Guest     bool  `json:"guest"`
}

// DebitCredits charges a feature use. Registered users debit the
// authoritative ledger; anonymous visitors spend the signed cookie
// allowance, which is rewritten on every successful spend.
func (s *Server) DebitCredits(c *gin.Context) {
	var body debitCreditsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if user, ok := userID(c); ok {
		resp, err := s.creditSvc.Debit(c.Request.Context(), creditdomain.DebitRequest{
			UserID:  user,
			Feature: body.Feature,
		})
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, debitCreditsResponse{
			Cost:      resp.Cost,
			Remaining: resp.Remaining,
			Guest:     false,
		})
		return
	}

	raw, _ := c.Cookie(guest.CookieName)
	balance := s.guestCodec.Decode(raw)

	remaining, cost, err := guest.Spend(balance, body.Feature)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	maxAge := s.cfg.Credit.GuestCookieDays * 24 * 60 * 60
	c.SetCookie(guest.CookieName, s.guestCodec.Encode(remaining), maxAge, "/", "", s.cfg.CookieSecure, true)

	c.JSON(http.StatusOK, debitCreditsResponse{
		Cost:      cost,
		Remaining: int64(remaining),
		Guest:     true,
	})
}

type grantCreditsRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) GrantCredits(c *gin.Context) {
	var body grantCreditsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	target, err := snowflake.ParseString(body.UserID)
	if err != nil {
		AbortWithError(c, newValidationError("user_id", "invalid_id", "invalid user id"))
		return
	}

	balance, err := s.creditSvc.Credit(c.Request.Context(), creditdomain.CreditRequest{
		UserID:      target,
		Amount:      body.Amount,
		Type:        creditdomain.TxAdjustment,
		Description: body.Description,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}
