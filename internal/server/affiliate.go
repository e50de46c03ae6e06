package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	affiliatedomain "github.com/domijob/domijob/internal/affiliate/domain"
)

// ReferralCookieName carries the affiliate code between the click redirect
// and the signup conversion call.
const ReferralCookieName = "domijob_ref"

func (s *Server) RegisterAffiliate(c *gin.Context) {
	user, _ := userID(c)

	aff, err := s.affiliateSvc.Register(c.Request.Context(), user)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, aff)
}

func (s *Server) AffiliateStats(c *gin.Context) {
	user, _ := userID(c)

	stats, err := s.affiliateSvc.Stats(c.Request.Context(), user)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) ListAffiliateClicks(c *gin.Context) {
	user, _ := userID(c)

	resp, err := s.affiliateSvc.ListClicks(c.Request.Context(), affiliatedomain.ListClicksRequest{
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

func (s *Server) ListAffiliateReferrals(c *gin.Context) {
	user, _ := userID(c)

	resp, err := s.affiliateSvc.ListReferrals(c.Request.Context(), affiliatedomain.ListReferralsRequest{
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

type updatePaymentDetailsRequest struct {
	Method            string `json:"method" binding:"required"`
	PaypalEmail       string `json:"paypal_email"`
	BankName          string `json:"bank_name"`
	BankAccountName   string `json:"bank_account_name"`
	BankAccountNumber string `json:"bank_account_number"`
}

func (s *Server) UpdatePaymentDetails(c *gin.Context) {
	user, _ := userID(c)

	var body updatePaymentDetailsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	aff, err := s.affiliateSvc.UpdatePaymentDetails(c.Request.Context(), affiliatedomain.UpdatePaymentDetailsRequest{
		UserID:            user,
		Method:            affiliatedomain.PaymentMethod(body.Method),
		PaypalEmail:       body.PaypalEmail,
		BankName:          body.BankName,
		BankAccountName:   body.BankAccountName,
		BankAccountNumber: body.BankAccountNumber,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, aff)
}

// TrackClick is the public referral redirect. Recording failures never break
// the redirect; an unknown code still lands the visitor on the site.
func (s *Server) TrackClick(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")

	allowed, err := s.clickLimiter.Allow(ctx, c.ClientIP())
	if err != nil {
		s.log.Warn("click rate limit check failed", zap.Error(err))
		allowed = true
	}
	if !allowed {
		c.AbortWithStatus(http.StatusTooManyRequests)
		return
	}

	landing := sanitizeLandingPage(c.Query("to"))

	err = s.affiliateSvc.RecordClick(ctx, code, affiliatedomain.ClickMeta{
		IP:          c.ClientIP(),
		UserAgent:   c.Request.UserAgent(),
		Referrer:    c.Request.Referer(),
		Source:      c.Query("source"),
		Campaign:    c.Query("campaign"),
		LandingPage: landing,
	})
	if err == nil {
		maxAge := s.cfg.Affiliate.ReferralCookieTTLDays * 24 * 60 * 60
		c.SetCookie(ReferralCookieName, code, maxAge, "/", "", s.cfg.CookieSecure, true)
	} else {
		s.log.Info("click not recorded",
			zap.String("code", code),
			zap.Error(err),
		)
	}

	c.Redirect(http.StatusFound, landing)
}

// sanitizeLandingPage only permits site-relative paths; everything else
// falls back to the root to keep the redirect from becoming an open relay.
func sanitizeLandingPage(to string) string {
	to = strings.TrimSpace(to)
	if to == "" || !strings.HasPrefix(to, "/") || strings.HasPrefix(to, "//") {
		return "/"
	}
	return to
}

type recordConversionRequest struct {
	BaseAmount int64 `json:"base_amount"`
}

// RecordConversion is called by the signup flow once the referred user has
// an account. The affiliate code comes from the referral cookie.
func (s *Server) RecordConversion(c *gin.Context) {
	user, _ := userID(c)

	code, err := c.Cookie(ReferralCookieName)
	if err != nil || strings.TrimSpace(code) == "" {
		AbortWithError(c, affiliatedomain.ErrUnknownCode)
		return
	}

	var body recordConversionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.affiliateSvc.RecordConversion(c.Request.Context(), affiliatedomain.RecordConversionRequest{
		Code:           code,
		ReferredUserID: user,
		BaseAmount:     body.BaseAmount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The cookie has served its purpose either way.
	c.SetCookie(ReferralCookieName, "", -1, "/", "", s.cfg.CookieSecure, true)

	c.JSON(http.StatusOK, resp)
}

type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (s *Server) SetAffiliateActive(c *gin.Context) {
	affiliateID, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid affiliate id"))
		return
	}

	var body setActiveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.affiliateSvc.SetActive(c.Request.Context(), affiliateID, *body.Active); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
