package guest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	creditdomain "github.com/domijob/domijob/internal/credit/domain"
)

// CookieName holds the signed guest credit counter.
const CookieName = "domijob_guest_credits"

// Balance is the non-authoritative guest credit counter. It is a distinct
// type so it can never be passed where an authoritative balance is expected;
// the only way into the real ledger is GrantSignupBonus's carry-over.
type Balance int64

// Codec signs and parses guest balance cookie values. The value format is
// "<balance>.<hmac-sha256-hex>".
type Codec struct {
	secret    []byte
	allowance Balance
}

func NewCodec(secret string, startingAllowance int64) *Codec {
	return &Codec{
		secret:    []byte(secret),
		allowance: Balance(startingAllowance),
	}
}

// Encode renders the signed cookie value for a balance.
func (c *Codec) Encode(balance Balance) string {
	if balance < 0 {
		balance = 0
	}
	value := strconv.FormatInt(int64(balance), 10)
	return value + "." + c.sign(value)
}

// Decode parses a cookie value. A missing, malformed, or tampered value
// falls back to the starting allowance rather than failing the request.
func (c *Codec) Decode(raw string) Balance {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return c.allowance
	}

	value, sig, ok := strings.Cut(raw, ".")
	if !ok {
		return c.allowance
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(value))) {
		return c.allowance
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return c.allowance
	}
	return Balance(parsed)
}

func (c *Codec) sign(value string) string {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Spend debits a feature's cost from a guest balance. The guest store is a
// client-held cookie, so the only failure mode is an insufficient balance.
func Spend(balance Balance, feature string) (Balance, int64, error) {
	cost, ok := creditdomain.FeatureCost(feature)
	if !ok {
		return balance, 0, creditdomain.ErrUnknownFeature
	}
	if int64(balance) < cost {
		return balance, 0, creditdomain.ErrInsufficientCredits
	}
	return balance - Balance(cost), cost, nil
}
