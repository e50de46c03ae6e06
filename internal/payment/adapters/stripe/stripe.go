package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/domijob/domijob/internal/payment/domain"
)

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return paymentdomain.ErrInvalidSignature
	}

	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}
	return paymentdomain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.CheckoutEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if strings.TrimSpace(event.Type) != "checkout.session.completed" {
		return nil, paymentdomain.ErrEventIgnored
	}

	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(session.Metadata.UserID))
	if err != nil || userID == 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}

	kind := strings.TrimSpace(session.Metadata.Type)
	switch kind {
	case paymentdomain.CheckoutKindCreditPack, paymentdomain.CheckoutKindJobPost:
	default:
		return nil, paymentdomain.ErrEventIgnored
	}

	var credits int64
	if raw := strings.TrimSpace(session.Metadata.Credits); raw != "" {
		credits, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || credits <= 0 {
			return nil, paymentdomain.ErrInvalidEvent
		}
	}
	if kind == paymentdomain.CheckoutKindCreditPack && credits == 0 {
		return nil, paymentdomain.ErrInvalidEvent
	}

	occurredAt := time.Unix(event.Created, 0).UTC()
	if event.Created == 0 {
		occurredAt = time.Now().UTC()
	}

	return &paymentdomain.CheckoutEvent{
		Provider:        a.Provider(),
		ProviderEventID: event.ID,
		Kind:            kind,
		UserID:          userID,
		AmountTotal:     session.AmountTotal,
		Credits:         credits,
		ReferralCode:    strings.TrimSpace(session.Metadata.Ref),
		OccurredAt:      occurredAt,
		RawPayload:      payload,
	}, nil
}

func parseSignatureHeader(header string) (string, []string, error) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, paymentdomain.ErrInvalidSignature
	}
	return timestamp, signatures, nil
}

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID          string `json:"id"`
	AmountTotal int64  `json:"amount_total"`
	Metadata    struct {
		Type    string `json:"type"`
		UserID  string `json:"user_id"`
		Credits string `json:"credits"`
		Ref     string `json:"ref"`
	} `json:"metadata"`
}
