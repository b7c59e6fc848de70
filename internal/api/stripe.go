// File path: internal/api/stripe.go
package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/crestlinecoaching/buildflow/internal/common"
)

// Payment webhooks only confirm receipt and forward a summary to the admin
// inbox; no payment state is kept locally.

const signatureTolerance = 5 * time.Minute

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			CustomerEmail string `json:"customer_email"`
			AmountTotal   int64  `json:"amount_total"`
			Currency      string `json:"currency"`
		} `json:"object"`
	} `json:"data"`
}

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if s.cfg.StripeWebhookSecret != "" {
		if err := verifyStripeSignature(r.Header.Get("Stripe-Signature"), body, s.cfg.StripeWebhookSecret, time.Now()); err != nil {
			logger.Warn("api: webhook signature rejected", "error", err)
			writeError(w, http.StatusUnauthorized, errors.New("invalid signature"))
			return
		}
	}

	var ev stripeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode event: %w", err))
		return
	}
	logger.Info("api: payment webhook received", "event_id", ev.ID, "type", ev.Type)

	if s.notifier != nil {
		subject := fmt.Sprintf("Payment event: %s", ev.Type)
		msg := fmt.Sprintf("Event %s (%s)\nCustomer: %s\nAmount: %d %s\n",
			ev.ID, ev.Type, ev.Data.Object.CustomerEmail,
			ev.Data.Object.AmountTotal, strings.ToUpper(ev.Data.Object.Currency))
		if err := s.notifier.NotifyAdmin(r.Context(), subject, msg); err != nil {
			logger.Warn("api: admin notification failed", "event_id", ev.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// verifyStripeSignature checks the Stripe-Signature header: the v1 entries
// are HMAC-SHA256 of "{timestamp}.{payload}" under the endpoint secret, and
// the timestamp must be recent enough to defeat replay.
func verifyStripeSignature(header string, payload []byte, secret string, now time.Time) error {
	if header == "" {
		return errors.New("missing Stripe-Signature header")
	}
	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("bad timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		}
	}
	if timestamp == 0 || len(signatures) == 0 {
		return errors.New("header carries no usable timestamp/signature")
	}
	if age := now.Sub(time.Unix(timestamp, 0)); age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("timestamp outside tolerance (%s)", age)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	expected := mac.Sum(nil)
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return errors.New("no matching v1 signature")
}
