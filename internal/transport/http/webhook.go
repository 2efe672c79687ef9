package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkacci/FlashDeal/internal/app"
	"github.com/pkacci/FlashDeal/internal/domain"
	"go.uber.org/zap"
)

const signatureHeader = "Asaas-Signature"

// PaymentEventHandler is the minimal interface needed to process an
// authenticated payment event.
type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, ev app.PaymentEvent) error
}

// HandlePaymentWebhook returns the handler the Pix gateway delivers payment
// events to. The HMAC check is mandatory: anyone who learns this URL can
// otherwise forge confirmations and mint free vouchers.
func HandlePaymentWebhook(svc PaymentEventHandler, secret string, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "unreadable body")
			return
		}

		if !validSignature(secret, body, r.Header.Get(signatureHeader)) {
			// Attacker-facing only; logged for security monitoring, never
			// surfaced to users.
			logger.Warn("webhook signature mismatch",
				zap.String("remote_addr", r.RemoteAddr),
			)
			writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid signature")
			return
		}

		var payload webhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid payload")
			return
		}

		ev := app.PaymentEvent{Kind: payload.Event}
		if payload.Payment != nil {
			ev.CorrelationToken = payload.Payment.ExternalReference
			ev.TransactionID = payload.Payment.ID
		}

		if err := svc.HandlePaymentEvent(r.Context(), ev); err != nil {
			if err == domain.ErrInvalidID {
				writeError(w, http.StatusBadRequest, codeMissingReference, "externalReference missing")
				return
			}
			// 5xx tells the gateway to redeliver; the finalized gate makes
			// that safe.
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// validSignature compares the HMAC-SHA256 of the raw body against the header
// value in constant time.
func validSignature(secret string, body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

type webhookPayload struct {
	Event   string          `json:"event"`
	Payment *webhookPayment `json:"payment"`
}

type webhookPayment struct {
	ExternalReference string `json:"externalReference"`
	ID                string `json:"id"`
	Status            string `json:"status"`
}
