package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Reservations  ReservationCreator
	Cancellations ReservationCanceller
	Webhooks      PaymentEventHandler
	Redemptions   VoucherRedeemer
	Offers        OfferAuthoring
	WebhookSecret string
	CORSOrigins   []string
	Logger        *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger(deps.Logger))
	r.Use(CORS(deps.CORSOrigins))

	r.Get("/health", HealthHandler)
	r.Post("/reservations", HandleCreateReservation(deps.Reservations))
	r.Post("/reservations/{reservationID}/cancel", HandleCancelReservation(deps.Cancellations))
	r.Post("/webhooks/payment", HandlePaymentWebhook(deps.Webhooks, deps.WebhookSecret, deps.Logger))
	r.Post("/redemptions", HandleRedeemVoucher(deps.Redemptions))
	r.Post("/offers", HandleCreateOffer(deps.Offers))
	r.Get("/offers", HandleListOffers(deps.Offers))
	r.Post("/offers/{offerID}/end", HandleEndOffer(deps.Offers))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})

	return r
}

// HealthHandler reports basic liveness for the service.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
