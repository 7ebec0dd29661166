package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"trustpay/pkg/httpx/reply"
)

func (s Server) RegisterRoutes(r chi.Router) { //nolint:funlen
	r.Route("/", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/deals", func(r chi.Router) {
				r.Post("/", handler(s.postV1Deal))
				r.Get("/{dealID}", handler(s.getV1Deal))
				r.Get("/{dealID}/audit", handler(s.getV1DealAudit))
				r.Post("/{dealID}/accept", handler(s.postV1DealAccept))
				r.Post("/{dealID}/decline", handler(s.postV1DealDecline))
				r.Post("/{dealID}/cancel", handler(s.postV1DealCancel))
				r.Post("/{dealID}/pay", handler(s.postV1DealPay))
				r.Post("/{dealID}/delivered", handler(s.postV1DealDelivered))
				r.Post("/{dealID}/received", handler(s.postV1DealReceived))
				r.Post("/{dealID}/dispute", handler(s.postV1DealDispute))
				r.Post("/{dealID}/resolve", handler(s.postV1DealResolve))
			})

			r.Put("/profile/payout-destination", handler(s.putV1PayoutDestination))

			// unauthorized zone: подпись проверяется внутри хендлера
			r.Post("/paystack/webhook", handler(s.postV1PaystackWebhook))
		})
	})
}

func handler(f func(http.ResponseWriter, *http.Request) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			reply.Error(r.Context(), w, asFailure(err))
		}
	}
}
