package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/prottoy/tableproto-backend/internal/hub"
	"github.com/prottoy/tableproto-backend/internal/ws"
)

func SetupRoutes(h *hub.Hub, wsOpts ws.Options) http.Handler {
	r := chi.NewRouter()

	r.Get("/ws", ws.Handler(h, wsOpts))
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
