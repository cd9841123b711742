package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"salchimonster/restaurant-reports/auth"
	"salchimonster/restaurant-reports/service"
)

// Server holds what the HTTP handlers need. Hubs are plain handlers so tests can leave
// them out.
type Server struct {
	Session     *service.SessionService
	Locales     *service.LocaleService
	Deliveries  *service.DeliveryService
	Orders      *service.OrderService
	Apelaciones *service.ApelacionService
	Informes    *service.InformeService
	Planillas   *service.PlanillaStore
	Fotos       *service.FotoStore
	Didi        *service.DidiService
	Auth        *auth.Signer

	CredentialsHub http.Handler
	ReportHub      http.Handler
	SedesHub       http.Handler

	CorsOrigins []string
}

func mountHub(r chi.Router, pattern string, hub http.Handler) {
	if hub != nil {
		r.Get(pattern, hub.ServeHTTP)
	}
}

// NewRouter registers every route of the dashboard API. Admin routes only demand an
// admin token when auth.jwt_secret is configured.
func NewRouter(s *Server) http.Handler {
	if s.Auth == nil {
		s.Auth = auth.NewSigner("", 0)
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)
	r.Use(corsMiddleware(s.CorsOrigins))
	r.Use(s.Auth.Middleware(writeError))

	admin := s.Auth.RequireAdmin(writeError)

	r.Get("/", s.root)

	mountHub(r, "/credentials/ws", s.CredentialsHub)
	mountHub(r, "/report/ws", s.ReportHub)
	mountHub(r, "/didi/sedes/ws", s.SedesHub)

	r.Group(func(r chi.Router) {
		r.Use(admin)
		r.Get("/credentials", s.getCredentials)
		r.Put("/credentials", s.putCredentials)
		r.Post("/credentials/update-and-login", s.updateAndLogin)
		r.Post("/login", s.login)
		r.Post("/login/form", s.formLogin)
		r.Get("/cookies", s.getCookies)
		r.Post("/cookies/clear", s.clearCookies)
		r.Get("/token", s.getToken)
		r.Get("/report", s.salesReport)
	})

	r.Get("/report/locales", s.listLocales)
	r.Get("/report/canales-delivery", s.listCanales)

	r.Route("/api", func(r chi.Router) {
		r.Get("/orders", s.listOrders)
		r.Get("/orders/by-codigo/*", s.orderByCodigo)
		r.Post("/orders/no-entregada", s.markNoEntregada)
		r.Get("/orders/{codigo}/fotos", s.listFotos)
		r.Post("/orders/{codigo}/fotos", s.uploadFotos)
		r.Get("/orders/{codigo}/fotos/{group}/*", s.serveFoto)
		r.Delete("/orders/{codigo}/fotos/{group}/*", s.deleteFoto)

		r.Get("/apelaciones/pendientes", s.pendientes)
		r.Post("/apelaciones/apelar", s.apelar)
		r.Post("/apelaciones/no-apelar", s.noApelar)
		r.Get("/apelaciones/reembolsos-pendientes", s.reembolsosPendientes)
		r.Get("/apelaciones/descuentos", s.descuentos)
		r.Get("/apelaciones/reporte", s.reporte)
		r.Get("/informes", s.informes)
		r.Get("/reporte-maestro", s.reporteMaestro)

		r.Get("/planilla/estado-sedes", s.planillaEstadoSedes)
		r.Get("/planilla/{local_id}/{fecha}/estado", s.planillaEstado)
		r.Post("/planilla/{local_id}/{fecha}", s.planillaUpload)
		r.Delete("/planilla/{local_id}/{fecha}", s.planillaDelete)
		r.Get("/planilla/{local_id}/{fecha}/archivo/{nombre}", s.planillaDownload)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Post("/apelaciones/marcar", s.marcar)
			r.Post("/apelaciones/reembolsar", s.reembolsar)
			r.Get("/apelaciones/estado-admin", s.estadoAdmin)
			r.Post("/apelaciones/confirmar-descuento", s.confirmarDescuento)
			r.Post("/admin/organize-foto-refs", s.organizeFotoRefs)

			r.Get("/exports/descuentos.csv", s.exportDescuentos)
			r.Get("/exports/reporte-maestro.csv", s.exportMaestro)
			r.Get("/exports/apelaciones.pdf", s.exportApelacionesPDF)
		})
	})

	r.Route("/didi", func(r chi.Router) {
		r.Post("/daily-orders-payload", s.didiDailyOrders)
		r.Post("/capture", s.didiCapture)
		r.Get("/merge-now", s.didiMergeNow)
		r.Post("/merge-now", s.didiMergeNow)
		r.Post("/sede-heartbeat", s.didiHeartbeat)
		r.Get("/mapa-restaurant", s.didiMapa)
		r.Get("/extension-status", s.didiExtensionStatus)
		r.Get("/privacy-policy", s.didiPrivacyPolicy)
		r.Get("/sedes", s.didiSedes)

		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Get("/suggest", s.didiSuggest)
			r.Post("/link", s.didiLink)
		})
	})

	return r
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Restaurant Reports API"})
}
