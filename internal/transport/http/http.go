package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/account"
	"github.com/corray333/coffeeshop/internal/service/models/credential"
	"github.com/corray333/coffeeshop/internal/service/models/order"
	"github.com/corray333/coffeeshop/internal/service/services/authsvc"
	"github.com/corray333/coffeeshop/internal/service/services/ordersvc"
	"github.com/corray333/coffeeshop/internal/transport/http/auth"
	"github.com/corray333/coffeeshop/internal/transport/http/authmw"
	createorder "github.com/corray333/coffeeshop/internal/transport/http/create_order"
	"github.com/corray333/coffeeshop/internal/transport/http/docs"
	getorder "github.com/corray333/coffeeshop/internal/transport/http/get_order"
	listorders "github.com/corray333/coffeeshop/internal/transport/http/list_orders"
	removeorder "github.com/corray333/coffeeshop/internal/transport/http/remove_order"
	updateorder "github.com/corray333/coffeeshop/internal/transport/http/update_order"
	"github.com/corray333/coffeeshop/pkg/http/middleware/trace"
	"github.com/corray333/coffeeshop/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type orderService interface {
	CreateOrder(ctx context.Context, in ordersvc.CreateOrderInput) (*order.Order, error)
	UpdateOrder(ctx context.Context, in ordersvc.UpdateOrderInput) (*order.Order, error)
	RemoveOrder(ctx context.Context, orderID string, actorID *string) error
	ListBranchOrders(ctx context.Context, branchID string, status *order.Status) ([]order.Order, error)
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
}

type authService interface {
	Register(ctx context.Context, in authsvc.RegisterInput) (*account.Account, *credential.Pair, error)
	Login(ctx context.Context, email, password string) (*account.Account, *credential.Pair, error)
	Refresh(ctx context.Context, presented string) (*account.Account, *credential.Pair, error)
	Revoke(ctx context.Context, accountID string) error
	VerifyAccess(token string) (credential.Claims, error)
}

type HTTPTransport struct {
	server   *http.Server
	router   *chi.Mux
	orders   orderService
	auth     authService
	realtime http.Handler
}

// NewHTTPTransport creates the REST transport. realtime serves the websocket
// endpoint and may be nil.
func NewHTTPTransport(orders orderService, auth authService, realtime http.Handler) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:   server,
		router:   router,
		orders:   orders,
		auth:     auth,
		realtime: realtime,
	}
}

func (h *HTTPTransport) Run() error {
	slog.Info("Starting HTTP server", "address", h.server.Addr)
	return h.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (h *HTTPTransport) Handler() http.Handler {
	return h.router
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	h.router.Get("/api/openapi.json", docs.ServeOpenAPI)
	h.router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/api/openapi.json")))

	if h.realtime != nil {
		h.router.Handle("/ws", h.realtime)
	}

	requireAuth := authmw.RequireAuth(h.auth)

	h.router.Route("/orders", func(r chi.Router) {
		r.Post("/public", h.createPublicOrder)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", h.createOrder)
			r.Get("/{id}", h.getOrder)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RequireStaff)
				r.Get("/branch", h.listBranchOrders)
				r.Patch("/{id}", h.updateOrder)
				r.Delete("/{id}", h.removeOrder)
			})
		})
	})

	h.router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.With(requireAuth).Post("/logout", h.logout)
	})
}

func (h *HTTPTransport) createPublicOrder(w http.ResponseWriter, r *http.Request) {
	createorder.CreatePublic(w, r, h.orders)
}

func (h *HTTPTransport) createOrder(w http.ResponseWriter, r *http.Request) {
	createorder.Create(w, r, h.orders)
}

func (h *HTTPTransport) getOrder(w http.ResponseWriter, r *http.Request) {
	getorder.GetOrder(w, r, h.orders)
}

func (h *HTTPTransport) listBranchOrders(w http.ResponseWriter, r *http.Request) {
	listorders.ListBranchOrders(w, r, h.orders)
}

func (h *HTTPTransport) updateOrder(w http.ResponseWriter, r *http.Request) {
	updateorder.UpdateOrder(w, r, h.orders)
}

func (h *HTTPTransport) removeOrder(w http.ResponseWriter, r *http.Request) {
	removeorder.RemoveOrder(w, r, h.orders)
}

func (h *HTTPTransport) register(w http.ResponseWriter, r *http.Request) {
	auth.Register(w, r, h.auth)
}

func (h *HTTPTransport) login(w http.ResponseWriter, r *http.Request) {
	auth.Login(w, r, h.auth)
}

func (h *HTTPTransport) refresh(w http.ResponseWriter, r *http.Request) {
	auth.Refresh(w, r, h.auth)
}

func (h *HTTPTransport) logout(w http.ResponseWriter, r *http.Request) {
	auth.Logout(w, r, h.auth)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))
	router.Use(middleware.Recoverer)
	router.Use(trace.NewTraceMiddleware)

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	port := viper.GetString("server.http.port")
	if port == "" {
		port = "8080"
	}

	return &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
