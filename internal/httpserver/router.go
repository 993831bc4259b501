package httpserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chirper/internal/config"
	"chirper/internal/pubsub"
	"chirper/internal/security"
	"chirper/internal/service"
	"chirper/internal/store/sqlite"
	"chirper/internal/ws"
)

// NewRouter constructs the main HTTP router and wires routes, services, and
// middleware. The hub is injected so the send-message path and the websocket
// subscription endpoint share one instance.
func NewRouter(cfg *config.Config, db *sql.DB, hub *pubsub.Hub, tokenSvc *security.TokenService, passwordHasher *security.PasswordHasher) http.Handler {
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Repositories
	userRepo := sqlite.NewUserRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	readRepo := sqlite.NewReadStateRepo(db)

	// Services
	authSvc := service.NewAuthService(userRepo, tokenSvc, passwordHasher)
	userSvc := service.NewUserService(userRepo)
	convSvc := service.NewConversationService(convRepo, userRepo)
	msgSvc := service.NewMessageService(convRepo, msgRepo, readRepo, hub, cfg.DefaultPageSize, cfg.MaxPageSize)
	readSvc := service.NewReadStateService(convRepo, msgRepo, readRepo)
	inboxSvc := service.NewInboxService(convRepo, userRepo, nil)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"Chirper API","version":"1.0.0"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Auth routes (no auth required)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handleRegister(authSvc))
			r.Post("/login", handleLogin(authSvc))
		})

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(tokenSvc, userRepo))

			r.Get("/auth/me", handleMe())

			// Users
			r.Route("/users", func(r chi.Router) {
				r.Get("/", handleListUsers(userSvc))
				r.Get("/{userID}", handleGetUser(userSvc))
				r.Post("/me/last-seen", handleUpdateLastSeen(readSvc))
			})

			// Conversations and messages
			r.Route("/conversations", func(r chi.Router) {
				r.Get("/", handleUserInbox(inboxSvc))
				r.Post("/", handleCreateConversation(convSvc))
				r.Post("/direct", handleMessageUser(convSvc))
				r.Post("/members", handleAddPeople(convSvc))
				r.Route("/{conversationID}", func(r chi.Router) {
					r.Get("/", handleGetConversation(convSvc))
					r.Post("/accept", handleAcceptInvitation(convSvc))
					r.Get("/messages", handleListMessages(msgSvc))
					r.Post("/messages", handleSendMessage(msgSvc))
					r.Post("/read", handleReadConversation(readSvc))
					r.Post("/leave", handleLeaveConversation(readSvc))
				})
			})
		})
	})

	// WebSocket endpoint carrying the messageCreated subscription
	r.Get("/ws", ws.MakeHandler(hub, tokenSvc, userRepo, convSvc, msgSvc, cfg.CORSOrigins, time.Duration(cfg.WSIdleSeconds)*time.Second))

	return r
}
