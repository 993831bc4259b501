package ws

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chirper/internal/domain"
	"chirper/internal/pubsub"
	"chirper/internal/security"
	"chirper/internal/service"
)

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// conn wraps a websocket connection with a write lock so subscription pump
// goroutines and the read loop never interleave frames.
type conn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or
// Sec-WebSocket-Protocol), then dispatches events:
//   - subscribe    -> start streaming messageCreated events for a conversation
//   - unsubscribe  -> stop streaming for a conversation
//   - message      -> append a message (fans out via the hub like the HTTP path)
//
// Subscribers receive only events for conversations they subscribed to, in
// publish order per conversation. Closing the socket tears every
// subscription down; there is no replay.
func MakeHandler(
	hub *pubsub.Hub,
	tokens *security.TokenService,
	users domain.UserRepository,
	convSvc *service.ConversationService,
	msgSvc *service.MessageService,
	allowedOrigins []string,
	idleTimeout time.Duration,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			if authErr, ok := err.(wsAuthError); ok {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		sub, _ := claims["sub"].(string)
		if sub == "" {
			http.Error(w, "invalid token subject", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		user, err := users.GetByUsername(ctx, sub)
		if err != nil || user == nil {
			http.Error(w, "user not found", http.StatusUnauthorized)
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer wsConn.Close()

		c := &conn{ws: wsConn}

		// Cancelling connCtx unsubscribes every active stream through the
		// hub's context cleanup.
		connCtx, cancelAll := context.WithCancel(context.Background())
		defer cancelAll()

		cancels := make(map[int64]context.CancelFunc)

		for {
			if idleTimeout > 0 {
				_ = wsConn.SetReadDeadline(time.Now().Add(idleTimeout))
			}
			var payload map[string]any
			if err := wsConn.ReadJSON(&payload); err != nil {
				break
			}
			msgType, _ := payload["type"].(string)
			switch msgType {

			case "subscribe":
				convIDf, _ := payload["conversation_id"].(float64)
				if convIDf == 0 {
					sendError(c, "subscribe requires conversation_id")
					continue
				}
				convID := int64(convIDf)
				if _, ok := cancels[convID]; ok {
					continue
				}
				if _, err := convSvc.GetForUser(ctx, convID, user.ID); err != nil {
					sendError(c, "not allowed for this conversation")
					continue
				}
				subCtx, cancel := context.WithCancel(connCtx)
				cancels[convID] = cancel
				ch, _ := hub.Subscribe(subCtx, convID)
				go func(convID int64, ch <-chan *domain.Message) {
					for msg := range ch {
						if err := c.writeJSON(map[string]any{
							"type":    "message_created",
							"message": msg,
						}); err != nil {
							// Broken subscriber: drop it, the publisher
							// never hears about the failure.
							cancel()
							return
						}
					}
				}(convID, ch)

			case "unsubscribe":
				convIDf, _ := payload["conversation_id"].(float64)
				if convIDf == 0 {
					continue
				}
				convID := int64(convIDf)
				if cancel, ok := cancels[convID]; ok {
					cancel()
					delete(cancels, convID)
				}

			case "message":
				convIDf, _ := payload["conversation_id"].(float64)
				text, _ := payload["text"].(string)
				if convIDf == 0 || text == "" {
					sendError(c, "message requires conversation_id and non-empty text")
					continue
				}
				msg, err := msgSvc.Append(ctx, int64(convIDf), user.ID, text)
				if err != nil {
					log.Printf("ws: append message: %v", err)
					sendError(c, "failed to send message")
					continue
				}
				_ = c.writeJSON(map[string]any{
					"type":    "message_sent",
					"message": msg,
				})

			default:
				log.Printf("ws: unknown event type %q from user %d", msgType, user.ID)
			}
		}
	}
}

func sendError(c *conn, msg string) {
	_ = c.writeJSON(map[string]any{
		"type":    "error",
		"message": msg,
	})
}
