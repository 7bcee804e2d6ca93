package gateway

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"kbgate/internal/channels"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway sits behind the operator's own ingress; origin
	// policy is enforced there.
	CheckOrigin: func(*http.Request) bool { return true },
}

// chatRequest is one message from a WebSocket client.
type chatRequest struct {
	TenantID int64  `json:"tenant_id"`
	UserID   string `json:"user_id,omitempty"`
	Message  string `json:"message"`
}

// chatResponse is the reply pushed back over the socket.
type chatResponse struct {
	Answer  string   `json:"answer,omitempty"`
	Sources []string `json:"sources,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// handleWSChat upgrades the connection and answers each message on it
// in turn. A connection without an explicit user_id gets a generated
// one, keeping its conversation separate from other anonymous clients.
func (g *Gateway) handleWSChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connUser := "ws-" + uuid.New().String()
	log.Printf("[Gateway] websocket client connected as %s", connUser)

	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Gateway] websocket read failed: %v", err)
			}
			return
		}

		resp := g.answerChat(r, connUser, req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[Gateway] websocket write failed: %v", err)
			return
		}
	}
}

func (g *Gateway) answerChat(r *http.Request, connUser string, req chatRequest) chatResponse {
	if req.TenantID <= 0 || req.Message == "" {
		return chatResponse{Error: "tenant_id and message are required"}
	}

	userID := req.UserID
	if userID == "" {
		userID = connUser
	}

	answer, err := g.engine.Answer(r.Context(), req.TenantID, userID, req.Message)
	if err != nil {
		log.Printf("[Gateway] websocket answer for tenant %d failed: %v", req.TenantID, err)
		return chatResponse{Error: channels.FallbackReply(err)}
	}

	return chatResponse{Answer: answer.Text, Sources: answer.Sources}
}
