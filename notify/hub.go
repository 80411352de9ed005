// Package notify pushes live tip alerts to performer tip-jar widgets over
// websockets.
package notify

import (
	"net/http"
	"sync"
	"time"

	"github.com/MohammedAK1991/street-performers-map-sub000/models"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 5 * time.Second

// TipAlert is the message sent to a performer's connected widgets.
type TipAlert struct {
	Type          string `json:"type"`
	TransactionID string `json:"transactionId"`
	PerformerID   string `json:"performerId"`
	PerformanceID string `json:"performanceId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Message       string `json:"message,omitempty"`
	Tipper        string `json:"tipper,omitempty"`
}

type Hub struct {
	mu       sync.Mutex
	clients  map[string]map[*websocket.Conn]bool
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			// Widgets are embedded in third-party streaming overlays.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// Subscribe upgrades the request and registers the connection for
// performerID until the peer goes away.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, performerID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.clients[performerID] == nil {
		h.clients[performerID] = make(map[*websocket.Conn]bool)
	}
	h.clients[performerID][conn] = true
	h.mu.Unlock()

	h.log.Info().Str("performer_id", performerID).Msg("tip widget connected")

	go func() {
		defer h.remove(performerID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// TipCompleted broadcasts a completed tip to the performer's widgets.
// Anonymous tips are sent without a tipper.
func (h *Hub) TipCompleted(tx models.Transaction) {
	alert := TipAlert{
		Type:          "TIP",
		TransactionID: tx.ID,
		PerformerID:   tx.ToUserID,
		PerformanceID: tx.PerformanceID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Message:       tx.PublicMessage,
	}
	if !tx.IsAnonymous && tx.FromUserID != nil {
		alert.Tipper = *tx.FromUserID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients[tx.ToUserID] {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(alert); err != nil {
			h.log.Warn().Err(err).Str("performer_id", tx.ToUserID).Msg("dropping tip widget")
			conn.Close()
			delete(h.clients[tx.ToUserID], conn)
		}
	}
}

// Connections returns the number of widgets connected for performerID.
func (h *Hub) Connections(performerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[performerID])
}

// Close disconnects every widget.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for performerID, conns := range h.clients {
		for conn := range conns {
			conn.Close()
		}
		delete(h.clients, performerID)
	}
}

func (h *Hub) remove(performerID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[performerID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, performerID)
		}
	}
	conn.Close()
}
