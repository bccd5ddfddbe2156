package controller

import (
	"sync"

	"github.com/gofiber/websocket/v2"

	"clariphish/utils"
)

// ProgressHub fans campaign send progress out to websocket subscribers.
type ProgressHub struct {
	mu    sync.Mutex
	conns map[uint]map[*websocket.Conn]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{conns: make(map[uint]map[*websocket.Conn]struct{})}
}

func (h *ProgressHub) subscribe(campaignID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[campaignID] == nil {
		h.conns[campaignID] = make(map[*websocket.Conn]struct{})
	}
	h.conns[campaignID][conn] = struct{}{}
}

func (h *ProgressHub) unsubscribe(campaignID uint, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[campaignID], conn)
	if len(h.conns[campaignID]) == 0 {
		delete(h.conns, campaignID)
	}
}

// Broadcast pushes one progress update to every subscriber of the campaign.
// Dead connections are dropped on write failure.
func (h *ProgressHub) Broadcast(p utils.SendProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns[p.CampaignID] {
		if err := conn.WriteJSON(p); err != nil {
			conn.Close()
			delete(h.conns[p.CampaignID], conn)
		}
	}
}

// HandleCampaignProgressWS streams live send progress for one campaign.
// The socket stays open until the client disconnects; reads are only used
// to detect the close.
func (cc *CampaignController) HandleCampaignProgressWS(hub *ProgressHub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		campaignID := utils.ParseUint(conn.Params("id"))
		if campaignID == 0 {
			conn.WriteJSON(map[string]string{"error": "invalid campaign id"})
			conn.Close()
			return
		}

		hub.subscribe(campaignID, conn)
		defer func() {
			hub.unsubscribe(campaignID, conn)
			conn.Close()
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
