package socket

import (
	"encoding/json"
	"sync"
	"time"

	"halaman/internal/autosave"
	"halaman/internal/page/model"
	"halaman/pkg/logger"
)

const (
	EditType       = "EDIT"        // sparse title/content patch from an editor
	UpdateType     = "UPDATE"      // page state pushed to clients
	SaveStatusType = "SAVE_STATUS" // autosave state transition
	PageGoneType   = "PAGE_GONE"   // page deleted while the room was open
)

type WSMessage struct {
	Type    string          `json:"type"`
	PageID  string          `json:"page_id"`
	Payload json.RawMessage `json:"payload"`

	// Sender is set server-side by the reading client so its own edits
	// are not echoed back to it.
	Sender *Client `json:"-"`
}

// EditPayload mirrors the editor's change events: only touched fields are
// present.
type EditPayload struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type PagePayload struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Icon    string `json:"icon"`
}

type StatusPayload struct {
	State string `json:"state"`
}

// PageBackend is the slice of the page service the hub needs. Content is
// opaque to the hub; it is forwarded and persisted, never parsed.
type PageBackend interface {
	GetPage(id string) (*model.Page, error)
	UpdatePage(id string, patch model.PagePatch) (*model.Page, error)
}

// Hub routes editing sessions: clients join a room per page, edits flow
// through one autosave coordinator per room, and save-status transitions
// plus patches are fanned back out. This is notification plumbing for a
// single writer, not merge logic; concurrent writers get last-write-wins.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Broadcast  chan WSMessage

	backend PageBackend

	// SaveDelay is the autosave debounce window; tests shorten it.
	SaveDelay time.Duration

	mu     sync.Mutex
	rooms  map[string]map[*Client]bool
	coords map[string]*autosave.Coordinator
}

func NewHub(backend PageBackend) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Broadcast:  make(chan WSMessage),
		backend:    backend,
		SaveDelay:  autosave.DefaultDelay,
		rooms:      make(map[string]map[*Client]bool),
		coords:     make(map[string]*autosave.Coordinator),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case msg := <-h.Broadcast:
			h.handleMessage(msg)
		}
	}
}

func (h *Hub) register(client *Client) {
	page, err := h.backend.GetPage(client.PageID)
	if err != nil {
		logger.Sugar.Warnf("Rejecting connection: page %s not loadable: %v", client.PageID, err)
		close(client.Send)
		client.Conn.Close()
		return
	}

	h.mu.Lock()
	if h.rooms[client.PageID] == nil {
		h.rooms[client.PageID] = make(map[*Client]bool)
		h.coords[client.PageID] = h.newCoordinator(client.PageID)
	}
	h.rooms[client.PageID][client] = true
	h.mu.Unlock()

	// The joining client gets the full current page state so its editor
	// starts from what is persisted.
	payload, _ := json.Marshal(PagePayload{Title: page.Title, Content: page.Content, Icon: page.Icon})
	initial, _ := json.Marshal(WSMessage{Type: UpdateType, PageID: client.PageID, Payload: payload})
	client.Send <- initial
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	var coord *autosave.Coordinator
	if _, ok := h.rooms[client.PageID][client]; ok {
		delete(h.rooms[client.PageID], client)
		close(client.Send)

		if len(h.rooms[client.PageID]) == 0 {
			coord = h.coords[client.PageID]
			delete(h.rooms, client.PageID)
			delete(h.coords, client.PageID)
			logger.Sugar.Infof("Closed empty room for page %s", client.PageID)
		}
	}
	h.mu.Unlock()

	// Last editor left: a pending debounce must not lose its edit. Flush
	// outside the lock, then retire the coordinator.
	if coord != nil {
		if err := coord.Flush(); err != nil {
			logger.Sugar.Errorf("Failed to flush page %s on room close: %v", client.PageID, err)
		}
		coord.Close()
	}
}

func (h *Hub) handleMessage(msg WSMessage) {
	if msg.Type != EditType {
		return
	}

	var edit EditPayload
	if err := json.Unmarshal(msg.Payload, &edit); err != nil {
		logger.Sugar.Errorf("Bad edit payload for page %s: %v", msg.PageID, err)
		return
	}

	h.mu.Lock()
	coord := h.coords[msg.PageID]
	h.mu.Unlock()
	if coord == nil {
		return
	}
	coord.Edit(autosave.Patch{Title: edit.Title, Content: edit.Content})

	// Other clients in the room see the patch right away; persistence
	// happens on the coordinator's schedule.
	h.broadcastToRoom(msg.PageID, msg.Sender, WSMessage{Type: UpdateType, PageID: msg.PageID, Payload: msg.Payload})
}

func (h *Hub) newCoordinator(pageID string) *autosave.Coordinator {
	save := func(p autosave.Patch) error {
		_, err := h.backend.UpdatePage(pageID, model.PagePatch{Title: p.Title, Content: p.Content})
		if err != nil {
			logger.Sugar.Errorf("Autosave failed for page %s: %v", pageID, err)
		}
		return err
	}
	notify := func(s autosave.State) {
		payload, _ := json.Marshal(StatusPayload{State: s.String()})
		h.broadcastToRoom(pageID, nil, WSMessage{Type: SaveStatusType, PageID: pageID, Payload: payload})
	}
	return autosave.New(save, autosave.WithDelay(h.SaveDelay), autosave.WithNotify(notify))
}

// RemovePage tears a room down after its page was deleted: clients are
// told and disconnected, and the coordinator is dropped without flushing
// so the dead page is not written back.
func (h *Hub) RemovePage(pageID string) {
	h.mu.Lock()
	clients := h.rooms[pageID]
	coord := h.coords[pageID]
	delete(h.rooms, pageID)
	delete(h.coords, pageID)
	h.mu.Unlock()

	if coord != nil {
		coord.Close()
	}

	gone, _ := json.Marshal(WSMessage{Type: PageGoneType, PageID: pageID})
	for client := range clients {
		select {
		case client.Send <- gone:
		default:
		}
		client.Conn.Close() // readPump exits and unregisters safely
	}
}

// broadcastToRoom pushes one marshalled message into every room member's
// send buffer, skipping the originating client.
func (h *Hub) broadcastToRoom(pageID string, skip *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		logger.Sugar.Errorf("Error marshalling broadcast message: %v", err)
		return
	}

	// Sends are non-blocking on buffered channels, so holding the lock
	// here is cheap and keeps a concurrent unregister from closing a
	// channel mid-broadcast.
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.rooms[pageID] {
		if client == skip {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			// Full buffer means a lagging client; drop the message rather
			// than stall the hub.
			logger.Sugar.Warnf("Send buffer full for a client on page %s", pageID)
		}
	}
}
