package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/voxscribe/api/internal/model"
)

// subscriber is one websocket connection watching a single job. drop is
// closed on detach; send is never closed, so a racing pong write from
// the reader loop stays safe.
type subscriber struct {
	jobID string
	send  chan []byte
	drop  chan struct{}
}

// Hub fans job snapshots out to websocket subscribers grouped by job id.
// Polling GET /api/jobs stays the source of truth; the hub only saves
// clients a round-trip when a pipeline advances.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*subscriber]struct{}
	log         *zap.SugaredLogger
}

// NewHub creates an empty hub.
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		subscribers: make(map[string]map[*subscriber]struct{}),
		log:         log,
	}
}

// PublishJob sends a snapshot of the job to every subscriber of its id.
// Slow subscribers are dropped rather than blocking a pipeline.
func (h *Hub) PublishJob(job model.Job) {
	msg := model.WSJobMessage{Type: model.WSMessageTypeJob, Job: job}
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorw("failed to marshal job message", "jobId", job.ID, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[job.ID] {
		select {
		case sub.send <- data:
		default:
			h.detachLocked(sub)
		}
	}
}

func (h *Hub) attach(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[sub.jobID] == nil {
		h.subscribers[sub.jobID] = make(map[*subscriber]struct{})
	}
	h.subscribers[sub.jobID][sub] = struct{}{}
}

func (h *Hub) detach(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(sub)
}

// detachLocked removes the subscriber and closes its drop channel. The
// membership check makes the close happen at most once even when the
// publisher and the connection handler race to detach.
func (h *Hub) detachLocked(sub *subscriber) {
	subs, ok := h.subscribers[sub.jobID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.drop)
	if len(subs) == 0 {
		delete(h.subscribers, sub.jobID)
	}
}

// HandleConnection serves one websocket connection subscribed to jobID.
// It blocks until the client disconnects.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	sub := &subscriber{
		jobID: jobID,
		send:  make(chan []byte, 64),
		drop:  make(chan struct{}),
	}
	h.attach(sub)
	defer h.detach(sub)

	done := make(chan struct{})

	// Writer: job snapshots plus periodic keep-alive pings.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message := <-sub.send:
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}
			case <-sub.drop:
				_ = c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	// Reader: only ping messages are expected from clients.
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debugw("websocket read error", "jobId", jobID, "error", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case sub.send <- pong:
			default:
			}
		}
	}

	close(done)
}
