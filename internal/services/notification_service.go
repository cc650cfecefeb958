package services

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// Notifier delivers an event to a single user. Delivery is best effort; a
// user without an open channel is not an error.
type Notifier interface {
	Send(userID uint, event string, payload interface{})
}

// MultiNotifier fans an event out to several notifiers
type MultiNotifier []Notifier

// Send implements Notifier
func (m MultiNotifier) Send(userID uint, event string, payload interface{}) {
	for _, n := range m {
		if n != nil {
			n.Send(userID, event, payload)
		}
	}
}

// Client represents a websocket client connection
type Client struct {
	id     string
	conn   *websocket.Conn
	userID uint
	send   chan []byte
}

// NotificationMessage represents a message sent to clients
type NotificationMessage struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// NotificationService keeps the open websocket channels of each user
type NotificationService struct {
	logger     *utils.Logger
	clients    map[uint]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	mutex      sync.RWMutex
}

// NewNotificationService creates a new notification service
func NewNotificationService(logger *utils.Logger) *NotificationService {
	service := &NotificationService{
		logger:     logger.Named("notification_service"),
		clients:    make(map[uint]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}

	go service.run()
	return service
}

// RegisterClient adds a websocket connection for userID and starts its pumps
func (s *NotificationService) RegisterClient(conn *websocket.Conn, userID uint) *Client {
	client := &Client{
		id:     uuid.NewString(),
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, 256),
	}

	s.register <- client

	go s.readPump(client)
	go s.writePump(client)

	return client
}

// Connected reports how many channels the user has open
func (s *NotificationService) Connected(userID uint) int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.clients[userID])
}

// Send implements Notifier
func (s *NotificationService) Send(userID uint, event string, payload interface{}) {
	message := &NotificationMessage{
		Event:     event,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	jsonMessage, err := json.Marshal(message)
	if err != nil {
		s.logger.Error("Failed to marshal notification message", zap.Error(err), zap.String("event", event))
		return
	}

	var full []*Client
	s.mutex.RLock()
	for client := range s.clients[userID] {
		select {
		case client.send <- jsonMessage:
		default:
			full = append(full, client)
		}
	}
	s.mutex.RUnlock()

	for _, client := range full {
		s.logger.Warn("Client buffer full, closing connection", zap.Uint("user_id", client.userID))
		s.remove(client)
	}
}

// Shutdown stops the service and closes every channel
func (s *NotificationService) Shutdown() {
	close(s.quit)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for userID, set := range s.clients {
		for client := range set {
			close(client.send)
		}
		delete(s.clients, userID)
	}
}

// run processes registrations in the main loop
func (s *NotificationService) run() {
	for {
		select {
		case client := <-s.register:
			s.mutex.Lock()
			set, ok := s.clients[client.userID]
			if !ok {
				set = make(map[*Client]bool)
				s.clients[client.userID] = set
			}
			set[client] = true
			s.mutex.Unlock()
			s.logger.Debug("Client registered", zap.Uint("user_id", client.userID), zap.String("client_id", client.id))

		case client := <-s.unregister:
			s.remove(client)
			s.logger.Debug("Client unregistered", zap.Uint("user_id", client.userID), zap.String("client_id", client.id))

		case <-s.quit:
			return
		}
	}
}

func (s *NotificationService) remove(client *Client) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	set, ok := s.clients[client.userID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(s.clients, client.userID)
	}
}

// readPump drains the client; the channel is server push only
func (s *NotificationService) readPump(client *Client) {
	defer func() {
		select {
		case s.unregister <- client:
		case <-s.quit:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				s.logger.Warn("Unexpected websocket close",
					zap.Error(err),
					zap.Uint("user_id", client.userID))
			}
			return
		}
	}
}

// writePump writes messages to the client
func (s *NotificationService) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
