// Package preview раздает кадры живого превью и статус камеры по WebSocket.
package preview

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"photo-studio/internal/application"
	"photo-studio/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Клиенты ничего не присылают, кроме pong и close
	maxMessageSize = 4 * 1024
	sendBuffer     = 8
)

// Options параметры хаба
type Options struct {
	MaxFPS  float64 // 0 без ограничения
	Quality float64 // качество JPEG кадров превью, (0,1]
}

// Stats счетчики хаба
type Stats struct {
	Clients   int    `json:"clients"`
	Published uint64 `json:"published"`
	Skipped   uint64 `json:"skipped"`
	Dropped   uint64 `json:"dropped"`
}

type message struct {
	kind int
	data []byte
}

// Hub реализует application.PreviewSink и рассылает кадры всем подключенным клиентам
type Hub struct {
	logger   application.Logger
	encoder  application.ImageEncoder
	options  Options
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
	lastSent time.Time

	wg        sync.WaitGroup
	published atomic.Uint64
	skipped   atomic.Uint64
	dropped   atomic.Uint64
}

// NewHub создает новый хаб превью
func NewHub(encoder application.ImageEncoder, logger application.Logger, options Options) *Hub {
	return &Hub{
		logger:  logger,
		encoder: encoder,
		options: options,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Разрешаем все подключения
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// PublishFrame кодирует кадр один раз и ставит его в очередь каждому клиенту.
// Без клиентов кадр не кодируется.
func (h *Hub) PublishFrame(frame domain.VideoFrame) {
	if frame.Image == nil || !h.takeSlot(frame.Timestamp) {
		h.skipped.Add(1)
		return
	}

	handle, err := h.encoder.Encode(frame.Image, h.options.Quality)
	if err != nil {
		h.logger.Error("Ошибка кодирования кадра превью: %v", err)
		return
	}

	h.broadcast(message{kind: websocket.BinaryMessage, data: handle.Bytes()})
	h.published.Add(1)

	if frame.Number%100 == 0 {
		h.logger.Debug("Превью: кадр %d, клиентов %d", frame.Number, h.Clients())
	}
}

// takeSlot решает, отправлять ли кадр с учетом MaxFPS
func (h *Hub) takeSlot(ts time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || len(h.clients) == 0 {
		return false
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	if h.options.MaxFPS > 0 && !h.lastSent.IsZero() {
		interval := time.Duration(float64(time.Second) / h.options.MaxFPS)
		if ts.Sub(h.lastSent) < interval {
			return false
		}
	}
	h.lastSent = ts
	return true
}

// PublishStatus рассылает состояние камеры текстовым JSON-сообщением
func (h *Hub) PublishStatus(status domain.CaptureStatus) error {
	data, err := json.Marshal(struct {
		Type   string               `json:"type"`
		Status domain.CaptureStatus `json:"status"`
	}{Type: "status", Status: status})
	if err != nil {
		return err
	}
	h.broadcast(message{kind: websocket.TextMessage, data: data})
	return nil
}

func (h *Hub) broadcast(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Медленный клиент пропускает кадр, но остается подключенным
			h.dropped.Add(1)
		}
	}
}

// Clients число подключенных клиентов
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats снимок счетчиков
func (h *Hub) Stats() Stats {
	return Stats{
		Clients:   h.Clients(),
		Published: h.published.Load(),
		Skipped:   h.skipped.Load(),
		Dropped:   h.dropped.Load(),
	}
}

// ServeHTTP апгрейдит соединение и держит его до отключения клиента
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Ошибка при апгрейде до WebSocket: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), hub: h, conn: conn, send: make(chan message, sendBuffer)}
	if err := h.register(c); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
		return
	}

	defer h.wg.Done()

	addr := conn.RemoteAddr().String()
	h.logger.Info("Клиент превью %s подключен: %s", c.id, addr)

	c.writerDone.Add(1)
	go c.writePump()
	c.readPump()

	h.logger.Info("Клиент превью %s отключен: %s", c.id, addr)
}

var errHubClosed = errors.New("хаб превью закрыт")

func (h *Hub) register(c *client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errHubClosed
	}
	h.clients[c] = struct{}{}
	h.wg.Add(1)
	return nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close отключает всех клиентов и ждет завершения их обработчиков
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	h.wg.Wait()

	stats := h.Stats()
	h.logger.Info("Хаб превью закрыт: отправлено %d, пропущено %d, отброшено %d",
		stats.Published, stats.Skipped, stats.Dropped)
	return nil
}

type client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan message

	writerDone sync.WaitGroup
}

// readPump читает только служебные сообщения, чтобы заметить отключение
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.writerDone.Wait()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("Ошибка чтения WebSocket: %v", err)
			}
			return
		}
	}
}

// writePump единственный писатель в соединение
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.writerDone.Done()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(msg.kind, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
