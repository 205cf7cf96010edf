// Package websocket - real-time рассылка позиций и алертов подключенным
// клиентам. Frontend получает обновления без polling.
package websocket

import (
	"bytes"
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"github.com/jd0713/schadenfreude/internal/models"
	"github.com/jd0713/schadenfreude/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ============ sync.Pool для JSON буферов ============
// Убирает аллокации при каждом Broadcast

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями
//
// Назначение:
// Центральный менеджер для broadcast сообщений всем подключенным клиентам.
//
// Функции:
// - Регистрация и отмена регистрации клиентов
// - Broadcast сообщений всем активным клиентам
// - Отключение клиентов, не успевающих читать
// - Потокобезопасная работа с клиентами (sync.RWMutex)
//
// Типы сообщений:
// - positionUpdate: пакет обогащённых позиций после синхронизации
// - alert: позиция вошла в опасную зону
// - statsUpdate: агрегированная статистика мониторинга
//
// Жизненный цикл: NewHub -> Start -> Stop. Hub конструируется со
// своими зависимостями, глобального состояния нет.
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Счётчик сообщений, отброшенных при переполнении broadcast канала
	droppedMessages int64

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex

	log    *utils.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHub создает новый Hub
func NewHub(logger *utils.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        logger.WithComponent("websocket"),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start запускает главный цикл Hub в фоне
func (h *Hub) Start() {
	go h.Run()
}

// Stop останавливает Hub и закрывает все клиентские соединения
func (h *Hub) Stop() {
	close(h.stopCh)
	<-h.doneCh
}

// Run запускает главный цикл Hub
//
// Обрабатывает регистрацию, отмену регистрации и broadcast.
// Отправка клиентам идёт без блокировки clients: список копируется
// под коротким RLock, медленные клиенты удаляются под Write Lock.
func (h *Hub) Run() {
	defer close(h.doneCh)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client connected", utils.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client disconnected", utils.Int("total_clients", total))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Не успевающие читать клиенты помечаются на удаление
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("removed slow clients",
					utils.Int("removed", len(toRemove)),
					utils.Int("total_clients", total),
				)
			}

		case <-h.stopCh:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast сериализует сообщение и отправляет всем клиентам.
// Не блокируется: при переполнении канала сообщение отбрасывается.
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("failed to marshal broadcast message", utils.Err(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Encode добавляет trailing newline
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копия нужна: буфер вернётся в пул
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	h.BroadcastRaw(msgCopy)
}

// BroadcastRaw отправляет уже сериализованное сообщение
func (h *Hub) BroadcastRaw(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		atomic.AddInt64(&h.droppedMessages, 1)
	}
}

// ============ Типизированные broadcast методы ============
// Hub реализует service.Broadcaster

// BroadcastPositions отправляет пакет обогащённых позиций
func (h *Hub) BroadcastPositions(positions []models.Position) {
	if len(positions) == 0 {
		return
	}
	h.Broadcast(NewPositionUpdateMessage(positions))
}

// BroadcastAlert отправляет алерт с контекстом позиции
func (h *Hub) BroadcastAlert(alert models.LiquidationAlert, position models.Position) {
	h.Broadcast(NewAlertMessage(alert, position))
}

// BroadcastStats отправляет статистику мониторинга
func (h *Hub) BroadcastStats(stats models.MonitorStats) {
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает число отброшенных сообщений
func (h *Hub) DroppedMessages() int64 {
	return atomic.LoadInt64(&h.droppedMessages)
}
