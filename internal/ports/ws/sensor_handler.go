package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"obstacle-detection-system/internal/application"
	"obstacle-detection-system/internal/domain"
	"obstacle-detection-system/pkg/fusion"
	"obstacle-detection-system/pkg/geodesy"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // блоки підключаються напряму, без браузера
	},
}

// Типи повідомлень протоколу
const (
	MessageHeartbeat       = "heartbeat"
	MessageHeartbeatAck    = "heartbeat_ack"
	MessageDetectionSet    = "detection_set"
	MessageDetectionSetAck = "detection_set_ack"
	MessageFuse            = "fuse"
	MessageFusionResult    = "fusion_result"
	MessageError           = "error"
)

// Pose положення транспортного засобу в повідомленні fuse
type Pose struct {
	Current  domain.Position `json:"current"`
	Previous domain.Position `json:"previous"`
}

// InboundMessage повідомлення від сенсорного блока
type InboundMessage struct {
	Type       string          `json:"type"`
	Set        json.RawMessage `json:"set,omitempty"`
	Pose       *Pose           `json:"pose,omitempty"`
	ObjectKeys []string        `json:"object_keys,omitempty"`
}

// OutboundMessage повідомлення сенсорному блоку
type OutboundMessage struct {
	Type      string                  `json:"type"`
	Time      int64                   `json:"time,omitempty"`
	ObjectKey string                  `json:"object_key,omitempty"`
	RunID     *uuid.UUID              `json:"run_id,omitempty"`
	Results   []fusion.FusedDetection `json:"results,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// connection з'єднання блока; gorilla/websocket допускає лише одного писача
type connection struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *connection) write(message interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(message)
}

// SensorHandler обробляє WebSocket з'єднання сенсорних блоків
type SensorHandler struct {
	unitService   *application.SensorUnitService
	setService    *application.DetectionSetService
	fusionService *application.FusionService
	logger        *zap.Logger

	connections   map[uuid.UUID]*connection
	connectionsMu sync.Mutex
}

// NewSensorHandler створює новий SensorHandler і підписує його на результати злиття
func NewSensorHandler(
	unitService *application.SensorUnitService,
	setService *application.DetectionSetService,
	fusionService *application.FusionService,
	logger *zap.Logger,
) *SensorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &SensorHandler{
		unitService:   unitService,
		setService:    setService,
		fusionService: fusionService,
		logger:        logger,
		connections:   make(map[uuid.UUID]*connection),
	}
	fusionService.Subscribe(h.broadcastResult)
	return h
}

// HandleConnection оброблює WebSocket з'єднання
func (h *SensorHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	// Аутентифікація та авторизація
	unitID, err := authenticateUnit(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Фіксація з'єднання блока
	ctx := context.WithoutCancel(r.Context())
	unit, err := h.unitService.Touch(ctx, unitID)
	if err != nil {
		if errors.Is(err, domain.ErrSensorUnitNotFound) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h.logger.Error("failed to update sensor unit", zap.String("unit_id", unitID.String()), zap.Error(err))
		http.Error(w, "Error updating sensor unit", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("error upgrading connection", zap.Error(err))
		return
	}

	// Реєстрація з'єднання; повторне підключення блока закриває попереднє
	c := &connection{conn: conn}
	h.connectionsMu.Lock()
	if prev, ok := h.connections[unitID]; ok {
		prev.conn.Close()
	}
	h.connections[unitID] = c
	h.connectionsMu.Unlock()

	h.logger.Info("sensor unit connected",
		zap.String("unit_id", unitID.String()),
		zap.String("kind", string(unit.Kind)),
	)

	go h.handleMessages(ctx, unit, c)
}

// handleMessages обробляє повідомлення від блока
func (h *SensorHandler) handleMessages(ctx context.Context, unit *domain.SensorUnit, c *connection) {
	logger := h.logger.With(zap.String("unit_id", unit.ID.String()))
	defer func() {
		c.conn.Close()

		// після повторного підключення запис належить новому з'єднанню
		h.connectionsMu.Lock()
		current := h.connections[unit.ID] == c
		if current {
			delete(h.connections, unit.ID)
		}
		h.connectionsMu.Unlock()

		if current {
			h.disconnect(ctx, logger, unit.ID)
		}
	}()

	// Налаштування ping/pong для підтримки з'єднання
	c.conn.SetPingHandler(func(string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return c.conn.WriteControl(websocket.PongMessage, []byte{}, time.Now().Add(time.Second))
	})

	// Цикл обробки повідомлень
	for {
		messageType, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket error", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			// бінарний кадр містить сирий файл набору виявлень
			h.handleDetectionSet(ctx, logger, unit, c, p)
		case websocket.TextMessage:
			h.handleTextMessage(ctx, logger, unit, c, p)
		}
	}
}

// handleTextMessage обробляє текстові повідомлення у форматі JSON
func (h *SensorHandler) handleTextMessage(ctx context.Context, logger *zap.Logger, unit *domain.SensorUnit, c *connection, data []byte) {
	var message InboundMessage
	if err := json.Unmarshal(data, &message); err != nil {
		h.reply(logger, c, OutboundMessage{Type: MessageError, Error: "invalid JSON message"})
		return
	}

	switch message.Type {
	case MessageHeartbeat:
		h.handleHeartbeat(ctx, logger, unit, c)
	case MessageDetectionSet:
		h.handleDetectionSet(ctx, logger, unit, c, message.Set)
	case MessageFuse:
		h.handleFuse(ctx, logger, c, message)
	default:
		logger.Debug("unknown message type", zap.String("type", message.Type))
		h.reply(logger, c, OutboundMessage{Type: MessageError, Error: "unknown message type " + message.Type})
	}
}

func (h *SensorHandler) handleHeartbeat(ctx context.Context, logger *zap.Logger, unit *domain.SensorUnit, c *connection) {
	if _, err := h.unitService.Touch(ctx, unit.ID); err != nil {
		logger.Error("error updating sensor unit", zap.Error(err))
	}

	h.reply(logger, c, OutboundMessage{
		Type: MessageHeartbeatAck,
		Time: time.Now().Unix(),
	})
}

func (h *SensorHandler) handleDetectionSet(ctx context.Context, logger *zap.Logger, unit *domain.SensorUnit, c *connection, set []byte) {
	if len(set) == 0 {
		h.reply(logger, c, OutboundMessage{Type: MessageError, Error: "empty detection set"})
		return
	}

	key, err := h.setService.Upload(ctx, unit.Kind, bytes.NewReader(set))
	if err != nil {
		logger.Info("detection set rejected", zap.Error(err))
		h.reply(logger, c, OutboundMessage{Type: MessageError, Error: err.Error()})
		return
	}

	h.reply(logger, c, OutboundMessage{Type: MessageDetectionSetAck, ObjectKey: key})
}

// handleFuse запускає злиття; результат розсилається всім блокам через підписку
func (h *SensorHandler) handleFuse(ctx context.Context, logger *zap.Logger, c *connection, message InboundMessage) {
	if message.Pose == nil {
		h.reply(logger, c, OutboundMessage{Type: MessageError, Error: "pose is required"})
		return
	}

	pose := fusion.VehiclePose{
		Current:  geodesy.Point(message.Pose.Current.Latitude, message.Pose.Current.Longitude),
		Previous: geodesy.Point(message.Pose.Previous.Latitude, message.Pose.Previous.Longitude),
	}
	if _, err := h.fusionService.RunFromStorage(ctx, pose, message.ObjectKeys, nil); err != nil {
		h.reply(logger, c, OutboundMessage{Type: MessageError, Error: err.Error()})
	}
}

// broadcastResult розсилає результат завершеного запуску всім підключеним блокам
func (h *SensorHandler) broadcastResult(run *domain.FusionRun, results []fusion.FusedDetection) {
	id := run.ID
	message := OutboundMessage{
		Type:    MessageFusionResult,
		RunID:   &id,
		Results: results,
	}

	h.connectionsMu.Lock()
	targets := make([]*connection, 0, len(h.connections))
	for _, c := range h.connections {
		targets = append(targets, c)
	}
	h.connectionsMu.Unlock()

	for _, c := range targets {
		h.reply(h.logger, c, message)
	}
}

// disconnect переводить активний блок у неактивний стан
func (h *SensorHandler) disconnect(ctx context.Context, logger *zap.Logger, unitID uuid.UUID) {
	unit, err := h.unitService.GetUnitByID(ctx, unitID)
	if err != nil {
		logger.Error("error loading sensor unit", zap.Error(err))
		return
	}
	if unit.Status != domain.SensorUnitStatusActive {
		return
	}
	if err := h.unitService.UpdateUnitStatus(ctx, unitID, domain.SensorUnitStatusInactive); err != nil {
		logger.Error("error updating sensor unit status", zap.Error(err))
	}
	logger.Info("sensor unit disconnected")
}

// Connected повертає кількість підключених блоків
func (h *SensorHandler) Connected() int {
	h.connectionsMu.Lock()
	defer h.connectionsMu.Unlock()
	return len(h.connections)
}

func (h *SensorHandler) reply(logger *zap.Logger, c *connection, message OutboundMessage) {
	if err := c.write(message); err != nil {
		logger.Warn("error sending message", zap.String("type", message.Type), zap.Error(err))
	}
}

// authenticateUnit аутентифікує блок за токеном у запиті; токеном слугує ID блока
func authenticateUnit(r *http.Request) (uuid.UUID, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return uuid.Nil, errors.New("missing authentication token")
	}
	return uuid.Parse(token)
}
