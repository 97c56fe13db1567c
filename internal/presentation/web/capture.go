package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"photo-studio/internal/application"
	"photo-studio/internal/domain"
)

// CaptureService операции контроллера камеры, нужные HTTP-слою
type CaptureService interface {
	ListDevices() ([]domain.VideoDevice, error)
	Status() domain.CaptureStatus
	Start(ctx context.Context, facing domain.FacingMode) error
	Retry(ctx context.Context) error
	SwitchFacing(ctx context.Context) error
	Capture(ctx context.Context) (domain.ImageHandle, error)
	Stop() error
}

// StatusPublisher рассылает состояние камеры подписчикам превью
type StatusPublisher interface {
	PublishStatus(status domain.CaptureStatus) error
}

// CaptureHandler обработчики управления камерой
type CaptureHandler struct {
	service   CaptureService
	publisher StatusPublisher
	logger    application.Logger

	mu   sync.RWMutex
	last domain.ImageHandle
}

// NewCaptureHandler создает обработчик; publisher может быть nil
func NewCaptureHandler(service CaptureService, publisher StatusPublisher, logger application.Logger) *CaptureHandler {
	return &CaptureHandler{
		service:   service,
		publisher: publisher,
		logger:    logger,
	}
}

type startRequest struct {
	Facing string `json:"facing"`
}

// Devices GET /api/devices
func (h *CaptureHandler) Devices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.service.ListDevices()
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, devices)
}

// Status GET /api/capture/status
func (h *CaptureHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Status())
}

// Start POST /api/capture/start. Направление берется из ?facing= или тела {"facing": "back"}.
func (h *CaptureHandler) Start(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("facing")
	if raw == "" && r.ContentLength != 0 {
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		raw = req.Facing
	}

	facing := domain.FacingFront
	if raw != "" {
		parsed, err := domain.ParseFacingMode(raw)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		facing = parsed
	}

	h.act(w, func() error { return h.service.Start(r.Context(), facing) })
}

// Switch POST /api/capture/switch
func (h *CaptureHandler) Switch(w http.ResponseWriter, r *http.Request) {
	h.act(w, func() error { return h.service.SwitchFacing(r.Context()) })
}

// Retry POST /api/capture/retry
func (h *CaptureHandler) Retry(w http.ResponseWriter, r *http.Request) {
	h.act(w, func() error { return h.service.Retry(r.Context()) })
}

// Stop POST /api/capture/stop
func (h *CaptureHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.act(w, h.service.Stop)
}

// act выполняет переход состояния, публикует новый статус и возвращает его клиенту
func (h *CaptureHandler) act(w http.ResponseWriter, fn func() error) {
	err := fn()
	status := h.service.Status()
	h.publish(status)

	if err != nil {
		h.logger.Error("Ошибка управления камерой: %v", err)
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (h *CaptureHandler) publish(status domain.CaptureStatus) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishStatus(status); err != nil {
		h.logger.Error("Ошибка публикации статуса: %v", err)
	}
}

// Snapshot POST /api/capture/snapshot делает снимок, сохраняет его как последний и отдает JPEG
func (h *CaptureHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	handle, err := h.service.Capture(r.Context())
	h.publish(h.service.Status())
	if err != nil {
		h.logger.Error("Ошибка снимка: %v", err)
		respondDomainError(w, err)
		return
	}

	h.mu.Lock()
	h.last = handle
	h.mu.Unlock()

	h.logger.Info("Снимок %s: %dx%d, %d байт", handle.ID(), handle.Width(), handle.Height(), handle.Size())
	writeImage(w, handle, "")
}

// Last GET /api/capture/last. С ?as=datauri отдает JSON со строкой data URI.
func (h *CaptureHandler) Last(w http.ResponseWriter, r *http.Request) {
	handle := h.LastCapture()
	if handle.IsZero() {
		respondError(w, http.StatusNotFound, "no photo has been captured yet")
		return
	}
	if r.URL.Query().Get("as") == "datauri" {
		respondJSON(w, http.StatusOK, map[string]string{
			"id":       handle.ID(),
			"data_uri": handle.DataURI(),
		})
		return
	}
	writeImage(w, handle, "")
}

// LastCapture последний сделанный снимок или нулевой handle
func (h *CaptureHandler) LastCapture() domain.ImageHandle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

func writeImage(w http.ResponseWriter, handle domain.ImageHandle, filename string) {
	w.Header().Set("Content-Type", handle.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(handle.Size()))
	w.Header().Set("X-Image-ID", handle.ID())
	w.Header().Set("X-Image-Width", strconv.Itoa(handle.Width()))
	w.Header().Set("X-Image-Height", strconv.Itoa(handle.Height()))
	if filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, handle.Reader())
}
