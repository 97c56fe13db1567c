package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"photo-studio/internal/application"
	"photo-studio/internal/config"
	"photo-studio/internal/domain"
	"photo-studio/internal/infrastructure/render"
)

// LastCaptureSource источник последнего снимка камеры
type LastCaptureSource interface {
	LastCapture() domain.ImageHandle
}

// CompareHandler обработчики слайдера сравнения. Сервер держит одно активное сравнение.
type CompareHandler struct {
	config     *config.Config
	compositor *render.Compositor
	captures   LastCaptureSource
	policy     domain.UploadPolicy
	logger     application.Logger

	mu     sync.RWMutex
	slider *application.ComparisonSlider
}

// NewCompareHandler создает обработчик сравнения
func NewCompareHandler(cfg *config.Config, compositor *render.Compositor, captures LastCaptureSource, logger application.Logger) *CompareHandler {
	if compositor == nil {
		compositor = render.NewCompositor().WithLabels(cfg.Slider.BeforeLabel, cfg.Slider.AfterLabel)
	}
	return &CompareHandler{
		config:     cfg,
		compositor: compositor,
		captures:   captures,
		policy: domain.UploadPolicy{
			MaxBytes:     cfg.Upload.MaxBytes,
			AllowedTypes: cfg.Upload.AllowedTypes,
		},
		logger: logger,
	}
}

type imageInfo struct {
	ID        string    `json:"id"`
	MIMEType  string    `json:"mime_type"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type comparisonResponse struct {
	Before   imageInfo     `json:"before"`
	After    imageInfo     `json:"after"`
	Position float64       `json:"position"`
	Zoom     float64       `json:"zoom"`
	Dragging bool          `json:"dragging"`
	Bounds   domain.Bounds `json:"bounds"`

	// Для клиентской отрисовки через clip-path: inset(0 X% 0 0)
	ClipInsetRight float64 `json:"clip_inset_right"`
}

func newImageInfo(h domain.ImageHandle) imageInfo {
	return imageInfo{
		ID:        h.ID(),
		MIMEType:  h.MIMEType(),
		Width:     h.Width(),
		Height:    h.Height(),
		Size:      h.Size(),
		CreatedAt: h.CreatedAt(),
	}
}

func newComparisonResponse(s *application.ComparisonSlider) comparisonResponse {
	view := s.View()
	return comparisonResponse{
		Before:   newImageInfo(view.Before),
		After:    newImageInfo(view.After),
		Position: view.Position,
		Zoom:     view.Zoom,
		Dragging: view.Dragging,
		Bounds:   s.Bounds(),

		ClipInsetRight: view.ClipInsetRight(),
	}
}

// current возвращает активный слайдер или пишет 404
func (h *CompareHandler) current(w http.ResponseWriter) *application.ComparisonSlider {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.slider == nil {
		respondError(w, http.StatusNotFound, "no comparison loaded")
		return nil
	}
	return h.slider
}

// Create POST /api/compare: multipart с полями before и after.
// Поле может быть файлом или строкой data URI; отсутствующее поле заменяется последним снимком камеры.
func (h *CompareHandler) Create(w http.ResponseWriter, r *http.Request) {
	// Два файла плюс запас на служебные части формы
	limit := 2*h.policy.MaxBytes + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondDomainError(w, fmt.Errorf("%w: %v", domain.ErrImageTooLarge, err))
			return
		}
		respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	before, err := h.imageFromForm(r.MultipartForm, "before")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	after, err := h.imageFromForm(r.MultipartForm, "after")
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if before.IsZero() || after.IsZero() {
		respondError(w, http.StatusBadRequest, "both before and after images are required")
		return
	}

	position := h.config.Slider.InitialPosition
	if v := r.FormValue("position"); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "position must be a number")
			return
		}
		position = p
	}

	slider := application.NewComparisonSlider(before, after,
		application.WithInitialPosition(position),
		application.WithZoom(h.config.Slider.Zoom),
	)
	slider.SetBounds(domain.Bounds{Width: float64(h.config.Slider.RenderWidth)})

	h.mu.Lock()
	h.slider = slider
	h.mu.Unlock()

	h.logger.Info("Новое сравнение: before %s (%dx%d), after %s (%dx%d)",
		before.ID(), before.Width(), before.Height(), after.ID(), after.Width(), after.Height())
	respondJSON(w, http.StatusCreated, newComparisonResponse(slider))
}

// imageFromForm читает файл или data URI поля name; без них возвращает последний снимок
func (h *CompareHandler) imageFromForm(form *multipart.Form, name string) (domain.ImageHandle, error) {
	files := form.File[name]
	if len(files) == 0 {
		if values := form.Value[name]; len(values) > 0 && values[0] != "" {
			return h.policy.DecodeDataURI(values[0])
		}
		if h.captures == nil {
			return domain.ImageHandle{}, nil
		}
		return h.captures.LastCapture(), nil
	}

	header := files[0]
	if h.policy.MaxBytes > 0 && header.Size > h.policy.MaxBytes {
		return domain.ImageHandle{}, fmt.Errorf("%w: %s", domain.ErrImageTooLarge, sanitizeForLog(header.Filename))
	}

	file, err := header.Open()
	if err != nil {
		return domain.ImageHandle{}, fmt.Errorf("failed to open file: %s", sanitizeForLog(header.Filename))
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(file, h.policy.MaxBytes+1)); err != nil {
		return domain.ImageHandle{}, fmt.Errorf("failed to read file: %w", err)
	}

	mimeType, _, _ := strings.Cut(header.Header.Get("Content-Type"), ";")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType, _, _ = strings.Cut(http.DetectContentType(buf.Bytes()), ";")
	}
	return h.policy.DecodeUpload(mimeType, buf.Bytes())
}

// Get GET /api/compare
func (h *CompareHandler) Get(w http.ResponseWriter, r *http.Request) {
	if s := h.current(w); s != nil {
		respondJSON(w, http.StatusOK, newComparisonResponse(s))
	}
}

// Delete DELETE /api/compare
func (h *CompareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.slider = nil
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// SetBounds PUT /api/compare/bounds {"left": 100, "width": 800}
func (h *CompareHandler) SetBounds(w http.ResponseWriter, r *http.Request) {
	s := h.current(w)
	if s == nil {
		return
	}
	var b domain.Bounds
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	s.SetBounds(b)
	respondJSON(w, http.StatusOK, newComparisonResponse(s))
}

type pointerRequest struct {
	Type    string              `json:"type"`
	ClientX *float64            `json:"clientX"`
	Touches []domain.TouchPoint `json:"touches"`
}

// event выбирает источник координаты: touches для событий касания, иначе clientX
func (p pointerRequest) event() domain.PointerEvent {
	if len(p.Touches) > 0 {
		return domain.TouchEvent{Touches: p.Touches}
	}
	if p.ClientX != nil {
		return domain.MouseEvent{ClientX: *p.ClientX}
	}
	return domain.TouchEvent{}
}

// Pointer POST /api/compare/pointer {"type": "mousemove", "clientX": 500}
func (h *CompareHandler) Pointer(w http.ResponseWriter, r *http.Request) {
	s := h.current(w)
	if s == nil {
		return
	}
	var req pointerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	kind, ok := domain.ParsePointerKind(req.Type)
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown pointer event %q", sanitizeForLog(req.Type)))
		return
	}

	s.HandlePointer(kind, req.event())
	respondJSON(w, http.StatusOK, newComparisonResponse(s))
}

// Nudge POST /api/compare/nudge {"delta": -5}
func (h *CompareHandler) Nudge(w http.ResponseWriter, r *http.Request) {
	s := h.current(w)
	if s == nil {
		return
	}
	var req struct {
		Delta float64 `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	s.Nudge(req.Delta)
	respondJSON(w, http.StatusOK, newComparisonResponse(s))
}

// Reset POST /api/compare/reset
func (h *CompareHandler) Reset(w http.ResponseWriter, r *http.Request) {
	s := h.current(w)
	if s == nil {
		return
	}
	s.Reset()
	respondJSON(w, http.StatusOK, newComparisonResponse(s))
}

// Zoom POST /api/compare/zoom?action=in|out|reset
func (h *CompareHandler) Zoom(w http.ResponseWriter, r *http.Request) {
	s := h.current(w)
	if s == nil {
		return
	}
	switch r.URL.Query().Get("action") {
	case "in":
		s.ZoomIn()
	case "out":
		s.ZoomOut()
	case "reset":
		s.ResetZoom()
	default:
		respondError(w, http.StatusBadRequest, "action must be one of in, out, reset")
		return
	}
	respondJSON(w, http.StatusOK, newComparisonResponse(s))
}

// Render GET /api/compare/render?format=png&quality=90&width=800&height=450&download=1
func (h *CompareHandler) Render(w http.ResponseWriter, r *http.Request) {
	s := h.current(w)
	if s == nil {
		return
	}
	q := r.URL.Query()

	format, err := render.ParseFormat(firstNonEmpty(q.Get("format"), h.config.Export.Format))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	quality, err := intParam(q.Get("quality"), h.config.Export.Quality)
	if err != nil {
		respondError(w, http.StatusBadRequest, "quality must be an integer")
		return
	}
	width, err := intParam(q.Get("width"), h.config.Slider.RenderWidth)
	if err != nil || width <= 0 || width > 8192 {
		respondError(w, http.StatusBadRequest, "width must be between 1 and 8192")
		return
	}
	height, err := intParam(q.Get("height"), h.config.Slider.RenderHeight)
	if err != nil || height <= 0 || height > 8192 {
		respondError(w, http.StatusBadRequest, "height must be between 1 and 8192")
		return
	}

	img, err := h.compositor.Render(s.View(), width, height)
	if err != nil {
		h.logger.Error("Ошибка отрисовки сравнения: %v", err)
		respondDomainError(w, err)
		return
	}
	handle, err := render.Export(img, render.ExportOptions{Format: format, Quality: quality})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	filename := ""
	if q.Get("download") != "" {
		filename = render.FileName("comparison", format, time.Now())
	}
	writeImage(w, handle, filename)
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
