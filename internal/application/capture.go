package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photo-studio/internal/domain"
)

// CaptureOptions параметры запроса камеры и кодирования снимка
type CaptureOptions struct {
	IdealWidth  int
	IdealHeight int
	FrameRate   float64
	Quality     float64 // качество JPEG в диапазоне (0,1]
}

// DefaultCaptureOptions 1280x720 и качество 0.8
func DefaultCaptureOptions() CaptureOptions {
	return CaptureOptions{
		IdealWidth:  1280,
		IdealHeight: 720,
		FrameRate:   30,
		Quality:     0.8,
	}
}

// CaptureController управляет одной сессией камеры: превью и единственный снимок.
//
// Состояния: Idle -> Requesting -> Streaming | Error. Снимок, переключение камеры,
// остановка и ошибка устройства всегда освобождают поток. В каждый момент открыт
// не более чем один поток.
type CaptureController struct {
	devices MediaDevices
	drawer  FrameDrawer
	encoder ImageEncoder
	sink    PreviewSink
	logger  Logger
	options CaptureOptions

	mu      sync.Mutex
	state   domain.CaptureState
	facing  domain.FacingMode
	lastErr error
	session *captureSession
	attempt uint64 // растет при каждом новом запросе, Stop и Close делают ожидающий запрос устаревшим
	closed  bool
}

// captureSession одна выданная устройством сессия и ее горутина превью
type captureSession struct {
	stream domain.MediaStream
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	frames int
}

// NewCaptureController создает контроллер. sink может быть nil, тогда кадры отбрасываются.
func NewCaptureController(devices MediaDevices, drawer FrameDrawer, encoder ImageEncoder, sink PreviewSink, logger Logger, options CaptureOptions) *CaptureController {
	if sink == nil {
		sink = nopSink{}
	}
	if options.Quality <= 0 || options.Quality > 1 {
		options.Quality = DefaultCaptureOptions().Quality
	}
	return &CaptureController{
		devices: devices,
		drawer:  drawer,
		encoder: encoder,
		sink:    sink,
		logger:  logger,
		options: options,
		state:   domain.StateIdle,
		facing:  domain.FacingFront,
	}
}

// ListDevices возвращает список доступных устройств захвата
func (c *CaptureController) ListDevices() ([]domain.VideoDevice, error) {
	devices, err := c.devices.ListDevices()
	if err != nil {
		c.logger.Error("Ошибка получения списка устройств: %v", err)
		return nil, err
	}
	return devices, nil
}

// Status возвращает снимок текущего состояния
func (c *CaptureController) Status() domain.CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := domain.CaptureStatus{
		State:  c.state,
		Facing: c.facing,
	}
	if c.state == domain.StateError {
		status.Error = domain.UserMessage(c.lastErr)
	}
	if c.session != nil {
		status.ActiveTracks = c.session.stream.ActiveTracks()
		status.Frames = c.session.frameCount()
	}
	return status
}

// Err возвращает ошибку, переведшую контроллер в состояние Error
func (c *CaptureController) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.StateError {
		return nil
	}
	return c.lastErr
}

// Start запрашивает поток камеры с заданным направлением.
// При отказе контроллер переходит в Error; повторных попыток не делается.
func (c *CaptureController) Start(ctx context.Context, facing domain.FacingMode) error {
	if !facing.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFacing, facing)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.state == domain.StateRequesting || c.state == domain.StateStreaming {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: захват уже активен (%s)", domain.ErrInvalidState, state)
	}
	attempt := c.beginRequestLocked(facing)
	c.mu.Unlock()

	return c.request(ctx, attempt, facing)
}

// Retry повторяет запрос камеры после ошибки с прежним направлением
func (c *CaptureController) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.state != domain.StateError {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: повтор возможен только после ошибки (сейчас %s)", domain.ErrInvalidState, state)
	}
	facing := c.facing
	attempt := c.beginRequestLocked(facing)
	c.mu.Unlock()

	c.logger.Info("Повторный запрос камеры (%s)", facing)
	return c.request(ctx, attempt, facing)
}

// SwitchFacing полностью освобождает текущий поток и запрашивает камеру
// с противоположной стороны.
func (c *CaptureController) SwitchFacing(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	if c.state != domain.StateStreaming || s == nil {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: переключение возможно только во время трансляции (сейчас %s)", domain.ErrInvalidState, state)
	}
	c.session = nil
	next := c.facing.Toggle()
	attempt := c.beginRequestLocked(next)
	c.mu.Unlock()

	// Старый поток должен быть остановлен до запроса нового
	c.release(s)
	c.logger.Info("Переключение камеры на %s", next)

	return c.request(ctx, attempt, next)
}

// Capture рисует текущий кадр, кодирует его в JPEG и освобождает поток.
// Снимок завершает сессию: для следующего нужен новый Start.
func (c *CaptureController) Capture(ctx context.Context) (domain.ImageHandle, error) {
	c.mu.Lock()
	s := c.session
	if c.state != domain.StateStreaming || s == nil {
		state := c.state
		c.mu.Unlock()
		return domain.ImageHandle{}, fmt.Errorf("%w: снимок возможен только во время трансляции (сейчас %s)", domain.ErrInvalidState, state)
	}
	c.mu.Unlock()

	surface, err := c.drawer.DrawFrame(ctx, s.stream)
	if err != nil {
		if ctx.Err() != nil {
			// Вызывающий отменил ожидание кадра, сессия остается рабочей
			return domain.ImageHandle{}, err
		}
		if !c.fail(s, fmt.Errorf("%w: %v", domain.ErrDeviceLost, err)) {
			return domain.ImageHandle{}, domain.ErrAborted
		}
		return domain.ImageHandle{}, fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)
	}

	handle, err := c.encoder.Encode(surface, c.options.Quality)
	if err != nil {
		if !c.fail(s, fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)) {
			return domain.ImageHandle{}, domain.ErrAborted
		}
		return domain.ImageHandle{}, fmt.Errorf("%w: %v", domain.ErrCaptureFailed, err)
	}

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return domain.ImageHandle{}, domain.ErrAborted
	}
	c.session = nil
	c.state = domain.StateIdle
	c.mu.Unlock()

	c.release(s)
	c.logger.Info("Снимок получен: %dx%d, %d байт", handle.Width(), handle.Height(), handle.Size())

	return handle, nil
}

// Stop освобождает поток, если он открыт. Безопасен в любом состоянии.
func (c *CaptureController) Stop() error {
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.attempt++
	c.state = domain.StateIdle
	c.lastErr = nil
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	c.logger.Info("Остановка камеры")
	return c.release(s)
}

// Close освобождает ресурсы при демонтировании экрана; после него Start недоступен
func (c *CaptureController) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.Stop()
}

func (c *CaptureController) beginRequestLocked(facing domain.FacingMode) uint64 {
	c.attempt++
	c.state = domain.StateRequesting
	c.facing = facing
	c.lastErr = nil
	return c.attempt
}

// request выполняет запрос к устройству и переводит контроллер в Streaming или Error
func (c *CaptureController) request(ctx context.Context, attempt uint64, facing domain.FacingMode) error {
	constraints := domain.StreamConstraints{
		Facing:      facing,
		IdealWidth:  c.options.IdealWidth,
		IdealHeight: c.options.IdealHeight,
		FrameRate:   c.options.FrameRate,
	}
	c.logger.Info("Запрос камеры %s: %dx%d, %.0f fps", facing, constraints.IdealWidth, constraints.IdealHeight, constraints.FrameRate)

	stream, err := c.devices.RequestStream(ctx, constraints)

	var s *captureSession
	if err == nil {
		s = newCaptureSession(stream)
		stream.OnEnded(func(endErr error) {
			if endErr == nil {
				endErr = errors.New("поток завершен устройством")
			}
			c.fail(s, fmt.Errorf("%w: %v", domain.ErrDeviceLost, endErr))
		})
	}

	c.mu.Lock()
	if c.attempt != attempt {
		// Пока шел запрос, пришли Stop или Close
		c.mu.Unlock()
		if s != nil {
			s.cancel()
			if stopErr := stream.Stop(); stopErr != nil {
				c.logger.Error("Ошибка остановки устаревшего потока: %v", stopErr)
			}
		}
		return domain.ErrAborted
	}
	if err != nil {
		c.state = domain.StateError
		c.lastErr = err
		c.mu.Unlock()
		c.logger.Error("Ошибка открытия камеры: %v", err)
		return err
	}
	c.session = s
	c.state = domain.StateStreaming
	go c.pump(s)
	c.mu.Unlock()

	c.logger.Info("Используется камера: %s", stream.ID())
	return nil
}

// pump читает кадры и отдает их в превью до остановки сессии
func (c *CaptureController) pump(s *captureSession) {
	defer close(s.done)

	for {
		img, err := s.stream.ReadFrame()
		if s.ctx.Err() != nil {
			return
		}
		if err != nil {
			c.fail(s, fmt.Errorf("%w: %v", domain.ErrDeviceLost, err))
			return
		}

		number := s.nextFrame()
		c.sink.PublishFrame(domain.VideoFrame{
			Image:     img,
			Number:    number,
			Facing:    s.stream.Facing(),
			Timestamp: time.Now(),
		})
		if number%100 == 0 {
			c.logger.Debug("Кадров в превью: %d", number)
		}
	}
}

// fail переводит контроллер в Error, если s все еще текущая сессия.
// Не ждет завершения горутины превью, так как может вызываться из нее.
func (c *CaptureController) fail(s *captureSession, err error) bool {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return false
	}
	c.session = nil
	c.state = domain.StateError
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Error("Ошибка камеры: %v", err)
	s.cancel()
	if stopErr := s.stream.Stop(); stopErr != nil {
		c.logger.Error("Ошибка закрытия потока: %v", stopErr)
	}
	return true
}

// release останавливает все треки и дожидается завершения горутины превью
func (c *CaptureController) release(s *captureSession) error {
	s.cancel()
	err := s.stream.Stop()
	if err != nil {
		c.logger.Error("Ошибка закрытия потока: %v", err)
	}
	<-s.done
	return err
}

func newCaptureSession(stream domain.MediaStream) *captureSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &captureSession{
		stream: stream,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *captureSession) nextFrame() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return s.frames
}

func (s *captureSession) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
