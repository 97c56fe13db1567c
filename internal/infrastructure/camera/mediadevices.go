package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera" // Регистрируем драйвер камеры
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"

	"photo-studio/internal/application"
	"photo-studio/internal/domain"
)

// DeviceMapping явная привязка направлений камеры к ID устройств
type DeviceMapping struct {
	Front string
	Back  string
}

// MediaDevicesManager реализация application.MediaDevices на библиотеке mediadevices
type MediaDevicesManager struct {
	logger  application.Logger
	mapping DeviceMapping

	enumerate    func() []mediadevices.MediaDeviceInfo
	getUserMedia func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)
}

// NewMediaDevicesManager создает новый менеджер медиаустройств
func NewMediaDevicesManager(logger application.Logger, mapping DeviceMapping) *MediaDevicesManager {
	return &MediaDevicesManager{
		logger:       logger,
		mapping:      mapping,
		enumerate:    mediadevices.EnumerateDevices,
		getUserMedia: mediadevices.GetUserMedia,
	}
}

// ListDevices возвращает список доступных устройств захвата
func (m *MediaDevicesManager) ListDevices() ([]domain.VideoDevice, error) {
	devices := m.enumerate()
	result := make([]domain.VideoDevice, 0, len(devices))

	for _, device := range devices {
		result = append(result, domain.VideoDevice{
			ID:     device.DeviceID,
			Label:  device.Label,
			Kind:   kindName(device.Kind),
			Facing: guessFacing(device.Label),
		})
	}

	return result, nil
}

// RequestStream открывает камеру нужного направления.
// Разрешение 1280x720 запрашивается как желаемое; если драйвер не смог его
// выдать, делается вторая попытка без ограничений формата.
func (m *MediaDevicesManager) RequestStream(ctx context.Context, constraints domain.StreamConstraints) (domain.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices, _ := m.ListDevices()
	deviceID, err := resolveDevice(devices, constraints.Facing, m.mapping)
	if err != nil {
		return nil, err
	}

	mediaStream, err := m.getUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(c *mediadevices.MediaTrackConstraints) {
			// Задаем предпочтительные параметры, но не строгие
			c.DeviceID = prop.String(deviceID)
			if constraints.IdealWidth > 0 {
				c.Width = prop.Int(constraints.IdealWidth)
			}
			if constraints.IdealHeight > 0 {
				c.Height = prop.Int(constraints.IdealHeight)
			}
			if constraints.FrameRate > 0 {
				c.FrameRate = prop.Float(constraints.FrameRate)
			}
		},
	})
	if err != nil {
		m.logger.Error("Ошибка с исходными ограничениями: %v", err)
		if isPermissionError(err) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
		}

		// Пробуем с еще более простыми ограничениями
		m.logger.Info("Пробуем с минимальными ограничениями...")
		mediaStream, err = m.getUserMedia(mediadevices.MediaStreamConstraints{
			Video: func(c *mediadevices.MediaTrackConstraints) {
				c.DeviceID = prop.String(deviceID)
			},
		})
		if err != nil {
			m.logger.Error("Не удалось получить доступ к медиа-устройству: %v", err)
			if isPermissionError(err) {
				return nil, fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrNoDevice, err)
		}
	}

	videoTracks := mediaStream.GetVideoTracks()
	if len(videoTracks) == 0 {
		_ = closeTracks(mediaStream.GetTracks())
		m.logger.Error("Видеотрек не обнаружен")
		return nil, fmt.Errorf("%w: видеотрек не обнаружен", domain.ErrNoDevice)
	}

	track, ok := videoTracks[0].(*mediadevices.VideoTrack)
	if !ok {
		_ = closeTracks(mediaStream.GetTracks())
		return nil, fmt.Errorf("%w: неожиданный тип трека %T", domain.ErrNoDevice, videoTracks[0])
	}

	return newMediaDevicesStream(mediaStream, track, constraints.Facing), nil
}

// resolveDevice выбирает устройство для направления: сначала явная привязка,
// затем подпись устройства, затем порядок перечисления (первая камера фронтальная).
func resolveDevice(devices []domain.VideoDevice, facing domain.FacingMode, mapping DeviceMapping) (string, error) {
	switch {
	case facing == domain.FacingFront && mapping.Front != "":
		return mapping.Front, nil
	case facing == domain.FacingBack && mapping.Back != "":
		return mapping.Back, nil
	}

	var inputs []domain.VideoDevice
	for _, device := range devices {
		if device.Kind == kindName(mediadevices.VideoInput) {
			inputs = append(inputs, device)
		}
	}
	if len(inputs) == 0 {
		return "", fmt.Errorf("%w: нет видеоустройств", domain.ErrNoDevice)
	}

	for _, device := range inputs {
		if device.Facing == facing {
			return device.ID, nil
		}
	}

	var unlabeled []domain.VideoDevice
	for _, device := range inputs {
		if device.Facing == "" {
			unlabeled = append(unlabeled, device)
		}
	}
	index := 0
	if facing == domain.FacingBack {
		index = 1
	}
	if index < len(unlabeled) {
		return unlabeled[index].ID, nil
	}
	return "", fmt.Errorf("%w: камера %s не найдена", domain.ErrNoDevice, facing)
}

var (
	frontHints = []string{"front", "user", "facetime", "integrated", "internal"}
	backHints  = []string{"back", "rear", "environment", "world"}
)

func guessFacing(label string) domain.FacingMode {
	label = strings.ToLower(label)
	for _, hint := range backHints {
		if strings.Contains(label, hint) {
			return domain.FacingBack
		}
	}
	for _, hint := range frontHints {
		if strings.Contains(label, hint) {
			return domain.FacingFront
		}
	}
	return ""
}

func kindName(kind mediadevices.MediaDeviceType) string {
	switch kind {
	case mediadevices.VideoInput:
		return "videoinput"
	case mediadevices.AudioInput:
		return "audioinput"
	}
	return "unknown"
}

func isPermissionError(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

func closeTracks(tracks []mediadevices.Track) error {
	var errs []error
	for _, track := range tracks {
		if err := track.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MediaDevicesStream обертка для MediaStream с одним видеотреком
type MediaDevicesStream struct {
	stream mediadevices.MediaStream
	track  *mediadevices.VideoTrack
	facing domain.FacingMode

	readMu sync.Mutex
	reader video.Reader

	stopOnce sync.Once
	stopped  atomic.Bool
	stopErr  error
}

func newMediaDevicesStream(stream mediadevices.MediaStream, track *mediadevices.VideoTrack, facing domain.FacingMode) *MediaDevicesStream {
	return &MediaDevicesStream{
		stream: stream,
		track:  track,
		facing: facing,
		// Копируем кадры, чтобы они переживали release драйвера
		reader: track.NewReader(true),
	}
}

// ID возвращает идентификатор трека
func (s *MediaDevicesStream) ID() string {
	return s.track.ID()
}

func (s *MediaDevicesStream) Facing() domain.FacingMode {
	return s.facing
}

// ActiveTracks число не остановленных треков
func (s *MediaDevicesStream) ActiveTracks() int {
	if s.stopped.Load() {
		return 0
	}
	return len(s.stream.GetTracks())
}

// ReadFrame читает следующий кадр
func (s *MediaDevicesStream) ReadFrame() (image.Image, error) {
	if s.stopped.Load() {
		return nil, errStreamStopped
	}

	s.readMu.Lock()
	defer s.readMu.Unlock()

	img, release, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	if release != nil {
		release()
	}
	return img, nil
}

// OnEnded передает обработчик ошибок конвейера трека
func (s *MediaDevicesStream) OnEnded(handler func(error)) {
	s.track.OnEnded(handler)
}

// Stop закрывает все треки потока; повторные вызовы возвращают первый результат
func (s *MediaDevicesStream) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		s.stopErr = closeTracks(s.stream.GetTracks())
	})
	return s.stopErr
}

var errStreamStopped = errors.New("поток остановлен")
