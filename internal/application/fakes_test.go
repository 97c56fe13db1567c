package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"photo-studio/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

// fakeDevices выдает потоки по сценарию и считает живые потоки
type fakeDevices struct {
	mu       sync.Mutex
	results  []error // очередь результатов запросов, nil означает выдачу потока
	gate     chan struct{}
	requests []domain.StreamConstraints
	streams  []*fakeStream
	events   []string
	live     int
	maxLive  int
}

func (d *fakeDevices) ListDevices() ([]domain.VideoDevice, error) {
	return []domain.VideoDevice{
		{ID: "cam-front", Label: "Front Camera", Kind: "videoinput", Facing: domain.FacingFront},
		{ID: "cam-back", Label: "Back Camera", Kind: "videoinput", Facing: domain.FacingBack},
	}, nil
}

func (d *fakeDevices) RequestStream(ctx context.Context, constraints domain.StreamConstraints) (domain.MediaStream, error) {
	d.mu.Lock()
	d.requests = append(d.requests, constraints)
	d.events = append(d.events, fmt.Sprintf("request:%s:live=%d", constraints.Facing, d.live))
	var result error
	if len(d.results) > 0 {
		result = d.results[0]
		d.results = d.results[1:]
	}
	gate := d.gate
	d.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if result != nil {
		return nil, result
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeStream{
		id:      fmt.Sprintf("s%d", len(d.streams)+1),
		facing:  constraints.Facing,
		devices: d,
		tracks:  1,
		frames:  make(chan image.Image),
		lost:    make(chan error, 1),
		stopCh:  make(chan struct{}),
	}
	d.streams = append(d.streams, s)
	d.live++
	d.maxLive = max(d.maxLive, d.live)
	return s, nil
}

func (d *fakeDevices) stream(i int) *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.streams[i]
}

func (d *fakeDevices) snapshot() (live, maxLive int, events []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live, d.maxLive, append([]string(nil), d.events...)
}

type fakeStream struct {
	id      string
	facing  domain.FacingMode
	devices *fakeDevices
	frames  chan image.Image
	lost    chan error
	stopCh  chan struct{}

	mu        sync.Mutex
	tracks    int
	onEnded   func(error)
	stopCalls int
}

func (s *fakeStream) ID() string                { return s.id }
func (s *fakeStream) Facing() domain.FacingMode { return s.facing }

func (s *fakeStream) ActiveTracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

func (s *fakeStream) ReadFrame() (image.Image, error) {
	select {
	case img := <-s.frames:
		return img, nil
	case err := <-s.lost:
		return nil, err
	case <-s.stopCh:
		return nil, io.EOF
	}
}

func (s *fakeStream) OnEnded(handler func(error)) {
	s.mu.Lock()
	s.onEnded = handler
	s.mu.Unlock()
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	s.stopCalls++
	if s.tracks == 0 {
		s.mu.Unlock()
		return nil
	}
	s.tracks = 0
	close(s.stopCh)
	s.mu.Unlock()

	s.devices.mu.Lock()
	s.devices.live--
	s.devices.events = append(s.devices.events, "stop:"+s.id)
	s.devices.mu.Unlock()
	return nil
}

// disconnect имитирует отключение устройства во время чтения кадров
func (s *fakeStream) disconnect(err error) {
	s.lost <- err
}

// end имитирует уведомление драйвера о завершении трека
func (s *fakeStream) end(err error) {
	s.mu.Lock()
	handler := s.onEnded
	s.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

type fakeDrawer struct {
	err   error
	calls int

	// Если release задан, DrawFrame сообщает о входе в entered и ждет
	// результат из release или отмену ctx
	entered chan struct{}
	release chan error
}

// blocking настраивает рисование кадра на ожидание release
func (d *fakeDrawer) blocking() {
	d.entered = make(chan struct{}, 1)
	d.release = make(chan error, 1)
}

func (d *fakeDrawer) DrawFrame(ctx context.Context, stream domain.MediaStream) (*image.RGBA, error) {
	d.calls++
	if d.release != nil {
		d.entered <- struct{}{}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-d.release:
			if err != nil {
				return nil, err
			}
			return image.NewRGBA(image.Rect(0, 0, 1280, 720)), nil
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	if stream.ActiveTracks() == 0 {
		return nil, errors.New("stream is stopped")
	}
	return image.NewRGBA(image.Rect(0, 0, 1280, 720)), nil
}

type fakeEncoder struct {
	err       error
	calls     int
	qualities []float64
	handle    domain.ImageHandle
}

func (e *fakeEncoder) Encode(img image.Image, quality float64) (domain.ImageHandle, error) {
	e.calls++
	e.qualities = append(e.qualities, quality)
	if e.err != nil {
		return domain.ImageHandle{}, e.err
	}
	return e.handle, nil
}

type recordingSink struct {
	mu     sync.Mutex
	frames []domain.VideoFrame
}

func (s *recordingSink) PublishFrame(frame domain.VideoFrame) {
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}
