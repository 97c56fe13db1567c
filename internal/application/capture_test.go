package application

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"photo-studio/internal/domain"
)

func testHandle(t *testing.T) domain.ImageHandle {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	h, err := domain.NewImageHandle("image/png", buf.Bytes())
	require.NoError(t, err)
	return h
}

type controllerFixture struct {
	devices *fakeDevices
	drawer  *fakeDrawer
	encoder *fakeEncoder
	sink    *recordingSink
	ctrl    *CaptureController
}

func newFixture(t *testing.T, results ...error) *controllerFixture {
	t.Helper()
	f := &controllerFixture{
		devices: &fakeDevices{results: results},
		drawer:  &fakeDrawer{},
		encoder: &fakeEncoder{handle: testHandle(t)},
		sink:    &recordingSink{},
	}
	f.ctrl = NewCaptureController(f.devices, f.drawer, f.encoder, f.sink, nopLogger{}, DefaultCaptureOptions())
	t.Cleanup(func() { _ = f.ctrl.Close() })
	return f
}

func TestCaptureController_StartThenCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, domain.FacingFront))
	status := f.ctrl.Status()
	assert.Equal(t, domain.StateStreaming, status.State)
	assert.Equal(t, domain.FacingFront, status.Facing)
	assert.Equal(t, 1, status.ActiveTracks)

	req := f.devices.requests[0]
	assert.Equal(t, 1280, req.IdealWidth)
	assert.Equal(t, 720, req.IdealHeight)

	stream := f.devices.stream(0)
	stream.frames <- image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.Eventually(t, func() bool { return f.sink.count() == 1 }, time.Second, 5*time.Millisecond)

	handle, err := f.ctrl.Capture(ctx)
	require.NoError(t, err)
	assert.False(t, handle.IsZero())
	assert.Equal(t, []float64{0.8}, f.encoder.qualities)

	status = f.ctrl.Status()
	assert.Equal(t, domain.StateIdle, status.State)
	assert.Equal(t, 0, status.ActiveTracks)
	assert.Equal(t, 0, stream.ActiveTracks())

	live, _, _ := f.devices.snapshot()
	assert.Equal(t, 0, live)
}

func TestCaptureController_CaptureRejectedOutsideStreaming(t *testing.T) {
	f := newFixture(t, domain.ErrPermissionDenied)
	ctx := context.Background()

	handle, err := f.ctrl.Capture(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.True(t, handle.IsZero())

	require.ErrorIs(t, f.ctrl.Start(ctx, domain.FacingFront), domain.ErrPermissionDenied)
	require.Equal(t, domain.StateError, f.ctrl.Status().State)

	handle, err = f.ctrl.Capture(ctx)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.True(t, handle.IsZero())
	assert.Zero(t, f.drawer.calls)
	assert.Zero(t, f.encoder.calls)
}

func TestCaptureController_DeniedThenRetry(t *testing.T) {
	f := newFixture(t, domain.ErrPermissionDenied, nil)
	ctx := context.Background()

	err := f.ctrl.Start(ctx, domain.FacingFront)
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	status := f.ctrl.Status()
	assert.Equal(t, domain.StateError, status.State)
	assert.Equal(t, "Camera access denied. Please enable camera permissions and try again.", status.Error)
	assert.ErrorIs(t, f.ctrl.Err(), domain.ErrPermissionDenied)

	// Автоматических повторов нет
	assert.Len(t, f.devices.requests, 1)

	require.NoError(t, f.ctrl.Retry(ctx))
	status = f.ctrl.Status()
	assert.Equal(t, domain.StateStreaming, status.State)
	assert.Empty(t, status.Error)
	require.Len(t, f.devices.requests, 2)
	assert.Equal(t, domain.FacingFront, f.devices.requests[1].Facing)
}

func TestCaptureController_RetryOnlyFromError(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctrl.Retry(context.Background()), domain.ErrInvalidState)
	assert.Empty(t, f.devices.requests)
}

func TestCaptureController_SwitchFacingReleasesBeforeRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, domain.FacingFront))
	require.NoError(t, f.ctrl.SwitchFacing(ctx))

	live, maxLive, events := f.devices.snapshot()
	assert.Equal(t, []string{
		"request:front:live=0",
		"stop:s1",
		"request:back:live=0",
	}, events)
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, maxLive)

	assert.Equal(t, 0, f.devices.stream(0).ActiveTracks())
	status := f.ctrl.Status()
	assert.Equal(t, domain.StateStreaming, status.State)
	assert.Equal(t, domain.FacingBack, status.Facing)
}

func TestCaptureController_SwitchFacingRequiresStreaming(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctrl.SwitchFacing(context.Background()), domain.ErrInvalidState)
}

func TestCaptureController_SwitchFacingDeniedGoesToError(t *testing.T) {
	f := newFixture(t, nil, domain.ErrNoDevice)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, domain.FacingFront))
	require.ErrorIs(t, f.ctrl.SwitchFacing(ctx), domain.ErrNoDevice)

	status := f.ctrl.Status()
	assert.Equal(t, domain.StateError, status.State)
	assert.Equal(t, domain.FacingBack, status.Facing)

	live, _, _ := f.devices.snapshot()
	assert.Equal(t, 0, live)
}

func TestCaptureController_StartWhileStreamingRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, domain.FacingFront))
	assert.ErrorIs(t, f.ctrl.Start(ctx, domain.FacingBack), domain.ErrInvalidState)
	assert.Len(t, f.devices.requests, 1)
}

func TestCaptureController_InvalidFacing(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctrl.Start(context.Background(), domain.FacingMode("sideways")), domain.ErrInvalidFacing)
	assert.Equal(t, domain.StateIdle, f.ctrl.Status().State)
}

func TestCaptureController_DeviceLostMidStream(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Start(context.Background(), domain.FacingFront))

	stream := f.devices.stream(0)
	stream.disconnect(errors.New("no such device"))

	require.Eventually(t, func() bool {
		return f.ctrl.Status().State == domain.StateError
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, f.ctrl.Err(), domain.ErrDeviceLost)
	assert.Equal(t, 0, stream.ActiveTracks())
	assert.Equal(t, "The camera was disconnected. Reconnect it and try again.", f.ctrl.Status().Error)
}

func TestCaptureController_TrackEndedMovesToError(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Start(context.Background(), domain.FacingFront))

	stream := f.devices.stream(0)
	stream.end(errors.New("read /dev/video0: input/output error"))

	assert.Equal(t, domain.StateError, f.ctrl.Status().State)
	assert.ErrorIs(t, f.ctrl.Err(), domain.ErrDeviceLost)
	assert.Equal(t, 0, stream.ActiveTracks())
}

func TestCaptureController_DrawFailureReleasesStream(t *testing.T) {
	f := newFixture(t)
	f.drawer.err = errors.New("frame unavailable")
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, domain.FacingFront))
	handle, err := f.ctrl.Capture(ctx)
	require.ErrorIs(t, err, domain.ErrCaptureFailed)
	assert.True(t, handle.IsZero())

	assert.Equal(t, domain.StateError, f.ctrl.Status().State)
	live, _, _ := f.devices.snapshot()
	assert.Equal(t, 0, live)
}

func TestCaptureController_EncodeFailureReleasesStream(t *testing.T) {
	f := newFixture(t)
	f.encoder.err = errors.New("encoder failed")
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx, domain.FacingFront))
	_, err := f.ctrl.Capture(ctx)
	require.ErrorIs(t, err, domain.ErrCaptureFailed)

	assert.Equal(t, domain.StateError, f.ctrl.Status().State)
	assert.ErrorIs(t, f.ctrl.Err(), domain.ErrCaptureFailed)
	live, _, _ := f.devices.snapshot()
	assert.Equal(t, 0, live)
}

type captureResult struct {
	handle domain.ImageHandle
	err    error
}

// captureAsync запускает Capture и ждет, пока рисование кадра начнется
func captureAsync(t *testing.T, f *controllerFixture, ctx context.Context) <-chan captureResult {
	t.Helper()
	done := make(chan captureResult, 1)
	go func() {
		h, err := f.ctrl.Capture(ctx)
		done <- captureResult{h, err}
	}()
	select {
	case <-f.drawer.entered:
	case <-time.After(time.Second):
		t.Fatal("capture did not start drawing")
	}
	return done
}

func waitCapture(t *testing.T, done <-chan captureResult) captureResult {
	t.Helper()
	select {
	case res := <-done:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not return")
		return captureResult{}
	}
}

func TestCaptureController_CaptureCanceledKeepsStreaming(t *testing.T) {
	f := newFixture(t)
	f.drawer.blocking()

	require.NoError(t, f.ctrl.Start(context.Background(), domain.FacingFront))

	ctx, cancel := context.WithCancel(context.Background())
	done := captureAsync(t, f, ctx)
	cancel()

	res := waitCapture(t, done)
	require.ErrorIs(t, res.err, context.Canceled)
	assert.True(t, res.handle.IsZero())

	assert.Equal(t, domain.StateStreaming, f.ctrl.Status().State)
	assert.NoError(t, f.ctrl.Err())
	live, _, _ := f.devices.snapshot()
	assert.Equal(t, 1, live)
	assert.Equal(t, 0, f.encoder.calls)
}

func TestCaptureController_StopWhileDrawingAborts(t *testing.T) {
	f := newFixture(t)
	f.drawer.blocking()

	require.NoError(t, f.ctrl.Start(context.Background(), domain.FacingFront))
	done := captureAsync(t, f, context.Background())

	require.NoError(t, f.ctrl.Stop())
	// Кадр успевает нарисоваться, но сессия уже заменена
	f.drawer.release <- nil

	res := waitCapture(t, done)
	require.ErrorIs(t, res.err, domain.ErrAborted)
	assert.True(t, res.handle.IsZero())

	assert.Equal(t, domain.StateIdle, f.ctrl.Status().State)
	assert.NoError(t, f.ctrl.Err())
	live, _, _ := f.devices.snapshot()
	assert.Equal(t, 0, live)
}

func TestCaptureController_StopWhileDrawingIgnoresDrawError(t *testing.T) {
	f := newFixture(t)
	f.drawer.blocking()

	require.NoError(t, f.ctrl.Start(context.Background(), domain.FacingFront))
	done := captureAsync(t, f, context.Background())

	require.NoError(t, f.ctrl.Stop())
	f.drawer.release <- errors.New("stream is stopped")

	res := waitCapture(t, done)
	require.ErrorIs(t, res.err, domain.ErrAborted)

	// Ошибка чтения после Stop не переводит контроллер в Error
	assert.Equal(t, domain.StateIdle, f.ctrl.Status().State)
	assert.NoError(t, f.ctrl.Err())
	live, _, _ := f.devices.snapshot()
	assert.Equal(t, 0, live)
}

func TestCaptureController_SwitchWhileDrawingAborts(t *testing.T) {
	f := newFixture(t)
	f.drawer.blocking()

	require.NoError(t, f.ctrl.Start(context.Background(), domain.FacingFront))
	done := captureAsync(t, f, context.Background())

	require.NoError(t, f.ctrl.SwitchFacing(context.Background()))
	f.drawer.release <- nil

	res := waitCapture(t, done)
	require.ErrorIs(t, res.err, domain.ErrAborted)

	status := f.ctrl.Status()
	assert.Equal(t, domain.StateStreaming, status.State)
	assert.Equal(t, domain.FacingBack, status.Facing)
	live, maxLive, _ := f.devices.snapshot()
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, maxLive)
}

func TestCaptureController_StopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.NoError(t, f.ctrl.Stop())

	require.NoError(t, f.ctrl.Start(ctx, domain.FacingFront))
	assert.NoError(t, f.ctrl.Stop())
	assert.NoError(t, f.ctrl.Stop())

	assert.Equal(t, domain.StateIdle, f.ctrl.Status().State)
	assert.Equal(t, 0, f.devices.stream(0).ActiveTracks())

	// Новый Start после Stop снова разрешен
	require.NoError(t, f.ctrl.Start(ctx, domain.FacingBack))
	assert.Equal(t, domain.StateStreaming, f.ctrl.Status().State)
}

func TestCaptureController_StopClearsError(t *testing.T) {
	f := newFixture(t, domain.ErrNoDevice)
	require.Error(t, f.ctrl.Start(context.Background(), domain.FacingBack))

	require.NoError(t, f.ctrl.Stop())
	status := f.ctrl.Status()
	assert.Equal(t, domain.StateIdle, status.State)
	assert.Empty(t, status.Error)
}

func TestCaptureController_StopDuringRequestReleasesLateGrant(t *testing.T) {
	f := newFixture(t)
	gate := make(chan struct{})
	f.devices.gate = gate

	result := make(chan error, 1)
	go func() {
		result <- f.ctrl.Start(context.Background(), domain.FacingFront)
	}()

	require.Eventually(t, func() bool {
		return f.ctrl.Status().State == domain.StateRequesting
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, f.ctrl.Stop())
	close(gate)

	require.ErrorIs(t, <-result, domain.ErrAborted)
	assert.Equal(t, domain.StateIdle, f.ctrl.Status().State)

	live, maxLive, _ := f.devices.snapshot()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, maxLive)
}

func TestCaptureController_TeardownStopsFrameCallbacks(t *testing.T) {
	defer goleak.VerifyNone(t)

	devices := &fakeDevices{}
	sink := &recordingSink{}
	ctrl := NewCaptureController(devices, &fakeDrawer{}, &fakeEncoder{}, sink, nopLogger{}, DefaultCaptureOptions())

	require.NoError(t, ctrl.Start(context.Background(), domain.FacingFront))
	stream := devices.stream(0)
	for i := 0; i < 3; i++ {
		stream.frames <- image.NewRGBA(image.Rect(0, 0, 2, 2))
	}
	require.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ctrl.Close())

	assert.Equal(t, 0, stream.ActiveTracks())
	assert.Equal(t, domain.StateIdle, ctrl.Status().State)

	// Горутина превью завершена: кадр больше некому принять
	select {
	case stream.frames <- image.NewRGBA(image.Rect(0, 0, 2, 2)):
		t.Fatal("frame accepted after teardown")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 3, sink.count())

	assert.ErrorIs(t, ctrl.Start(context.Background(), domain.FacingFront), domain.ErrClosed)
}

func TestCaptureController_FramesCarrySequence(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.Start(context.Background(), domain.FacingBack))

	stream := f.devices.stream(0)
	stream.frames <- image.NewRGBA(image.Rect(0, 0, 2, 2))
	stream.frames <- image.NewRGBA(image.Rect(0, 0, 2, 2))
	require.Eventually(t, func() bool { return f.sink.count() == 2 }, time.Second, 5*time.Millisecond)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	assert.Equal(t, 1, f.sink.frames[0].Number)
	assert.Equal(t, 2, f.sink.frames[1].Number)
	assert.Equal(t, domain.FacingBack, f.sink.frames[1].Facing)
}
