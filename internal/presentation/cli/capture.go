package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"photo-studio/internal/application"
	"photo-studio/internal/domain"
	"photo-studio/internal/infrastructure/raster"
	"photo-studio/internal/infrastructure/render"
)

// warmupSink ждет заданное число кадров, чтобы камера успела настроить экспозицию
type warmupSink struct {
	need  int
	ready chan struct{}

	mu   sync.Mutex
	seen int
}

func newWarmupSink(frames int) *warmupSink {
	s := &warmupSink{need: frames, ready: make(chan struct{})}
	if frames <= 0 {
		close(s.ready)
	}
	return s
}

func (s *warmupSink) PublishFrame(domain.VideoFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen++
	if s.seen == s.need {
		close(s.ready)
	}
}

func (c *CLI) newCaptureCommand() *cobra.Command {
	var (
		facingFlag string
		output     string
		warmup     int
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Take a single photo from the camera",
		Long: `Opens the camera, waits for a few preview frames so exposure can settle,
captures one JPEG photo and releases the camera.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if facingFlag == "" {
				facingFlag = c.config.Camera.DefaultFacing
			}
			facing, err := domain.ParseFacingMode(facingFlag)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			sink := newWarmupSink(warmup)
			controller := application.NewCaptureController(
				c.mediaDevices(),
				raster.NewFrameDrawer(),
				raster.NewJPEGEncoder(),
				sink,
				c.logger.Named("capture"),
				c.captureOptions(),
			)
			defer controller.Close()

			handle, err := capturePhoto(ctx, controller, sink, facing)
			if err != nil {
				return err
			}

			if output == "" {
				output = render.FileName("capture", render.FormatJPG, time.Now())
			}
			if err := os.WriteFile(output, handle.Bytes(), 0o644); err != nil {
				return fmt.Errorf("сохранение снимка: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%dx%d, %d bytes)\n", output, handle.Width(), handle.Height(), handle.Size())
			return nil
		},
	}

	cmd.Flags().StringVar(&facingFlag, "facing", "", "камера: front или back (по умолчанию из конфигурации)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "файл для снимка (по умолчанию capture-<ms>.jpg)")
	cmd.Flags().IntVar(&warmup, "warmup", 10, "сколько кадров пропустить перед снимком")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "максимальное время ожидания камеры")
	return cmd
}

// capturePhoto открывает камеру, ждет прогрева и делает снимок
func capturePhoto(ctx context.Context, controller *application.CaptureController, sink *warmupSink, facing domain.FacingMode) (domain.ImageHandle, error) {
	if err := controller.Start(ctx, facing); err != nil {
		return domain.ImageHandle{}, fmt.Errorf("%s: %w", domain.UserMessage(err), err)
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for ready := false; !ready; {
		select {
		case <-sink.ready:
			ready = true
		case <-ctx.Done():
			return domain.ImageHandle{}, ctx.Err()
		case <-ticker.C:
			// Камера могла отключиться во время прогрева
			if err := controller.Err(); err != nil {
				return domain.ImageHandle{}, fmt.Errorf("%s: %w", domain.UserMessage(err), err)
			}
		}
	}

	handle, err := controller.Capture(ctx)
	if err != nil {
		return domain.ImageHandle{}, fmt.Errorf("%s: %w", domain.UserMessage(err), err)
	}
	return handle, nil
}
