package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"photo-studio/internal/application"
	"photo-studio/internal/infrastructure/preview"
	"photo-studio/internal/infrastructure/raster"
	"photo-studio/internal/infrastructure/render"
	"photo-studio/internal/presentation/web"
)

func (c *CLI) newServeCommand() *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI with live camera preview",
		Long: `Starts the HTTP server. The browser UI controls the camera, shows the live
preview over WebSocket, captures photos and compares images with the slider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				c.config.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				c.config.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.serve(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "адрес для прослушивания")
	cmd.Flags().IntVar(&port, "port", 8080, "порт для прослушивания")
	return cmd
}

// serve собирает компоненты и держит сервер до отмены ctx
func (c *CLI) serve(ctx context.Context) error {
	encoder := raster.NewJPEGEncoder()

	hub := preview.NewHub(encoder, c.logger.Named("preview"), preview.Options{
		MaxFPS:  c.config.Preview.MaxFPS,
		Quality: c.config.Preview.Quality,
	})

	controller := application.NewCaptureController(
		c.mediaDevices(),
		raster.NewFrameDrawer(),
		encoder,
		hub,
		c.logger.Named("capture"),
		c.captureOptions(),
	)

	server := web.NewServer(c.config, web.Deps{
		Capture:    controller,
		Status:     hub,
		Preview:    hub,
		Compositor: render.NewCompositor().WithLabels(c.config.Slider.BeforeLabel, c.config.Slider.AfterLabel),
		Logger:     c.logger.Named("web"),
		ErrorLog:   zap.NewStdLog(c.logger.Named("http").Zap()),
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("Прерывание получено, закрытие...")

		// Сначала камера, чтобы превью перестало получать кадры
		if err := controller.Close(); err != nil {
			c.logger.Error("Ошибка остановки камеры: %v", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), c.config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Error("Ошибка остановки сервера: %v", err)
		}

		// Shutdown не ждет WebSocket-соединений
		return hub.Close()
	})

	c.logger.Info("Photo Studio: http://%s", c.config.Server.Addr())
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
