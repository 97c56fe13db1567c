package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"photo-studio/internal/application"
	"photo-studio/internal/config"
	"photo-studio/internal/infrastructure/camera"
	"photo-studio/internal/infrastructure/logger"
)

// BuildInfo метаданные сборки, задаются через -ldflags
type BuildInfo struct {
	Version   string
	CommitSHA string
	BuildDate string
}

// DevicesFactory создает доступ к камерам; в тестах подменяется фейком
type DevicesFactory func(logger application.Logger, mapping camera.DeviceMapping) application.MediaDevices

// Option настраивает CLI
type Option func(*CLI)

// WithLogger задает готовый логгер вместо создаваемого из конфигурации
func WithLogger(l *logger.ZapLogger) Option {
	return func(c *CLI) { c.logger = l }
}

// WithDevices подменяет доступ к камерам
func WithDevices(factory DevicesFactory) Option {
	return func(c *CLI) { c.newDevices = factory }
}

// CLI представляет CLI интерфейс приложения
type CLI struct {
	root  *cobra.Command
	build BuildInfo

	configPath string
	debug      bool

	config     *config.Config
	logger     *logger.ZapLogger
	ownLogger  bool
	newDevices DevicesFactory
}

// NewCLI создает дерево команд
func NewCLI(build BuildInfo, opts ...Option) *CLI {
	c := &CLI{
		build: build,
		newDevices: func(l application.Logger, mapping camera.DeviceMapping) application.MediaDevices {
			return camera.NewMediaDevicesManager(l, mapping)
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.root = &cobra.Command{
		Use:   "photo-studio",
		Short: "Camera capture and before/after comparison studio",
		Long: `Photo Studio captures still photos from a local camera and compares
two images with a draggable before/after slider.

Run "photo-studio serve" to start the browser UI with live camera preview.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil && c.ownLogger {
				_ = c.logger.Sync()
			}
		},
	}

	c.root.PersistentFlags().StringVar(&c.configPath, "config", "", "путь к YAML-конфигурации (по умолчанию $PHOTO_STUDIO_CONFIG)")
	c.root.PersistentFlags().BoolVar(&c.debug, "debug", false, "включить отладочные сообщения")

	c.root.AddCommand(
		c.newDevicesCommand(),
		c.newCaptureCommand(),
		c.newCompareCommand(),
		c.newServeCommand(),
		c.newVersionCommand(),
	)

	return c
}

// setup загружает .env, конфигурацию и создает логгер перед любой командой
func (c *CLI) setup(cmd *cobra.Command, args []string) error {
	// .env необязателен
	_ = godotenv.Load()

	path := c.configPath
	if path == "" {
		path = os.Getenv(config.EnvPrefix + "CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if c.debug {
		cfg.Log.Debug = true
	}
	c.config = cfg

	if c.logger == nil {
		l, err := logger.NewZapLogger(logger.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Debug:  cfg.Log.Debug,
		})
		if err != nil {
			return err
		}
		c.logger = l
		c.ownLogger = true
	}
	return nil
}

// Command корневая команда, нужна тестам
func (c *CLI) Command() *cobra.Command {
	return c.root
}

// Execute запускает CLI с аргументами процесса
func (c *CLI) Execute(ctx context.Context) error {
	return c.root.ExecuteContext(ctx)
}

func (c *CLI) mediaDevices() application.MediaDevices {
	return c.newDevices(c.logger.Named("camera"), camera.DeviceMapping{
		Front: c.config.Camera.FrontDevice,
		Back:  c.config.Camera.BackDevice,
	})
}

func (c *CLI) captureOptions() application.CaptureOptions {
	return application.CaptureOptions{
		IdealWidth:  c.config.Camera.IdealWidth,
		IdealHeight: c.config.Camera.IdealHeight,
		FrameRate:   c.config.Camera.FrameRate,
		Quality:     c.config.Camera.JPEGQuality,
	}
}

func (c *CLI) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "photo-studio %s\n", c.build.Version)
			fmt.Fprintf(out, "  Commit: %s\n", c.build.CommitSHA)
			fmt.Fprintf(out, "  Built:  %s\n", c.build.BuildDate)
		},
	}
}
