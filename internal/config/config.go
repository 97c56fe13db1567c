package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// EnvPrefix префикс переменных окружения
const EnvPrefix = "PHOTO_STUDIO_"

type Config struct {
	Camera  CameraConfig  `yaml:"camera"`
	Preview PreviewConfig `yaml:"preview"`
	Slider  SliderConfig  `yaml:"slider"`
	Export  ExportConfig  `yaml:"export"`
	Server  ServerConfig  `yaml:"server"`
	Upload  UploadConfig  `yaml:"upload"`
	Log     LogConfig     `yaml:"log"`
}

type CameraConfig struct {
	IdealWidth    int     `yaml:"ideal_width"`
	IdealHeight   int     `yaml:"ideal_height"`
	FrameRate     float64 `yaml:"frame_rate"`
	JPEGQuality   float64 `yaml:"jpeg_quality"` // (0,1], как у canvas.toDataURL
	DefaultFacing string  `yaml:"default_facing"`
	FrontDevice   string  `yaml:"front_device"` // явный ID устройства, например video0
	BackDevice    string  `yaml:"back_device"`
}

type PreviewConfig struct {
	MaxFPS  float64 `yaml:"max_fps"`
	Quality float64 `yaml:"quality"`
}

type SliderConfig struct {
	InitialPosition float64 `yaml:"initial_position"`
	Zoom            float64 `yaml:"zoom"`
	BeforeLabel     string  `yaml:"before_label"`
	AfterLabel      string  `yaml:"after_label"`
	RenderWidth     int     `yaml:"render_width"`
	RenderHeight    int     `yaml:"render_height"`
}

type ExportConfig struct {
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"` // 60..100
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr адрес для net/http
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type UploadConfig struct {
	MaxBytes     int64    `yaml:"max_bytes"`
	AllowedTypes []string `yaml:"allowed_types"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Debug  bool   `yaml:"debug"`
}

// Default конфигурация из встроенного defaults.yaml
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// Встроенный файл, ошибка возможна только при сборке с битым defaults.yaml
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load собирает конфигурацию: встроенные значения, затем файл path (если задан),
// затем переменные окружения PHOTO_STUDIO_*.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("чтение конфигурации: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("разбор %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Camera.IdealWidth = envInt(EnvPrefix+"CAMERA_WIDTH", c.Camera.IdealWidth)
	c.Camera.IdealHeight = envInt(EnvPrefix+"CAMERA_HEIGHT", c.Camera.IdealHeight)
	c.Camera.DefaultFacing = envString(EnvPrefix+"CAMERA_FACING", c.Camera.DefaultFacing)
	c.Camera.FrontDevice = envString(EnvPrefix+"CAMERA_FRONT_DEVICE", c.Camera.FrontDevice)
	c.Camera.BackDevice = envString(EnvPrefix+"CAMERA_BACK_DEVICE", c.Camera.BackDevice)
	c.Preview.MaxFPS = envFloat(EnvPrefix+"PREVIEW_MAX_FPS", c.Preview.MaxFPS)
	c.Server.Host = envString(EnvPrefix+"HOST", c.Server.Host)
	c.Server.Port = envInt(EnvPrefix+"PORT", c.Server.Port)
	c.Log.Level = envString(EnvPrefix+"LOG_LEVEL", c.Log.Level)
	c.Log.Format = envString(EnvPrefix+"LOG_FORMAT", c.Log.Format)
	if v, err := strconv.ParseBool(os.Getenv(EnvPrefix + "DEBUG")); err == nil {
		c.Log.Debug = v
	}
}

// Validate проверяет диапазоны значений
func (c *Config) Validate() error {
	var errs []error

	if c.Camera.IdealWidth < 0 || c.Camera.IdealHeight < 0 {
		errs = append(errs, errors.New("camera: отрицательное разрешение"))
	}
	if c.Camera.JPEGQuality <= 0 || c.Camera.JPEGQuality > 1 {
		errs = append(errs, fmt.Errorf("camera.jpeg_quality %v вне диапазона (0,1]", c.Camera.JPEGQuality))
	}
	switch c.Camera.DefaultFacing {
	case "front", "back", "user", "environment":
	default:
		errs = append(errs, fmt.Errorf("camera.default_facing %q: ожидается front или back", c.Camera.DefaultFacing))
	}
	if c.Preview.MaxFPS < 0 {
		errs = append(errs, errors.New("preview.max_fps не может быть отрицательным"))
	}
	if c.Preview.Quality <= 0 || c.Preview.Quality > 1 {
		errs = append(errs, fmt.Errorf("preview.quality %v вне диапазона (0,1]", c.Preview.Quality))
	}
	if c.Slider.InitialPosition < 0 || c.Slider.InitialPosition > 100 {
		errs = append(errs, fmt.Errorf("slider.initial_position %v вне диапазона [0,100]", c.Slider.InitialPosition))
	}
	if c.Slider.RenderWidth <= 0 || c.Slider.RenderHeight <= 0 {
		errs = append(errs, errors.New("slider: размер рендера должен быть положительным"))
	}
	if c.Export.Quality < 60 || c.Export.Quality > 100 {
		errs = append(errs, fmt.Errorf("export.quality %d вне диапазона [60,100]", c.Export.Quality))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d некорректен", c.Server.Port))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("upload.max_bytes должен быть положительным"))
	}

	return errors.Join(errs...)
}

// envInt читает положительное целое; при пустом или некорректном значении
// возвращает defaultVal.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}
