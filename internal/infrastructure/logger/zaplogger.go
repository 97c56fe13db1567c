package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options параметры логгера
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json или console
	Debug  bool   // включает уровень debug поверх Level
}

// ZapLogger реализация application.Logger поверх zap
type ZapLogger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

// NewZapLogger создает новый логгер
func NewZapLogger(opts Options) (*ZapLogger, error) {
	config := zap.NewProductionConfig()
	if strings.EqualFold(opts.Format, "console") {
		config = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("некорректный уровень логирования %q: %w", opts.Level, err)
		}
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(level)

	base, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("не удалось инициализировать логгер: %w", err)
	}
	return FromZap(base), nil
}

// FromZap оборачивает готовый *zap.Logger
func FromZap(base *zap.Logger) *ZapLogger {
	return &ZapLogger{base: base, sugar: base.Sugar()}
}

// NewNopLogger логгер, который ничего не пишет
func NewNopLogger() *ZapLogger {
	return FromZap(zap.NewNop())
}

// Named возвращает дочерний логгер с именем компонента
func (l *ZapLogger) Named(name string) *ZapLogger {
	return FromZap(l.base.Named(name))
}

// Zap исходный логгер для библиотек, которые принимают *zap.Logger
func (l *ZapLogger) Zap() *zap.Logger {
	return l.base
}

// Info логирует информационное сообщение
func (l *ZapLogger) Info(msg string, args ...interface{}) {
	l.sugar.Infof(msg, args...)
}

// Error логирует сообщение об ошибке
func (l *ZapLogger) Error(msg string, args ...interface{}) {
	l.sugar.Errorf(msg, args...)
}

// Debug логирует отладочное сообщение
func (l *ZapLogger) Debug(msg string, args ...interface{}) {
	l.sugar.Debugf(msg, args...)
}

// Sync сбрасывает буферы
func (l *ZapLogger) Sync() error {
	return l.base.Sync()
}
