// Package logger предоставляет структурированное логирование на базе zerolog.
// JSON формат для production, pretty-print для разработки.
// Все сообщения логов пишутся на русском языке.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// log — глобальный экземпляр логгера.
// Инициализируется при импорте пакета и перенастраивается через Init().
var log zerolog.Logger

// Config содержит настройки инициализации логгера.
type Config struct {
	// Level задает минимальный уровень логирования:
	// "debug", "info", "warn", "error". По умолчанию "info".
	Level string

	// Pretty включает цветной консольный вывод для разработки.
	// При false логи пишутся в JSON для production.
	Pretty bool

	// Output задает writer для вывода логов. По умолчанию os.Stdout.
	Output io.Writer
}

// init настраивает логгер из переменных окружения LOG_LEVEL и LOG_PRETTY,
// чтобы логирование работало до явного вызова Init() в main.
func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	Init(Config{
		Level:  level,
		Pretty: strings.ToLower(os.Getenv("LOG_PRETTY")) == "true",
	})
}

// Init инициализирует глобальный логгер с заданной конфигурацией.
// Вызывается в начале работы приложения после загрузки конфигурации.
func Init(cfg Config) {
	var output io.Writer = os.Stdout
	if cfg.Output != nil {
		output = cfg.Output
	}

	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	level := parseLevel(cfg.Level)

	// Базовые поля каждой записи: timestamp и место вызова (файл:строка).
	log = zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}

// parseLevel преобразует строку в zerolog.Level.
// Неизвестный уровень трактуется как info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug создает событие лога уровня debug.
// Пример: logger.Debug().Str("hotel_uid", uid).Msg("Запрос отеля")
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info создает событие лога уровня info.
// Пример: logger.Info().Str("reservation_uid", uid).Msg("Бронирование создано")
func Info() *zerolog.Event {
	return log.Info()
}

// Warn создает событие лога уровня warn.
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error создает событие лога уровня error.
// Используется для ошибок, не приводящих к остановке приложения.
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal создает событие лога уровня fatal и завершает приложение.
// ВНИМАНИЕ: после вызова Msg() процесс завершится с кодом 1.
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// With создает новый логгер с дополнительными полями.
// Пример:
//
//	workerLog := logger.With().Str("component", "retry-worker").Logger()
//	workerLog.Info().Msg("Worker запущен")
func With() zerolog.Context {
	return log.With()
}

// Logger возвращает глобальный экземпляр zerolog.Logger.
func Logger() zerolog.Logger {
	return log
}

// SetGlobalLogger подменяет глобальный логгер. Используется в тестах.
func SetGlobalLogger(l zerolog.Logger) {
	log = l
}
