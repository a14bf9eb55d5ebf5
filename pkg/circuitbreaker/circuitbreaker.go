// Package circuitbreaker предоставляет Circuit Breaker для защиты от каскадных
// сбоев downstream сервисов. Каждый сервис (hotel, reservation, payment,
// loyalty) получает собственный breaker через Registry — сбой одного сервиса
// не влияет на состояние breaker другого.
//
// Состояния Circuit Breaker:
//   - Closed: нормальная работа, запросы проходят
//   - Open: после FailMax подряд идущих ошибок запросы отклоняются мгновенно
//   - Half-Open: после ResetTimeout пропускается один пробный запрос;
//     успех закрывает breaker и сбрасывает счётчик, ошибка снова открывает
//
// Использование:
//
//	registry := circuitbreaker.NewRegistry(circuitbreaker.DefaultSettings())
//	result, err := registry.Get("loyalty").Execute(func() (any, error) { ... })
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/booking-system/pkg/logger"
	"example.com/booking-system/pkg/metrics"
)

// ErrOpen возвращается из Execute, когда breaker открыт и запрос не выполнялся.
// Вызывающий код обязан вернуть fallback значение вместо реального ответа.
var ErrOpen = errors.New("circuit breaker открыт")

// Settings — настройки Circuit Breaker.
type Settings struct {
	FailMax      uint32        // Подряд идущих ошибок до перехода в Open (по умолчанию 5)
	ResetTimeout time.Duration // Время в Open до пробного запроса (по умолчанию 60s)
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		FailMax:      5,
		ResetTimeout: 60 * time.Second,
	}
}

// normalize подставляет значения по умолчанию вместо нулевых.
func (s Settings) normalize() Settings {
	def := DefaultSettings()
	if s.FailMax == 0 {
		s.FailMax = def.FailMax
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = def.ResetTimeout
	}
	return s
}

// Breaker — обёртка над gobreaker с логированием и метриками.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[any]
	name string
}

// New создаёт breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	s = s.normalize()

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1, // В Half-Open пропускаем ровно один пробный запрос
		// Interval=0: счётчик подряд идущих ошибок в Closed не сбрасывается
		// по времени, только успешным запросом.
		Interval: 0,
		Timeout:  s.ResetTimeout,

		// Открываем после FailMax подряд идущих ошибок.
		// Ошибки соединения breaker не видит вовсе — вызывающий код
		// возвращает их как успех и обрабатывает fallback-ом сам.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailMax
		},

		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.SetBreakerState(name, breakerStateValue(to))

			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ — сервис недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ — сервис восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// Execute выполняет fn под контролем breaker.
// Когда breaker открыт (или пробный слот Half-Open уже занят), возвращает
// ErrOpen без вызова fn.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return result, err
}

// State возвращает текущее состояние breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker (идентификатор downstream сервиса).
func (b *Breaker) Name() string {
	return b.name
}

// breakerStateValue кодирует состояние для Prometheus gauge:
// 0 — Closed, 1 — Half-Open, 2 — Open.
func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Registry — реестр breaker-ов по идентификатору downstream сервиса.
// Один Registry на процесс; breaker создаётся лениво при первом обращении
// и живёт до завершения процесса. Безопасен для конкурентного использования.
type Registry struct {
	mu       sync.Mutex
	settings Settings
	breakers map[string]*Breaker
}

// NewRegistry создаёт реестр с общими настройками для всех breaker-ов.
func NewRegistry(s Settings) *Registry {
	return &Registry{
		settings: s.normalize(),
		breakers: make(map[string]*Breaker),
	}
}

// Get возвращает breaker для сервиса, создавая его при первом обращении.
func (r *Registry) Get(service string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[service]
	if !ok {
		b = NewWithSettings(service, r.settings)
		r.breakers[service] = b
	}
	return b
}
