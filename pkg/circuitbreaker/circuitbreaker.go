// Package circuitbreaker предоставляет Circuit Breaker для защиты от
// каскадных сбоев при вызовах внешнего платёжного провайдера.
//
// Состояния Circuit Breaker:
//   - Closed: нормальная работа, запросы проходят
//   - Open: провайдер недоступен, запросы отклоняются мгновенно (без ожидания timeout)
//   - Half-Open: пробный период, пропускаем часть запросов для проверки восстановления
//
// Использование:
//
//	cb := circuitbreaker.New("payment-provider")
//	resp, err := cb.ExecuteHTTP(func() (*http.Response, error) {
//	    return httpClient.Do(req)
//	})
package circuitbreaker

import (
	"errors"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/orderfulfillment/pkg/logger"
)

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32        // Макс. запросов в Half-Open состоянии (по умолчанию 1)
	Interval     time.Duration // Интервал сброса счётчика в Closed (по умолчанию 60s)
	Timeout      time.Duration // Время в Open до перехода в Half-Open (по умолчанию 30s)
	FailureRatio float64       // Доля ошибок для перехода в Open (по умолчанию 0.5)
	MinRequests  uint32        // Мин. запросов для расчёта ratio (по умолчанию 5)
}

// DefaultSettings возвращает настройки по умолчанию.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker — обёртка над gobreaker с логированием.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[*http.Response]
	name string
}

// New создаёт новый Circuit Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},

		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Logger()

			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("Circuit Breaker ОТКРЫТ — провайдер недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("Circuit Breaker ПОЛУОТКРЫТ — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("Circuit Breaker ЗАКРЫТ — провайдер восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// State возвращает текущее состояние breaker.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker.
func (b *Breaker) Name() string {
	return b.name
}

// ErrOpen возвращается, когда breaker открыт и отклоняет запрос без попытки.
var ErrOpen = errors.New("circuit breaker открыт: провайдер временно недоступен")

var errInfraFailure = errors.New("инфраструктурный сбой провайдера")

// ExecuteHTTP оборачивает один HTTP-вызов в Circuit Breaker. Инфраструктурные
// сбои (транспортная ошибка, 5xx) учитываются в статистике breaker;
// бизнес-ошибки (4xx) — нет, поскольку они не означают, что провайдер
// недоступен.
func (b *Breaker) ExecuteHTTP(fn func() (*http.Response, error)) (*http.Response, error) {
	resp, err := b.cb.Execute(func() (*http.Response, error) {
		r, callErr := fn()
		if callErr != nil {
			return r, callErr
		}
		if r.StatusCode >= 500 {
			return r, errInfraFailure
		}
		return r, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrOpen
	case errors.Is(err, errInfraFailure):
		// Провайдер ответил, но статус классифицирован как инфраструктурный
		// сбой; возвращаем исходный ответ вызывающему коду для диагностики.
		return resp, nil
	default:
		return resp, err
	}
}
