package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errService = errors.New("сервис упал")

func failN(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := b.Execute(func() (any, error) { return nil, errService })
		require.Error(t, err)
	}
}

func TestBreaker_OpensAfterFailMax(t *testing.T) {
	b := NewWithSettings("test-open", Settings{FailMax: 3, ResetTimeout: time.Minute})

	failN(t, b, 2)
	assert.Equal(t, gobreaker.StateClosed, b.State())

	failN(t, b, 1)
	assert.Equal(t, gobreaker.StateOpen, b.State())

	// Открытый breaker не вызывает fn
	called := false
	_, err := b.Execute(func() (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestBreaker_SuccessResetsConsecutiveFailures(t *testing.T) {
	b := NewWithSettings("test-reset", Settings{FailMax: 3, ResetTimeout: time.Minute})

	failN(t, b, 2)
	_, err := b.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)

	// Счётчик сброшен — ещё две ошибки breaker не открывают
	failN(t, b, 2)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_HalfOpenTrialClosesOnSuccess(t *testing.T) {
	b := NewWithSettings("test-halfopen", Settings{FailMax: 2, ResetTimeout: 50 * time.Millisecond})

	failN(t, b, 2)
	require.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(80 * time.Millisecond)

	// Пробный запрос прошёл — breaker закрывается
	result, err := b.Execute(func() (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_HalfOpenTrialReopensOnFailure(t *testing.T) {
	b := NewWithSettings("test-reopen", Settings{FailMax: 2, ResetTimeout: 50 * time.Millisecond})

	failN(t, b, 2)
	time.Sleep(80 * time.Millisecond)

	failN(t, b, 1)
	assert.Equal(t, gobreaker.StateOpen, b.State())
}

func TestBreaker_ExecuteReturnsResult(t *testing.T) {
	b := New("test-result")

	result, err := b.Execute(func() (any, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestSettings_Normalize(t *testing.T) {
	s := Settings{}.normalize()
	assert.Equal(t, uint32(5), s.FailMax)
	assert.Equal(t, 60*time.Second, s.ResetTimeout)
}

func TestRegistry_SeparateBreakersPerService(t *testing.T) {
	r := NewRegistry(Settings{FailMax: 2, ResetTimeout: time.Minute})

	payment := r.Get("payment")
	loyalty := r.Get("loyalty")
	require.NotSame(t, payment, loyalty)
	assert.Same(t, payment, r.Get("payment"))

	// Сбои payment не трогают loyalty
	failN(t, payment, 2)
	assert.Equal(t, gobreaker.StateOpen, payment.State())
	assert.Equal(t, gobreaker.StateClosed, loyalty.State())
}
