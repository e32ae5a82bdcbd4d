package domain_test

import (
	"testing"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, domain.StatusReady, domain.InitialStatus(0))
	assert.Equal(t, domain.StatusPending, domain.InitialStatus(1))
	assert.Equal(t, domain.StatusPending, domain.InitialStatus(5))
}

func TestCanTransition(t *testing.T) {
	all := []domain.Status{domain.StatusPending, domain.StatusReady, domain.StatusDispensed}

	legal := map[[2]domain.Status]bool{
		{domain.StatusPending, domain.StatusDispensed}: true,
		{domain.StatusReady, domain.StatusDispensed}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, legal[[2]domain.Status{from, to}], domain.CanTransition(from, to))
			})
		}
	}
}

func TestStatus_Transition(t *testing.T) {
	t.Run("ready to dispensed", func(t *testing.T) {
		next, err := domain.StatusReady.Transition(domain.StatusDispensed)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDispensed, next)
	})

	t.Run("dispensed is terminal", func(t *testing.T) {
		next, err := domain.StatusDispensed.Transition(domain.StatusPending)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
		assert.Equal(t, domain.StatusDispensed, next)
		assert.True(t, domain.StatusDispensed.IsTerminal())
	})

	t.Run("no regression from ready to pending", func(t *testing.T) {
		_, err := domain.StatusReady.Transition(domain.StatusPending)
		assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	})
}

func TestStatus_ScanValue(t *testing.T) {
	var s domain.Status
	require.NoError(t, s.Scan([]byte("Ready")))
	assert.Equal(t, domain.StatusReady, s)

	assert.Error(t, s.Scan("Archived"))
	assert.Error(t, s.Scan(42))

	v, err := domain.StatusDispensed.Value()
	require.NoError(t, err)
	assert.Equal(t, "Dispensed", v)

	_, err = domain.Status("bogus").Value()
	assert.Error(t, err)
}
