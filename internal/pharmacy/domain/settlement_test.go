package domain_test

import (
	"errors"
	"testing"

	"github.com/medflow/pharmacy-backend/internal/pharmacy/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettlementAttempt(t *testing.T) {
	t.Run("validating -> reserving -> committed", func(t *testing.T) {
		a := domain.NewSettlementAttempt()
		assert.Equal(t, domain.SettlementValidating, a.State())

		require.NoError(t, a.Reserve())
		require.NoError(t, a.Commit())
		assert.Equal(t, domain.SettlementCommitted, a.State())
		assert.True(t, a.Done())
		assert.NoError(t, a.Err())
	})

	t.Run("validating -> rejected", func(t *testing.T) {
		a := domain.NewSettlementAttempt()
		cause := errors.New("already dispensed")

		require.NoError(t, a.Reject(cause))
		assert.Equal(t, domain.SettlementRejected, a.State())
		assert.Equal(t, cause, a.Err())
	})

	t.Run("reserving -> rolled back", func(t *testing.T) {
		a := domain.NewSettlementAttempt()
		require.NoError(t, a.Reserve())
		require.NoError(t, a.RollBack(errors.New("insufficient stock")))
		assert.Equal(t, domain.SettlementRolledBack, a.State())
	})

	t.Run("illegal moves", func(t *testing.T) {
		a := domain.NewSettlementAttempt()
		assert.ErrorIs(t, a.Commit(), domain.ErrIllegalTransition)
		assert.ErrorIs(t, a.RollBack(nil), domain.ErrIllegalTransition)

		require.NoError(t, a.Reserve())
		assert.ErrorIs(t, a.Reject(nil), domain.ErrIllegalTransition)

		require.NoError(t, a.Commit())
		assert.ErrorIs(t, a.RollBack(nil), domain.ErrIllegalTransition)
		assert.True(t, a.Done())
	})
}
