package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInventory_FreeStock(t *testing.T) {
	inv := &Inventory{QuantityAvailable: 10, QuantityReserved: 3}

	require.Equal(t, int32(7), inv.FreeStock())
	require.True(t, inv.CanReserve(7))
	require.False(t, inv.CanReserve(8))
}

func TestInventory_ReserveKeepsAvailable(t *testing.T) {
	inv := &Inventory{QuantityAvailable: 10, QuantityReserved: 0, Version: 1}

	inv.Reserve(4)

	require.Equal(t, int32(10), inv.QuantityAvailable)
	require.Equal(t, int32(4), inv.QuantityReserved)
	require.Equal(t, int64(2), inv.Version)
}

func TestInventory_CommitReducesBothPools(t *testing.T) {
	inv := &Inventory{QuantityAvailable: 10, QuantityReserved: 4, Version: 2}

	inv.Commit(4)

	require.Equal(t, int32(6), inv.QuantityAvailable)
	require.Equal(t, int32(0), inv.QuantityReserved)
	require.Equal(t, int64(3), inv.Version)
}

func TestInventory_ReleaseReturnsToFreePool(t *testing.T) {
	inv := &Inventory{QuantityAvailable: 10, QuantityReserved: 4, Version: 2}

	inv.Release(4)

	require.Equal(t, int32(10), inv.QuantityAvailable)
	require.Equal(t, int32(0), inv.QuantityReserved)
	require.Equal(t, int32(10), inv.FreeStock())
}

func TestInventory_DeductTouchesOnlyAvailable(t *testing.T) {
	inv := &Inventory{QuantityAvailable: 10, QuantityReserved: 2, Version: 1}

	inv.Deduct(3)

	require.Equal(t, int32(7), inv.QuantityAvailable)
	require.Equal(t, int32(2), inv.QuantityReserved)
}

func TestReservation_Lifecycle(t *testing.T) {
	res := NewReservation("order-1", 30*time.Minute)

	require.NotEmpty(t, res.ID)
	require.Equal(t, ReservationStatusReserved, res.Status)
	require.False(t, res.IsTerminal())
	require.False(t, res.IsExpired(time.Now()))
	require.True(t, res.IsExpired(time.Now().Add(time.Hour)))
}

func TestReservation_TerminalStatesAreNeverExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	for _, status := range []ReservationStatus{
		ReservationStatusCommitted,
		ReservationStatusReleased,
		ReservationStatusExpired,
	} {
		res := &Reservation{Status: status, ExpiresAt: past}
		require.True(t, res.IsTerminal())
		require.False(t, res.IsExpired(time.Now()))
	}
}
