package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/clause"
)

func TestRepositoryReserveConditionalUpdate(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 10, 0)

	reserved, err := repo.Reserve(ctx, productID, 7)
	require.NoError(t, err)
	assert.True(t, reserved)

	record, err := repo.GetByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 7, record.Reserved)
	assert.Equal(t, 3, record.Available)

	// Second attempt exceeds what is left; the guard must refuse it without
	// touching the row.
	reserved, err = repo.Reserve(ctx, productID, 4)
	require.NoError(t, err)
	assert.False(t, reserved)

	record, err = repo.GetByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 7, record.Reserved)
	assert.Equal(t, 3, record.Available)
}

func TestRepositoryReleaseClampsAtZero(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 10, 4)

	released, err := repo.Release(ctx, productID, 9)
	require.NoError(t, err)
	assert.True(t, released)

	record, err := repo.GetByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 0, record.Reserved)
	assert.Equal(t, 10, record.Available)
	assert.Equal(t, 10, record.OnHand)
}

func TestAdminUpdateColumnsTouchOnlyProvidedFields(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	onHand := 150

	cols := adminUpdateColumns(UpdateInventoryInput{OnHand: &onHand}, now)

	// A restock must not carry an assignment for reserved; a stale value
	// written there would erase reservations committed in the meantime.
	_, hasReserved := cols["reserved"]
	assert.False(t, hasReserved)
	assert.Equal(t, onHand, cols["on_hand"])

	expr, ok := cols["available"].(clause.Expr)
	require.True(t, ok, "available must be derived in SQL, not precomputed")
	assert.Contains(t, expr.SQL, "reserved")

	reserved := 25
	cols = adminUpdateColumns(UpdateInventoryInput{Reserved: &reserved}, now)
	_, hasOnHand := cols["on_hand"]
	assert.False(t, hasOnHand)
	expr, ok = cols["available"].(clause.Expr)
	require.True(t, ok)
	assert.Contains(t, expr.SQL, "on_hand")

	cols = adminUpdateColumns(UpdateInventoryInput{OnHand: &onHand, Reserved: &reserved}, now)
	assert.Equal(t, onHand-reserved, cols["available"])
}

func TestAdminUpdateFoldsInCommittedReservation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	productID := mustCreateTestProduct(t, conn)
	mustSeedInventory(t, conn, productID, 100, 0)

	// A reservation lands after the admin read their stock snapshot but
	// before the restock statement runs.
	reserved, err := repo.Reserve(ctx, productID, 30)
	require.NoError(t, err)
	require.True(t, reserved)

	onHand := 150
	updated, err := repo.AdminUpdate(ctx, productID, UpdateInventoryInput{OnHand: &onHand}, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, updated)

	record, err := repo.GetByProductID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, 150, record.OnHand)
	assert.Equal(t, 30, record.Reserved)
	assert.Equal(t, 120, record.Available)
	require.NotNil(t, record.LastRestockedAt)
}

func TestRepositoryReserveMissingRow(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)

	productID := mustCreateTestProduct(t, conn)

	reserved, err := repo.Reserve(context.Background(), productID, 1)
	require.NoError(t, err)
	assert.False(t, reserved)
}
