package store_test

import (
	"context"
	"testing"

	"grocery-mart/internal/store"
	"grocery-mart/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedIsIdempotent(t *testing.T) {
	mem := storetest.NewMemory()
	ctx := context.Background()

	products, admin, err := store.Seed(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, 12, products)
	assert.True(t, admin)

	products, admin, err = store.Seed(ctx, mem)
	require.NoError(t, err)
	assert.Zero(t, products)
	assert.False(t, admin)

	a, err := mem.GetAdminByEmail(ctx, store.DefaultAdminEmail)
	require.NoError(t, err)
	assert.Equal(t, store.DefaultAdminPassword, a.Password)
}
