package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleetlog/fleet"
	"github.com/warp/fleetlog/fleet/store"
	"github.com/warp/fleetlog/fleet/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) fleet.Store {
		return store.NewMemory()
	})
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.SaveUser(ctx, fleet.NewRider("r1", "Jean", "jean@shoppi.cd", "KIN-001")))

	u, err := s.GetUser(ctx, "r1")
	require.NoError(t, err)
	u.Rider.Matricule = "changed"

	again, err := s.GetUser(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "KIN-001", again.Matricule())
}

func TestMemory_RollbackRestoresReset(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	require.NoError(t, s.SaveUser(ctx, fleet.NewRider("r1", "Jean", "jean@shoppi.cd", "")))

	err := s.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.Reset(ctx); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	u, err := s.GetUser(ctx, "r1")
	require.NoError(t, err)
	assert.NotNil(t, u)
}
