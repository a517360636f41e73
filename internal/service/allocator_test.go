package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meshinv/internal/domain"
	"meshinv/internal/repository"
)

func newTestAllocator(t *testing.T, store repository.Store, space domain.NetworkNumberSpace) (*Allocator, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	return NewAllocator(store, space, notifier, NewEventBus(), nil), notifier
}

func TestAllocateSequentialNumbersIncrease(t *testing.T) {
	store := newTestStore(t)
	seedNode(t, store, 101)
	seedNode(t, store, 104)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	var got []int64
	for number := int64(1000); number < 1005; number++ {
		install := seedInstall(t, store, number, domain.InstallStatusRequestReceived)
		result, err := alloc.Allocate(context.Background(), install.ID)
		require.NoError(t, err)
		assert.True(t, result.Created)
		got = append(got, result.NetworkNumber)
	}

	assert.Equal(t, []int64{102, 103, 105, 106, 107}, got)
}

func TestAllocateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	alloc, notifier := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())
	install := seedInstall(t, store, 5000, domain.InstallStatusRequestReceived)

	first, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, int64(101), first.NetworkNumber)
	assert.Len(t, notifier.ofKind(NotificationCreated), 1)

	second, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.NetworkNumber, second.NetworkNumber)
	assert.Equal(t, first.NodeID, second.NodeID)
	assert.Len(t, notifier.ofKind(NotificationCreated), 1, "no notification for an existing assignment")

	updated := getInstall(t, store, install.ID)
	assert.Equal(t, domain.InstallStatusPending, updated.Status)
	require.NotNil(t, updated.NodeID)
	assert.Equal(t, first.NodeID, *updated.NodeID)
}

func TestAllocateReusesBuildingPrimaryNode(t *testing.T) {
	store := newTestStore(t)
	sticky := seedNode(t, store, 300)
	building := seedBuilding(t, store, sticky)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	install := &domain.Install{InstallNumber: 2000, Status: domain.InstallStatusRequestReceived, BuildingID: &building.ID}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateInstall(ctx, install))
	})

	result, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), result.NetworkNumber)
	assert.Equal(t, sticky.ID, result.NodeID)
	assert.False(t, result.Created)

	// no fresh number was consumed
	other := seedInstall(t, store, 2001, domain.InstallStatusRequestReceived)
	next, err := alloc.Allocate(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(101), next.NetworkNumber)
}

func TestAllocateSetsBuildingPrimaryNode(t *testing.T) {
	store := newTestStore(t)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	building := &domain.Building{Address: "3 Third Ave"}
	install := &domain.Install{InstallNumber: 3000, Status: domain.InstallStatusRequestReceived}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateBuilding(ctx, building))
		install.BuildingID = &building.ID
		require.NoError(t, tx.CreateInstall(ctx, install))
	})

	result, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	require.True(t, result.Created)

	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		b, err := tx.GetBuilding(ctx, building.ID)
		require.NoError(t, err)
		require.NotNil(t, b.PrimaryNodeID)
		assert.Equal(t, result.NodeID, *b.PrimaryNodeID)

		buildings, err := tx.NodeBuildings(ctx, result.NodeID)
		require.NoError(t, err)
		require.Len(t, buildings, 1)
		assert.Equal(t, building.ID, buildings[0].ID)
	})
}

func TestAllocateWithoutDonation(t *testing.T) {
	store := newTestStore(t)
	seedNode(t, store, 101)
	install := seedInstall(t, store, 150, domain.InstallStatusRequestReceived)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	result, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(102), result.NetworkNumber)

	after := getInstall(t, store, install.ID)
	assert.Equal(t, int64(150), after.InstallNumber)
	assert.NotEqual(t, domain.InstallStatusNNReassigned, after.Status)
}

func TestAllocateSkipsReservedInstallNumbers(t *testing.T) {
	store := newTestStore(t)
	for nn := int64(101); nn <= 110; nn++ {
		seedNode(t, store, nn)
	}
	seedInstall(t, store, 111, domain.InstallStatusPending)
	install := seedInstall(t, store, 500, domain.InstallStatusRequestReceived)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	result, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(112), result.NetworkNumber)
}

func TestAllocateRecyclesDonorInstallNumber(t *testing.T) {
	store := newTestStore(t)
	seedNode(t, store, 101)
	donor := seedInstall(t, store, 102, domain.InstallStatusRequestReceived)
	install := seedInstall(t, store, 600, domain.InstallStatusRequestReceived)
	alloc, notifier := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	result, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(102), result.NetworkNumber)

	assert.Equal(t, domain.InstallStatusNNReassigned, getInstall(t, store, donor.ID).Status)

	var donorNotified bool
	for _, n := range notifier.ofKind(NotificationUpdated) {
		donorNotified = donorNotified || mentions(n, donor.ID)
	}
	assert.True(t, donorNotified)

	// the donor's number stays reserved for good
	next := seedInstall(t, store, 601, domain.InstallStatusRequestReceived)
	result, err = alloc.Allocate(context.Background(), next.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(103), result.NetworkNumber)
}

func TestAllocateReusesNumberOfNumberedInstall(t *testing.T) {
	store := newTestStore(t)
	node := seedNode(t, store, 400)
	numbered := &domain.Install{InstallNumber: 101, Status: domain.InstallStatusActive, NodeID: &node.ID}
	withTx(t, store, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, tx.CreateInstall(ctx, numbered))
	})
	install := seedInstall(t, store, 700, domain.InstallStatusRequestReceived)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	result, err := alloc.Allocate(context.Background(), install.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(101), result.NetworkNumber)
	assert.Equal(t, domain.InstallStatusActive, getInstall(t, store, numbered.ID).Status)
}

func TestAllocateExhausted(t *testing.T) {
	store := newTestStore(t)
	seedNode(t, store, 101)
	seedNode(t, store, 102)
	install := seedInstall(t, store, 900, domain.InstallStatusRequestReceived)
	alloc, _ := newTestAllocator(t, store, domain.NetworkNumberSpace{Min: 101, Max: 102})

	_, err := alloc.Allocate(context.Background(), install.ID)
	assert.ErrorIs(t, err, domain.ErrNetworkNumbersExhausted)

	after := getInstall(t, store, install.ID)
	assert.Equal(t, domain.InstallStatusRequestReceived, after.Status)
	assert.Nil(t, after.NodeID)
}

func TestAllocateUnknownInstall(t *testing.T) {
	store := newTestStore(t)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	_, err := alloc.Allocate(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCheckCandidatePreconditions(t *testing.T) {
	store := newTestStore(t)
	seedNode(t, store, 101)
	seedInstall(t, store, 200, domain.InstallStatusPending)
	install := seedInstall(t, store, 900, domain.InstallStatusRequestReceived)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	tests := []struct {
		name string
		nn   int64
	}{
		{name: "below range", nn: 100},
		{name: "above range", nn: 8193},
		{name: "held by a node", nn: 101},
		{name: "reserved by an unnumbered install", nn: 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.InTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
				var box outbox
				return alloc.checkCandidate(ctx, tx, install, tt.nn, &box)
			})
			assert.ErrorIs(t, err, domain.ErrPrecondition)
		})
	}
}

func TestConcurrentAllocationDistinctInstalls(t *testing.T) {
	store := newTestStore(t)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())

	const workers = 8
	installs := make([]*domain.Install, workers)
	for i := range installs {
		installs[i] = seedInstall(t, store, int64(5000+i), domain.InstallStatusRequestReceived)
	}

	results := make([]*AllocationResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range installs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = alloc.Allocate(context.Background(), installs[i].ID)
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i := range results {
		require.NoError(t, errs[i])
		assert.False(t, seen[results[i].NetworkNumber], "number %d handed out twice", results[i].NetworkNumber)
		seen[results[i].NetworkNumber] = true
	}
	assert.Len(t, seen, workers)
}

func TestConcurrentAllocationSameInstall(t *testing.T) {
	store := newTestStore(t)
	alloc, _ := newTestAllocator(t, store, domain.DefaultNetworkNumberSpace())
	install := seedInstall(t, store, 6000, domain.InstallStatusRequestReceived)

	const workers = 6
	results := make([]*AllocationResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = alloc.Allocate(context.Background(), install.ID)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].NetworkNumber, results[i].NetworkNumber)
		assert.Equal(t, results[0].NodeID, results[i].NodeID)
		if results[i].Created {
			created++
		}
	}
	assert.Equal(t, 1, created)
}
