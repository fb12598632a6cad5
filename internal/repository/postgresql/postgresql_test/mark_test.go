package postgresql_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmlabs-hris/attendance-ledger/internal/domain/mark"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/apperror"
	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/geofence"
	"github.com/cmlabs-hris/attendance-ledger/internal/repository/postgresql"
)

func testMark(t *testing.T, event mark.EventType, at time.Time, prev *string, self string) mark.Mark {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	acc := 12.5
	status := geofence.StatusOK
	return mark.Mark{
		ID:              id.String(),
		WorkerID:        "w1",
		SiteID:          "s1",
		EventType:       event,
		ServerTimestamp: at,
		Geo:             &geofence.Point{Latitude: -33.4490, Longitude: -70.6690, Accuracy: &acc},
		GeoStatus:       &status,
		DeviceID:        "phone-1",
		HashPrev:        prev,
		HashSelf:        self,
	}
}

func TestMarkRepository_ChainRoundTrip(t *testing.T) {
	setupTestData(t)
	ctx := context.Background()
	repo := postgresql.NewMarkRepository(testDB)

	tail, err := repo.Tail(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, tail)

	start := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	in := testMark(t, mark.EventIn, start, nil, "aaa")
	out := testMark(t, mark.EventOut, start.Add(9*time.Hour), &in.HashSelf, "bbb")
	require.NoError(t, repo.Insert(ctx, in))
	require.NoError(t, repo.Insert(ctx, out))

	tail, err = repo.Tail(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, tail)
	assert.Equal(t, out.ID, tail.ID)
	assert.Equal(t, "aaa", *tail.HashPrev)
	require.NotNil(t, tail.Geo)
	assert.InDelta(t, 12.5, *tail.Geo.Accuracy, 1e-9)

	marks, err := repo.ListByWorker(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, marks, 2)
	assert.Equal(t, in.ID, marks[0].ID)
	assert.Equal(t, time.UTC, marks[0].ServerTimestamp.Location())

	between, err := repo.ListBetween(ctx, "w1", start.Add(time.Hour), start.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, between, 1)
	assert.Equal(t, out.ID, between[0].ID)

	workers, err := repo.WorkersWithMarks(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, workers)
}

func TestMarkRepository_RejectsForkAsConflict(t *testing.T) {
	setupTestData(t)
	ctx := context.Background()
	repo := postgresql.NewMarkRepository(testDB)

	start := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	genesis := testMark(t, mark.EventIn, start, nil, "g")
	require.NoError(t, repo.Insert(ctx, genesis))
	require.NoError(t, repo.Insert(ctx, testMark(t, mark.EventOut, start.Add(time.Hour), &genesis.HashSelf, "x")))

	err := repo.Insert(ctx, testMark(t, mark.EventOut, start.Add(2*time.Hour), &genesis.HashSelf, "y"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrConflict))
}

func TestMarkRepository_AppendOnly(t *testing.T) {
	setupTestData(t)
	ctx := context.Background()
	repo := postgresql.NewMarkRepository(testDB)

	m := testMark(t, mark.EventIn, time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC), nil, "only")
	require.NoError(t, repo.Insert(ctx, m))

	_, err := testDB.Exec(ctx, `UPDATE marks SET device_id = 'tampered' WHERE id = $1`, m.ID)
	assert.ErrorContains(t, err, "append-only")

	_, err = testDB.Exec(ctx, `DELETE FROM marks WHERE id = $1`, m.ID)
	assert.ErrorContains(t, err, "append-only")
}

func TestMarkRepository_LockChainNeedsTransaction(t *testing.T) {
	setupTestData(t)
	ctx := context.Background()
	repo := postgresql.NewMarkRepository(testDB)

	assert.Error(t, repo.LockChain(ctx, "w1"))

	err := postgresql.NewTransactor(testDB).WithinTx(ctx, func(ctx context.Context) error {
		return repo.LockChain(ctx, "w1")
	})
	assert.NoError(t, err)
}

func TestMarkRepository_FindByClientRef(t *testing.T) {
	setupTestData(t)
	ctx := context.Background()
	repo := postgresql.NewMarkRepository(testDB)

	ref := "local-1"
	start := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)
	in := testMark(t, mark.EventIn, start, nil, "aaa")
	in.ClientRef = &ref
	require.NoError(t, repo.Insert(ctx, in))

	found, err := repo.FindByClientRef(ctx, "w1", "phone-1", ref)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, in.ID, found.ID)
	require.NotNil(t, found.ClientRef)
	assert.Equal(t, ref, *found.ClientRef)

	missing, err := repo.FindByClientRef(ctx, "w1", "phone-2", ref)
	require.NoError(t, err)
	assert.Nil(t, missing)

	// The same ref from the same device cannot be stored twice.
	dup := testMark(t, mark.EventOut, start.Add(time.Hour), &in.HashSelf, "bbb")
	dup.ClientRef = &ref
	assert.Error(t, repo.Insert(ctx, dup))
}
