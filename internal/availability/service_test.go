package availability

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omninet-app/backend/internal/models"
)

type fakeBlockStore struct {
	blocks map[uuid.UUID]*models.AvailabilityBlock
}

func newFakeBlockStore() *fakeBlockStore {
	return &fakeBlockStore{blocks: make(map[uuid.UUID]*models.AvailabilityBlock)}
}

func (f *fakeBlockStore) Create(_ context.Context, b *models.AvailabilityBlock) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now().UTC()
	cp := *b
	f.blocks[b.ID] = &cp
	return nil
}

func (f *fakeBlockStore) GetByID(_ context.Context, id uuid.UUID) (*models.AvailabilityBlock, error) {
	b, ok := f.blocks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBlockStore) ListByTag(_ context.Context, tagID uuid.UUID) ([]models.AvailabilityBlock, error) {
	var out []models.AvailabilityBlock
	for _, b := range f.blocks {
		if b.TagID == tagID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeBlockStore) Update(_ context.Context, b *models.AvailabilityBlock) error {
	if _, ok := f.blocks[b.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *b
	f.blocks[b.ID] = &cp
	return nil
}

func (f *fakeBlockStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.BlockStatus) error {
	b, ok := f.blocks[id]
	if !ok {
		return pgx.ErrNoRows
	}
	b.Status = status
	return nil
}

func (f *fakeBlockStore) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.blocks, id)
	return nil
}

// Consume mirrors the conditional decrement: only live, unexpired blocks
// with capacity (or no capacity limit) match.
func (f *fakeBlockStore) Consume(_ context.Context, id uuid.UUID) (*models.AvailabilityBlock, error) {
	b, ok := f.blocks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	now := time.Now().UTC()
	if b.Status != models.BlockStatusLive || b.Past(now) {
		return nil, pgx.ErrNoRows
	}
	if b.CapacityRemaining != nil {
		if *b.CapacityRemaining <= 0 {
			return nil, pgx.ErrNoRows
		}
		*b.CapacityRemaining--
	}
	cp := *b
	return &cp, nil
}

type fakeTagStore struct {
	tags map[uuid.UUID]*models.Tag
}

func (f *fakeTagStore) GetByID(_ context.Context, id uuid.UUID) (*models.Tag, error) {
	t, ok := f.tags[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

type recordingEvents struct {
	events []models.Event
}

func (r *recordingEvents) Insert(_ context.Context, e *models.Event) error {
	r.events = append(r.events, *e)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeBlockStore, *fakeTagStore, *recordingEvents, *models.Tag) {
	t.Helper()
	store := newFakeBlockStore()
	tag := &models.Tag{ID: uuid.New(), OwnerID: uuid.New(), Name: "Garden Studio"}
	tags := &fakeTagStore{tags: map[uuid.UUID]*models.Tag{tag.ID: tag}}
	events := &recordingEvents{}
	return NewService(store, tags, events, zap.NewNop()), store, tags, events, tag
}

func intp(v int) *int { return &v }

func TestCreateInitializesRemainingCapacity(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID:         tag.ID,
		Title:         "Evening session",
		CapacityTotal: intp(8),
	})
	require.NoError(t, err)
	require.NotNil(t, b.CapacityRemaining)
	assert.Equal(t, 8, *b.CapacityRemaining)
	assert.Equal(t, models.BlockStatusDraft, b.Status)
	assert.Equal(t, models.BlockVisibilityPublic, b.Visibility)
}

func TestCreateRejectsEndWithoutStart(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	end := time.Now().Add(time.Hour)
	_, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID: tag.ID,
		Title: "Broken window",
		EndAt: &end,
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "end_at", verr.Field)
}

func TestCreateRequiresOwnership(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{
		TagID: tag.ID,
		Title: "Not mine",
	})
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestDuplicateResetsCapacityAndStatus(t *testing.T) {
	svc, store, _, _, tag := newTestService(t)

	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID:         tag.ID,
		Title:         "Workshop",
		Status:        models.BlockStatusLive,
		CapacityTotal: intp(3),
	})
	require.NoError(t, err)

	// Burn down some capacity on the source.
	_, err = svc.Claim(context.Background(), b.ID)
	require.NoError(t, err)
	_, err = svc.Claim(context.Background(), b.ID)
	require.NoError(t, err)

	cp, err := svc.Duplicate(context.Background(), tag.OwnerID, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, b.ID, cp.ID)
	assert.Equal(t, models.BlockStatusDraft, cp.Status)
	require.NotNil(t, cp.CapacityRemaining)
	assert.Equal(t, 3, *cp.CapacityRemaining)

	src, err := store.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *src.CapacityRemaining)
}

func TestClaimDecrementsUntilExhausted(t *testing.T) {
	svc, _, _, events, tag := newTestService(t)

	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID:         tag.ID,
		Title:         "Two seats",
		Status:        models.BlockStatusLive,
		CapacityTotal: intp(2),
	})
	require.NoError(t, err)

	got, err := svc.Claim(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *got.CapacityRemaining)

	got, err = svc.Claim(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, *got.CapacityRemaining)

	_, err = svc.Claim(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	require.Len(t, events.events, 2)
	assert.Equal(t, models.EventKindBlockClaimed, events.events[0].Kind)
	require.NotNil(t, events.events[0].TagID)
	assert.Equal(t, tag.ID, *events.events[0].TagID)
}

func TestClaimUnknownBlockIsNotFound(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Claim(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestClaimUnlimitedBlockNeverExhausts(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID:  tag.ID,
		Title:  "Open door",
		Status: models.BlockStatusLive,
	})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		got, err := svc.Claim(context.Background(), b.ID)
		require.NoError(t, err)
		assert.Nil(t, got.CapacityRemaining)
	}
}

func TestListForTagPublicExcludesDraftsAndPast(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, tag.OwnerID, CreateInput{TagID: tag.ID, Title: "draft one"})
	require.NoError(t, err)

	start := time.Now().Add(-2 * time.Hour)
	end := time.Now().Add(-time.Hour)
	_, err = svc.Create(ctx, tag.OwnerID, CreateInput{
		TagID: tag.ID, Title: "over", Status: models.BlockStatusLive,
		StartAt: &start, EndAt: &end,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, tag.OwnerID, CreateInput{
		TagID: tag.ID, Title: "standing offer", Status: models.BlockStatusLive,
	})
	require.NoError(t, err)

	public, err := svc.ListForTag(ctx, tag.ID, false, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, []string{"standing offer"}, titles(public.Always))
	assert.Empty(t, public.Upcoming)
	assert.Empty(t, public.Past)

	owner, err := svc.ListForTag(ctx, tag.ID, true, time.Now().UTC())
	require.NoError(t, err)
	assert.Len(t, owner.Always, 2)
	assert.Equal(t, []string{"over"}, titles(owner.Past))
}

func TestSetStatusSoldOutIgnoresCapacity(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID: tag.ID, Title: "Hand brake", Status: models.BlockStatusLive,
		CapacityTotal: intp(10),
	})
	require.NoError(t, err)

	got, err := svc.SetStatus(context.Background(), tag.OwnerID, b.ID, models.BlockStatusSoldOut)
	require.NoError(t, err)
	assert.Equal(t, models.BlockStatusSoldOut, got.Status)

	// A manually sold-out block cannot be claimed even with capacity left.
	_, err = svc.Claim(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestUpdateRejectsRemovingStartWithEndPresent(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	start := time.Now().Add(time.Hour)
	end := time.Now().Add(2 * time.Hour)
	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID: tag.ID, Title: "Windowed", StartAt: &start, EndAt: &end,
	})
	require.NoError(t, err)

	newEnd := end.Add(time.Hour)
	got, err := svc.Update(context.Background(), tag.OwnerID, b.ID, UpdateInput{EndAt: &newEnd})
	require.NoError(t, err)
	assert.True(t, got.EndAt.Equal(newEnd))

	cleared, err := svc.Update(context.Background(), tag.OwnerID, b.ID, UpdateInput{ClearWindow: true})
	require.NoError(t, err)
	assert.True(t, cleared.AlwaysAvailable())
}

func TestUpdateCapacityPreservesConsumedUnits(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{
		TagID: tag.ID, Title: "Workbench", Status: models.BlockStatusLive,
		CapacityTotal: intp(5),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.Claim(context.Background(), b.ID)
		require.NoError(t, err)
	}

	// Raising the total keeps the three consumed units.
	raised, err := svc.Update(context.Background(), tag.OwnerID, b.ID, UpdateInput{CapacityTotal: intp(10)})
	require.NoError(t, err)
	require.NotNil(t, raised.CapacityRemaining)
	assert.Equal(t, 10, *raised.CapacityTotal)
	assert.Equal(t, 7, *raised.CapacityRemaining)

	// Lowering below the consumed count clamps remaining at zero.
	lowered, err := svc.Update(context.Background(), tag.OwnerID, b.ID, UpdateInput{CapacityTotal: intp(2)})
	require.NoError(t, err)
	require.NotNil(t, lowered.CapacityRemaining)
	assert.Equal(t, 0, *lowered.CapacityRemaining)
	_, err = svc.Claim(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrUnavailable)

	cleared, err := svc.Update(context.Background(), tag.OwnerID, b.ID, UpdateInput{ClearCapacity: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.CapacityTotal)
	assert.Nil(t, cleared.CapacityRemaining)
}

func TestUpdateRejectsNegativeCapacity(t *testing.T) {
	svc, _, _, _, tag := newTestService(t)

	b, err := svc.Create(context.Background(), tag.OwnerID, CreateInput{TagID: tag.ID, Title: "Workbench"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), tag.OwnerID, b.ID, UpdateInput{CapacityTotal: intp(-1)})
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, "capacity_total", ve.Field)
}
