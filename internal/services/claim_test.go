package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/campusfind/apiserver/internal/notify"
	"github.com/campusfind/apiserver/internal/store"
	"github.com/campusfind/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeItemRepo reproduces the store's conditional-claim semantics in memory:
// the check and the write happen under one lock, as the single UPDATE
// statement does in Postgres.
type fakeItemRepo struct {
	mu    sync.Mutex
	items map[int]*types.Item
}

func newFakeItemRepo(items ...types.Item) *fakeItemRepo {
	repo := &fakeItemRepo{items: make(map[int]*types.Item)}
	for i := range items {
		item := items[i]
		repo.items[item.ID] = &item
	}
	return repo
}

func (r *fakeItemRepo) List(ctx context.Context) ([]types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *fakeItemRepo) Get(ctx context.Context, id int) (types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	return *item, nil
}

func (r *fakeItemRepo) Create(ctx context.Context, item types.Item) (types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = len(r.items) + 1
	r.items[item.ID] = &item
	return item, nil
}

func (r *fakeItemRepo) Update(ctx context.Context, item types.Item) (types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return types.Item{}, store.ErrNotFound
	}
	r.items[item.ID] = &item
	return item, nil
}

func (r *fakeItemRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeItemRepo) TryClaim(ctx context.Context, itemID, claimantID int) (types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	if item.Claimed {
		return types.Item{}, store.ErrAlreadyClaimed
	}
	id := claimantID
	item.Claimed = true
	item.ClaimedBy = &id
	return *item, nil
}

type fakeUserRepo struct {
	users map[int]types.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	user.ID = len(r.users) + 1
	r.users[user.ID] = user
	return user, nil
}

func (r *fakeUserRepo) AttachGoogleIdentity(ctx context.Context, userID int, subject, picture string) error {
	user, ok := r.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.GoogleSubject = subject
	if picture != "" {
		user.Picture = picture
	}
	r.users[userID] = user
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	notices []notify.ClaimNotice
	err     error
}

func (p *recordingPublisher) PublishClaimNotice(ctx context.Context, notice notify.ClaimNotice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.notices = append(p.notices, notice)
	return nil
}

func unclaimedItem(id int) types.Item {
	return types.Item{
		ID:           id,
		UserID:       1,
		Disposition:  types.DispositionFound,
		Name:         "Black umbrella",
		Category:     "Accessories",
		ContactName:  "Reporter",
		ContactEmail: "reporter@x.com",
	}
}

func testUsers(n int) map[int]types.User {
	users := make(map[int]types.User, n)
	for i := 1; i <= n; i++ {
		users[i] = types.User{ID: i, Name: "user", Email: "u@x.com", AuthMethod: types.AuthMethodPassword}
	}
	return users
}

func TestClaim_Success(t *testing.T) {
	t.Parallel()

	items := newFakeItemRepo(unclaimedItem(1))
	publisher := &recordingPublisher{}
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(2)}, publisher, nil)

	result, err := svc.Claim(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.True(t, result.NotificationQueued)
	assert.True(t, result.Item.Claimed)
	require.NotNil(t, result.Item.ClaimedBy)
	assert.Equal(t, 2, *result.Item.ClaimedBy)

	require.Len(t, publisher.notices, 1)
	assert.Equal(t, "reporter@x.com", publisher.notices[0].ContactEmail)
	assert.Equal(t, 1, publisher.notices[0].ItemID)
}

func TestClaim_AtMostOneClaimant(t *testing.T) {
	t.Parallel()

	const claimants = 8

	items := newFakeItemRepo(unclaimedItem(1))
	publisher := &recordingPublisher{}
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(claimants)}, publisher, nil)

	var wg sync.WaitGroup
	winners := make(chan int, claimants)
	losses := make(chan error, claimants)

	for userID := 1; userID <= claimants; userID++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			if _, err := svc.Claim(context.Background(), 1, userID); err != nil {
				losses <- err
				return
			}
			winners <- userID
		}(userID)
	}
	wg.Wait()
	close(winners)
	close(losses)

	require.Len(t, winners, 1, "exactly one claim must win")
	require.Len(t, losses, claimants-1)
	for err := range losses {
		assert.ErrorIs(t, err, store.ErrAlreadyClaimed)
	}

	winner := <-winners
	final, err := items.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, final.ClaimedBy)
	assert.Equal(t, winner, *final.ClaimedBy)
	assert.Len(t, publisher.notices, 1)
}

func TestClaim_WriteOnce(t *testing.T) {
	t.Parallel()

	items := newFakeItemRepo(unclaimedItem(1))
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(3)}, &recordingPublisher{}, nil)

	_, err := svc.Claim(context.Background(), 1, 2)
	require.NoError(t, err)

	// Neither a different user nor the original claimant can claim again.
	_, err = svc.Claim(context.Background(), 1, 3)
	assert.ErrorIs(t, err, store.ErrAlreadyClaimed)
	_, err = svc.Claim(context.Background(), 1, 2)
	assert.ErrorIs(t, err, store.ErrAlreadyClaimed)

	final, err := items.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, final.ClaimedBy)
	assert.Equal(t, 2, *final.ClaimedBy)
}

func TestClaim_ClaimedCoupledToClaimant(t *testing.T) {
	t.Parallel()

	items := newFakeItemRepo(unclaimedItem(1), unclaimedItem(2))
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(2)}, &recordingPublisher{}, nil)

	_, err := svc.Claim(context.Background(), 1, 2)
	require.NoError(t, err)

	all, err := items.List(context.Background())
	require.NoError(t, err)
	for _, item := range all {
		assert.Equal(t, item.Claimed, item.ClaimedBy != nil,
			"claimed flag and claimant must agree for item %d", item.ID)
	}
}

func TestClaim_NotificationFailureDoesNotRevertClaim(t *testing.T) {
	t.Parallel()

	items := newFakeItemRepo(unclaimedItem(1))
	publisher := &recordingPublisher{err: errors.New("transport down")}
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(2)}, publisher, nil)

	result, err := svc.Claim(context.Background(), 1, 2)
	require.NoError(t, err, "publish failure must not fail the claim")
	assert.False(t, result.NotificationQueued)

	final, err := items.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, final.Claimed)
	require.NotNil(t, final.ClaimedBy)
	assert.Equal(t, 2, *final.ClaimedBy)
}

func TestClaim_SelfClaimAllowed(t *testing.T) {
	t.Parallel()

	item := unclaimedItem(1)
	item.UserID = 2
	items := newFakeItemRepo(item)
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(2)}, &recordingPublisher{}, nil)

	result, err := svc.Claim(context.Background(), 1, 2)
	require.NoError(t, err)
	require.NotNil(t, result.Item.ClaimedBy)
	assert.Equal(t, 2, *result.Item.ClaimedBy)
}

func TestClaim_UnknownUser(t *testing.T) {
	t.Parallel()

	items := newFakeItemRepo(unclaimedItem(1))
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(1)}, &recordingPublisher{}, nil)

	_, err := svc.Claim(context.Background(), 1, 99)
	assert.ErrorIs(t, err, ErrUnknownUser)

	final, err := items.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, final.Claimed)
}

func TestClaim_ItemNotFound(t *testing.T) {
	t.Parallel()

	items := newFakeItemRepo()
	svc := NewClaimService(items, &fakeUserRepo{users: testUsers(1)}, &recordingPublisher{}, nil)

	_, err := svc.Claim(context.Background(), 404, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
