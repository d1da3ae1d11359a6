package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/campusfind/apiserver/internal/auth"
	"github.com/campusfind/apiserver/internal/notify"
	"github.com/campusfind/apiserver/internal/services"
	"github.com/campusfind/apiserver/internal/storage"
	"github.com/campusfind/apiserver/internal/store"
	"github.com/campusfind/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memItemRepo struct {
	mu     sync.Mutex
	items  map[int]*types.Item
	nextID int
}

func newMemItemRepo() *memItemRepo {
	return &memItemRepo{items: make(map[int]*types.Item), nextID: 1}
}

func (r *memItemRepo) List(ctx context.Context) ([]types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Item, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, *item)
	}
	return out, nil
}

func (r *memItemRepo) Get(ctx context.Context, id int) (types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	return *item, nil
}

func (r *memItemRepo) Create(ctx context.Context, item types.Item) (types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item.ID = r.nextID
	r.nextID++
	r.items[item.ID] = &item
	return item, nil
}

func (r *memItemRepo) Update(ctx context.Context, item types.Item) (types.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[item.ID]
	if !ok {
		return types.Item{}, store.ErrNotFound
	}
	item.Claimed = existing.Claimed
	item.ClaimedBy = existing.ClaimedBy
	r.items[item.ID] = &item
	return item, nil
}

func (r *memItemRepo) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memItemRepo) TryClaim(ctx context.Context, itemID, claimantID int) (types.Item, error) {
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

type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (s *memObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (s *memObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjectStorage) PublicURL(key string) string {
	return "http://storage.test/images/" + key
}

func (s *memObjectStorage) Bucket() string { return "images" }

type noopPublisher struct{}

func (noopPublisher) PublishClaimNotice(ctx context.Context, notice notify.ClaimNotice) error {
	return nil
}

type itemTestEnv struct {
	router *chi.Mux
	tokens *auth.TokenIssuer
	items  *memItemRepo
	users  *memUserRepo
}

func newItemTestEnv(t *testing.T) itemTestEnv {
	t.Helper()

	tokens := auth.NewTokenIssuer("test-secret", time.Hour)
	users := newMemUserRepo()
	items := newMemItemRepo()

	userService := services.NewUserService(users, nil)
	itemService := services.NewItemService(items)
	claimService := services.NewClaimService(items, users, noopPublisher{}, nil)

	authHandler := NewAuthHandler(userService, tokens, false, nil)
	itemHandler := NewItemHandler(itemService, claimService, storage.NewStorage(newMemObjectStorage()), nil)

	router := chi.NewRouter()
	router.Route("/items", func(r chi.Router) {
		ItemRouter(r, itemHandler, authHandler.RequireSession)
	})

	return itemTestEnv{router: router, tokens: tokens, items: items, users: users}
}

func (env itemTestEnv) addUser(t *testing.T, name, email string) types.User {
	t.Helper()
	user, err := env.users.Create(context.Background(), types.User{
		Name: name, Email: email, AuthMethod: types.AuthMethodPassword, PasswordHash: "x",
	})
	require.NoError(t, err)
	return user
}

func (env itemTestEnv) sessionCookie(t *testing.T, userID int) *http.Cookie {
	t.Helper()
	token, err := env.tokens.Issue(userID)
	require.NoError(t, err)
	return &http.Cookie{Name: sessionCookieName, Value: token}
}

func (env itemTestEnv) do(t *testing.T, method, path string, body io.Reader, contentType string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func itemForm(t *testing.T, withImage bool) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := map[string]string{
		"disposition":   "Found",
		"name":          "Black umbrella",
		"category":      "Accessories",
		"description":   "Left by the main entrance",
		"location":      "Engineering building",
		"occurred_on":   "2026-03-14",
		"contact_name":  "Rick Reporter",
		"contact_email": "rick@x.com",
		"contact_phone": "555-0101",
		"department":    "Engineering",
	}
	for field, value := range fields {
		require.NoError(t, writer.WriteField(field, value))
	}

	if withImage {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="image"; filename="umbrella.jpg"`)
		header.Set("Content-Type", "image/jpeg")
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("fake-jpeg-bytes"))
		require.NoError(t, err)
	}

	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestItems_RequireSession(t *testing.T) {
	t.Parallel()

	env := newItemTestEnv(t)

	rec := env.do(t, http.MethodGet, "/items/", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPatch, "/items/1/claim", nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateItem_WithImage(t *testing.T) {
	t.Parallel()

	env := newItemTestEnv(t)
	reporter := env.addUser(t, "Rick", "rick@x.com")

	body, contentType := itemForm(t, true)
	rec := env.do(t, http.MethodPost, "/items/", body, contentType, env.sessionCookie(t, reporter.ID))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)

	created, err := env.items.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, reporter.ID, created.UserID)
	assert.False(t, created.Claimed)
	assert.NotEmpty(t, created.Image.URL)
	assert.NotEmpty(t, created.Image.ObjectKey)
}

func TestCreateItem_MissingImage(t *testing.T) {
	t.Parallel()

	env := newItemTestEnv(t)
	reporter := env.addUser(t, "Rick", "rick@x.com")

	body, contentType := itemForm(t, false)
	rec := env.do(t, http.MethodPost, "/items/", body, contentType, env.sessionCookie(t, reporter.ID))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	assert.Contains(t, resp.Errors, "please upload an image")
}

func TestClaimItem_Success(t *testing.T) {
	t.Parallel()

	env := newItemTestEnv(t)
	reporter := env.addUser(t, "Rick", "rick@x.com")
	claimant := env.addUser(t, "Carol", "carol@x.com")

	_, err := env.items.Create(context.Background(), types.Item{
		UserID: reporter.ID, Disposition: "Found", Name: "Black umbrella",
		ContactName: "Rick", ContactEmail: "rick@x.com",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPatch, "/items/1/claim", nil, "", env.sessionCookie(t, claimant.ID))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Warning)

	item, err := env.items.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, item.Claimed)
	require.NotNil(t, item.ClaimedBy)
	assert.Equal(t, claimant.ID, *item.ClaimedBy)
}

func TestClaimItem_AlreadyClaimedConflict(t *testing.T) {
	t.Parallel()

	env := newItemTestEnv(t)
	reporter := env.addUser(t, "Rick", "rick@x.com")
	first := env.addUser(t, "Carol", "carol@x.com")
	second := env.addUser(t, "Dave", "dave@x.com")

	_, err := env.items.Create(context.Background(), types.Item{
		UserID: reporter.ID, Disposition: "Lost", Name: "Phone",
		ContactName: "Rick", ContactEmail: "rick@x.com",
	})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPatch, "/items/1/claim", nil, "", env.sessionCookie(t, first.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	// A retry by anyone, including the winner, hits the same terminal state.
	for _, userID := range []int{second.ID, first.ID} {
		rec = env.do(t, http.MethodPatch, "/items/1/claim", nil, "", env.sessionCookie(t, userID))
		assert.Equal(t, http.StatusConflict, rec.Code)
	}

	item, err := env.items.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, item.ClaimedBy)
	assert.Equal(t, first.ID, *item.ClaimedBy)
}

func TestClaimItem_NotFound(t *testing.T) {
	t.Parallel()

	env := newItemTestEnv(t)
	claimant := env.addUser(t, "Carol", "carol@x.com")

	rec := env.do(t, http.MethodPatch, "/items/404/claim", nil, "", env.sessionCookie(t, claimant.ID))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClaimItem_UnknownUser(t *testing.T) {
	t.Parallel()

	env := newItemTestEnv(t)
	reporter := env.addUser(t, "Rick", "rick@x.com")

	_, err := env.items.Create(context.Background(), types.Item{
		UserID: reporter.ID, Disposition: "Found", Name: "Keys",
		ContactName: "Rick", ContactEmail: "rick@x.com",
	})
	require.NoError(t, err)

	// Valid token for an account that no longer exists.
	rec := env.do(t, http.MethodPatch, "/items/1/claim", nil, "", env.sessionCookie(t, 999))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
