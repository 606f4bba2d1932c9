package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/painting-generator/internal/config"
	"github.com/jonathan/painting-generator/internal/db/sqlstore"
	"github.com/jonathan/painting-generator/internal/eventbus"
	"github.com/jonathan/painting-generator/internal/fetch"
	"github.com/jonathan/painting-generator/internal/imagegen"
	"github.com/jonathan/painting-generator/internal/orchestrator"
	"github.com/jonathan/painting-generator/internal/server/ratelimit"
	"github.com/jonathan/painting-generator/internal/types"
)

const testSecret = "test-secret-that-is-at-least-32-bytes-long"

var pngDataURL = imagegen.EncodeDataURL("image/png", []byte{0x89, 'P', 'N', 'G', 1, 2, 3})

type stubIdeas struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubIdeas) GenerateIdea(_ context.Context, req orchestrator.IdeaRequest) (*orchestrator.GeneratedIdea, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.calls++
	summary := fmt.Sprintf("%s, study %d", req.Title.Title, s.calls)
	return &orchestrator.GeneratedIdea{Summary: summary, FullPrompt: "Paint " + summary}, nil
}

type stubImages struct {
	release chan struct{}
}

func (s *stubImages) GenerateImage(ctx context.Context, req orchestrator.ImageRequest) (*orchestrator.ImageResult, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	used := make([]uuid.UUID, 0, len(req.References))
	for _, ref := range req.References {
		used = append(used, ref.ID)
	}
	return &orchestrator.ImageResult{
		ImageURL:         fmt.Sprintf("/uploads/%s/%s.png", req.TitleID, req.IdeaID),
		UsedReferenceIDs: used,
	}, nil
}

type testEnv struct {
	server *Server
	store  *sqlstore.Store
	orch   *orchestrator.Orchestrator
	bus    *eventbus.Bus
	ideas  *stubIdeas
	images *stubImages
}

type envOption func(*Deps)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, sqlstore.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })

	env := &testEnv{
		store:  store,
		bus:    eventbus.New(zap.NewNop()),
		ideas:  &stubIdeas{},
		images: &stubImages{},
	}
	env.orch = orchestrator.New(store, env.ideas, env.images, env.bus,
		orchestrator.Config{Concurrency: 2, DefaultQuantity: 2, MaxQuantity: 5}, zap.NewNop())

	deps := Deps{
		Store:     store,
		Generator: env.orch,
		Events:    env.bus,
		JWT:       &config.JWTConfig{Secret: testSecret, ExpirationHours: 1},
		Password:  &config.PasswordConfig{BcryptCost: bcrypt.MinCost},
		Public:    PublicConfig{ImageProvider: "gemini", DefaultQuantity: 2, MaxQuantity: 5, MaxReferences: 4},
		Logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	env.server, err = New(":0", deps)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.orch.Wait(ctx)
		_ = env.server.Shutdown(ctx)
	})
	return env
}

// user creates an account directly in the store and returns its id and a token.
func (e *testEnv) user(t *testing.T, name string) (uuid.UUID, string) {
	t.Helper()
	hash, err := (&config.PasswordConfig{BcryptCost: bcrypt.MinCost}).HashPassword("password123")
	require.NoError(t, err)
	u, err := e.store.CreateUser(context.Background(), name, name+"@example.com", hash)
	require.NoError(t, err)
	token, err := e.server.jwtService.GenerateToken(u.ID)
	require.NoError(t, err)
	return u.ID, token
}

func (e *testEnv) title(t *testing.T, userID uuid.UUID, text, instructions string) *types.Title {
	t.Helper()
	title := &types.Title{UserID: userID, Title: text, Instructions: instructions}
	require.NoError(t, e.store.CreateTitle(context.Background(), title))
	return title
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.orch.Wait(ctx))
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(":0", Deps{})
	assert.Error(t, err)

	env := newTestEnv(t)
	_, err = New(":0", Deps{
		Store:     env.store,
		Generator: env.orch,
		Events:    env.bus,
		JWT:       &config.JWTConfig{Secret: "short", ExpirationHours: 1},
		Password:  &config.PasswordConfig{BcryptCost: 10},
	})
	assert.Error(t, err)
}

func TestHealthAndConfig(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/config", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"imageProvider":"gemini","defaultQuantity":2,"maxQuantity":5,"maxReferences":4}`, rec.Body.String())
}

func TestHealth_StoreDown(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodOptions, "/api/titles", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/titles"},
		{http.MethodPost, "/api/titles"},
		{http.MethodPost, "/api/references"},
		{http.MethodGet, "/api/references/global"},
		{http.MethodPost, "/api/paintings/generate"},
		{http.MethodGet, "/api/paintings/title/" + uuid.NewString()},
		{http.MethodGet, "/api/events/" + uuid.NewString()},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			rec := env.do(t, route.method, route.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
		})
	}

	rec := env.do(t, http.MethodGet, "/api/titles", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "monet", "email": "Monet@Example.com", "password": "waterlilies",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decodeBody[struct {
		User types.User `json:"user"`
	}](t, rec)
	assert.Equal(t, "monet", registered.User.Username)
	assert.Equal(t, "monet@example.com", registered.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "monet", "email": "other@example.com", "password": "waterlilies",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "renoir", "email": "monet@example.com", "password": "waterlilies",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "degas", "email": "degas@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "monet", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "nobody", "password": "waterlilies"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "monet", "password": "waterlilies"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[types.LoginResponse](t, rec)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, registered.User.ID, login.User.ID)

	rec = env.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[types.User](t, rec)
	assert.Equal(t, "monet", me.Username)
}

func TestAuth_InvalidBody(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTitlesCRUD(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.user(t, "monet")
	_, otherToken := env.user(t, "renoir")

	rec := env.do(t, http.MethodPost, "/api/titles", token, map[string]string{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/titles", token, map[string]string{
		"title": "Water Lilies", "instructions": "soft morning light",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[types.Title](t, rec)
	assert.Equal(t, "Water Lilies", created.Title)
	path := "/api/titles/" + created.ID.String()

	rec = env.do(t, http.MethodGet, "/api/titles", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]types.Title](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/api/titles", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]types.Title](t, rec))

	rec = env.do(t, http.MethodGet, path, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, path, token, map[string]string{"title": "Haystacks", "instructions": "winter"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Haystacks", decodeBody[types.Title](t, rec).Title)

	rec = env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[types.Title](t, rec)
	assert.Equal(t, "Haystacks", got.Title)
	assert.Equal(t, "winter", got.Instructions)

	rec = env.do(t, http.MethodDelete, path, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, path, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/titles/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReferences(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")
	_, otherToken := env.user(t, "renoir")
	title := env.title(t, userID, "Water Lilies", "")

	rec := env.do(t, http.MethodPost, "/api/references", token, map[string]any{
		"titleId": title.ID, "imageData": "not a data url",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/references", token, map[string]any{"imageData": pngDataURL})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "titled reference without titleId")

	rec = env.do(t, http.MethodPost, "/api/references", otherToken, map[string]any{
		"titleId": title.ID, "imageData": pngDataURL,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/references", token, map[string]any{
		"titleId": title.ID, "imageData": pngDataURL,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	titled := decodeBody[types.ReferenceImage](t, rec)
	require.NotNil(t, titled.TitleID)
	assert.Equal(t, title.ID, *titled.TitleID)

	rec = env.do(t, http.MethodPost, "/api/references", token, map[string]any{
		"titleId": title.ID, "imageData": pngDataURL, "isGlobal": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	global := decodeBody[types.ReferenceImage](t, rec)
	assert.Nil(t, global.TitleID)
	assert.True(t, global.IsGlobal)

	rec = env.do(t, http.MethodGet, "/api/references/title/"+title.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	byTitle := decodeBody[[]types.ReferenceImage](t, rec)
	require.Len(t, byTitle, 1)
	assert.Equal(t, titled.ID, byTitle[0].ID)

	rec = env.do(t, http.MethodGet, "/api/references/global", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	globals := decodeBody[[]types.ReferenceImage](t, rec)
	require.Len(t, globals, 1)
	assert.Equal(t, global.ID, globals[0].ID)

	rec = env.do(t, http.MethodDelete, "/api/references/"+titled.ID.String(), otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/references/"+titled.ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/references/title/"+title.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]types.ReferenceImage](t, rec))
}

func TestImportReference(t *testing.T) {
	var fetched []string
	env := newTestEnv(t, func(d *Deps) {
		d.FetchImage = func(_ context.Context, url string) (*fetch.Image, error) {
			fetched = append(fetched, url)
			if url == "https://example.com/missing" {
				return nil, &fetch.Error{URL: url, Message: "HTTP 404"}
			}
			return &fetch.Image{SourceURL: url, ContentType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}}, nil
		}
	})
	userID, token := env.user(t, "monet")
	title := env.title(t, userID, "Water Lilies", "")

	rec := env.do(t, http.MethodPost, "/api/references/import", token, map[string]any{
		"url": "https://example.com/lilies.jpg", "titleId": title.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ref := decodeBody[types.ReferenceImage](t, rec)
	assert.Equal(t, "data:image/jpeg;base64,/9j/", ref.ImageData)

	rec = env.do(t, http.MethodPost, "/api/references/import", token, map[string]any{
		"url": "https://example.com/missing", "isGlobal": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "HTTP 404")

	rec = env.do(t, http.MethodPost, "/api/references/import", token, map[string]any{
		"url": "not a url", "isGlobal": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, []string{"https://example.com/lilies.jpg", "https://example.com/missing"}, fetched)
}

func TestGenerateAndListPaintings(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")
	title := env.title(t, userID, "Water Lilies", "")

	rec := env.do(t, http.MethodPost, "/api/references", token, map[string]any{
		"imageData": pngDataURL, "isGlobal": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	ref := decodeBody[types.ReferenceImage](t, rec)

	rec = env.do(t, http.MethodGet, "/api/paintings/title/"+title.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paintings":[],"referenceDataMap":{}}`, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/paintings/generate", token, map[string]any{
		"titleId": title.ID.String(), "quantity": 3,
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	generated := decodeBody[GenerateResponse](t, rec)
	assert.Equal(t, title.ID, generated.TitleID)
	require.Len(t, generated.Ideas, 3)
	assert.Equal(t, "Generated 3 painting ideas, image generation in progress", generated.Message)

	env.wait(t)

	rec = env.do(t, http.MethodGet, "/api/paintings/title/"+title.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	type paintingsBody struct {
		Paintings []struct {
			ID            uuid.UUID           `json:"id"`
			IdeaID        uuid.UUID           `json:"idea_id"`
			Status        string              `json:"status"`
			ImageURL      string              `json:"image_url"`
			Summary       string              `json:"summary"`
			PromptDetails types.PromptDetails `json:"promptDetails"`
		} `json:"paintings"`
		ReferenceDataMap map[string]string `json:"referenceDataMap"`
	}
	var body paintingsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Paintings, 3)
	assert.Equal(t, map[string]string{ref.ID.String(): pngDataURL}, body.ReferenceDataMap)

	for _, p := range body.Paintings {
		assert.Equal(t, "completed", p.Status)
		assert.Contains(t, p.ImageURL, "/uploads/"+title.ID.String())
		assert.Equal(t, "Water Lilies", p.PromptDetails.Title)
		assert.Equal(t, "No custom instructions provided", p.PromptDetails.Instructions)
		assert.Equal(t, p.Summary, p.PromptDetails.Summary)
		assert.Equal(t, "Paint "+p.Summary, p.PromptDetails.FullPrompt)
		assert.Equal(t, 1, p.PromptDetails.ReferenceCount)
		assert.Equal(t, []uuid.UUID{ref.ID}, p.PromptDetails.ReferenceImages)
	}

	// A deleted reference drops out of the map and the counts.
	rec = env.do(t, http.MethodDelete, "/api/references/"+ref.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/paintings/title/"+title.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var after paintingsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &after))
	require.Len(t, after.Paintings, 3)
	assert.NotNil(t, after.ReferenceDataMap)
	assert.Empty(t, after.ReferenceDataMap)
	for _, p := range after.Paintings {
		assert.Zero(t, p.PromptDetails.ReferenceCount)
		assert.Empty(t, p.PromptDetails.ReferenceImages)
	}
}

func TestGenerate_DefaultQuantity(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")
	title := env.title(t, userID, "Haystacks", "golden hour")

	rec := env.do(t, http.MethodPost, "/api/paintings/generate", token, map[string]any{"titleId": title.ID.String()})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, decodeBody[GenerateResponse](t, rec).Ideas, 2)
	env.wait(t)
}

func TestGenerate_Errors(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")
	otherID, _ := env.user(t, "renoir")
	title := env.title(t, userID, "Water Lilies", "")
	foreign := env.title(t, otherID, "Dancers", "")

	tests := []struct {
		name   string
		body   map[string]any
		status int
		error  string
	}{
		{"missing title", map[string]any{"quantity": 2}, http.StatusBadRequest, "Title ID is required"},
		{"malformed title", map[string]any{"titleId": "abc"}, http.StatusBadRequest, "Invalid title ID"},
		{"negative quantity", map[string]any{"titleId": title.ID.String(), "quantity": -1}, http.StatusBadRequest, ""},
		{"quantity above max", map[string]any{"titleId": title.ID.String(), "quantity": 6}, http.StatusBadRequest, ""},
		{"unknown title", map[string]any{"titleId": uuid.NewString()}, http.StatusNotFound, "Title not found"},
		{"other user's title", map[string]any{"titleId": foreign.ID.String()}, http.StatusNotFound, "Title not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/paintings/generate", token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.error != "" {
				assert.Equal(t, tt.error, decodeBody[map[string]string](t, rec)["error"])
			}
		})
	}
	assert.Zero(t, env.ideas.calls)
}

func TestGenerate_IdeaFailure(t *testing.T) {
	env := newTestEnv(t)
	userID, token := env.user(t, "monet")
	title := env.title(t, userID, "Water Lilies", "")
	env.ideas.err = errors.New("model unavailable")

	rec := env.do(t, http.MethodPost, "/api/paintings/generate", token, map[string]any{"titleId": title.ID.String()})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to generate paintings"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "model unavailable")
}

func TestGenerate_ActiveJobConflict(t *testing.T) {
	env := newTestEnv(t)
	env.images.release = make(chan struct{})
	userID, token := env.user(t, "monet")
	title := env.title(t, userID, "Water Lilies", "")

	rec := env.do(t, http.MethodPost, "/api/paintings/generate", token, map[string]any{"titleId": title.ID.String(), "quantity": 1})
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/paintings/generate", token, map[string]any{"titleId": title.ID.String(), "quantity": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/paintings/title/"+title.ID.String()+"/progress", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decodeBody[struct {
		Active   bool                   `json:"active"`
		Progress orchestrator.Counters `json:"progress"`
	}](t, rec)
	assert.True(t, progress.Active)
	assert.Equal(t, 1, progress.Progress.Total)

	rec = env.do(t, http.MethodDelete, "/api/titles/"+title.ID.String(), token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(env.images.release)
	env.wait(t)

	rec = env.do(t, http.MethodGet, "/api/paintings/title/"+title.ID.String()+"/progress", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[map[string]any](t, rec)["active"].(bool))

	rec = env.do(t, http.MethodDelete, "/api/titles/"+title.ID.String(), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRateLimit_GenerateTier(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.RateLimit = ratelimit.Config{
			Enabled:         true,
			DefaultRPS:      100,
			DefaultBurst:    100,
			EndpointConfigs: ratelimit.DefaultEndpointConfigs(0.001, 1),
		}
	})
	_, token := env.user(t, "monet")

	rec := env.do(t, http.MethodPost, "/api/paintings/generate", token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = env.do(t, http.MethodPost, "/api/paintings/generate", token, map[string]any{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limit_exceeded", decodeBody[map[string]any](t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/titles", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUploadsRoute(t *testing.T) {
	env := newTestEnv(t, func(d *Deps) {
		d.Uploads = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("image:" + r.URL.Path))
		})
	})

	rec := env.do(t, http.MethodGet, "/uploads/a/b.png", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image:/uploads/a/b.png", rec.Body.String())
}

func TestUsedReferenceIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	details := []types.PaintingDetail{
		{Painting: types.Painting{UsedReferenceIDs: []uuid.UUID{a, b}}},
		{Painting: types.Painting{UsedReferenceIDs: []uuid.UUID{b, uuid.Nil}}},
		{Painting: types.Painting{}},
	}
	assert.Equal(t, []uuid.UUID{a, b}, usedReferenceIDs(details))
	assert.Empty(t, usedReferenceIDs(nil))
}

func TestPaintingView_Defaults(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	view := paintingView(types.PaintingDetail{
		Painting:   types.Painting{UsedReferenceIDs: []uuid.UUID{a, b}},
		Summary:    "lilies",
		FullPrompt: "Paint lilies",
	}, map[uuid.UUID]string{b: pngDataURL})

	assert.Equal(t, "Unknown Title", view.PromptDetails.Title)
	assert.Equal(t, "No custom instructions provided", view.PromptDetails.Instructions)
	assert.Equal(t, 1, view.PromptDetails.ReferenceCount)
	assert.Equal(t, []uuid.UUID{b}, view.PromptDetails.ReferenceImages)
	assert.Equal(t, "Paint lilies", view.PromptDetails.FullPrompt)
}
