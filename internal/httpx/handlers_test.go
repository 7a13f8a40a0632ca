package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrifirman/go-print-assets/internal/assets"
	"github.com/andrifirman/go-print-assets/internal/blob"
	"github.com/andrifirman/go-print-assets/internal/drafts"
	"github.com/andrifirman/go-print-assets/internal/favorites"
	"github.com/andrifirman/go-print-assets/internal/fetch"
	"github.com/andrifirman/go-print-assets/internal/redisx"
	"github.com/andrifirman/go-print-assets/internal/tierstore"
)

type testEnv struct {
	api      *httptest.Server
	upstream *httptest.Server
	registry *drafts.Registry
	blobs    *blob.Memory
	clock    *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("generated-design"))
	}))
	t.Cleanup(upstream.Close)

	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	registry := drafts.New(time.Hour, time.Minute, drafts.WithClock(clock.Now))

	fetcher := fetch.New(2 * time.Second)
	blobs := blob.NewMemory()
	tiers := tierstore.New(blobs, fetcher, slog.Default())
	favSvc := favorites.NewService(favorites.NewMemoryStore(), tiers, slog.Default())

	// per-call redis errors are swallowed by the handlers, so a dead client
	// exercises the DB-is-truth path
	rdb := redisx.New("127.0.0.1:1")

	router := NewRouter()
	(&DraftsHandler{Registry: registry, Fetcher: fetcher}).Register(router)
	(&FavoritesHandler{Service: favSvc, Redis: rdb}).Register(router)

	api := httptest.NewServer(router)
	t.Cleanup(api.Close)

	return &testEnv{api: api, upstream: upstream, registry: registry, blobs: blobs, clock: clock}
}

func (e *testEnv) registerDraft(t *testing.T, isPublic bool) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"source_reference": e.upstream.URL + "/a.png",
		"is_public":        isPublic,
	})
	resp, err := http.Post(e.api.URL+"/drafts", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out struct {
		HandleID string `json:"handle_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.HandleID)
	return out.HandleID
}

func TestDrafts_PublicResolveRedirects(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerDraft(t, true)

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
	resp, err := client.Get(env.api.URL + "/drafts/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, env.upstream.URL+"/a.png", resp.Header.Get("Location"))
}

func TestDrafts_PrivateResolveStreams(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerDraft(t, false)

	resp, err := http.Get(env.api.URL + "/drafts/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "generated-design", string(b))
}

func TestDrafts_ExpiredResolveIs404(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerDraft(t, false)

	env.clock.Advance(2 * time.Hour)

	resp, err := http.Get(env.api.URL + "/drafts/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&out)
	assert.Contains(t, out["error"], "regenerate")
}

func TestDrafts_ProxyStreamsRawReference(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.api.URL + "/drafts/proxy?src=" + url.QueryEscape(env.upstream.URL+"/a.png"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "generated-design", string(b))
}

func TestDrafts_ProxyGoneSourceIs404(t *testing.T) {
	env := newTestEnv(t)

	gone := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(gone.Close)

	resp, err := http.Get(env.api.URL + "/drafts/proxy?src=" + url.QueryEscape(gone.URL+"/old.png"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDrafts_ProxyRequiresSrc(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.api.URL + "/drafts/proxy")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFavorites_RequireUser(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.api.URL + "/favorites")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func (e *testEnv) saveFavorite(t *testing.T, user, source string) (*http.Response, saveFavoriteResp) {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"name": "fav", "source_reference": source})
	req, _ := http.NewRequest(http.MethodPost, e.api.URL+"/favorites", bytes.NewReader(body))
	req.Header.Set("X-User-ID", user)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	var out saveFavoriteResp
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	resp.Body.Close()
	return resp, out
}

func TestFavorites_SaveListDelete(t *testing.T) {
	env := newTestEnv(t)

	resp, saved := env.saveFavorite(t, "u1", env.upstream.URL+"/a.png")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.False(t, saved.AlreadySaved)

	resp, again := env.saveFavorite(t, "u1", env.upstream.URL+"/a.png")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, again.AlreadySaved)
	assert.Equal(t, saved.Asset.ID, again.Asset.ID)

	// another user cannot delete it
	req, _ := http.NewRequest(http.MethodDelete, env.api.URL+"/favorites/"+saved.Asset.ID, nil)
	req.Header.Set("X-User-ID", "intruder")
	dresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	dresp.Body.Close()
	assert.Equal(t, http.StatusForbidden, dresp.StatusCode)

	// the owner can
	req, _ = http.NewRequest(http.MethodDelete, env.api.URL+"/favorites/"+saved.Asset.ID, nil)
	req.Header.Set("X-User-ID", "u1")
	dresp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	dresp.Body.Close()
	assert.Equal(t, http.StatusNoContent, dresp.StatusCode)
}

// Full pipeline front half: a private draft is registered, resolved, and two
// concurrent saves of the resolved reference race; one record and one copy
// survive.
func TestEndToEnd_DraftToFavoriteRace(t *testing.T) {
	env := newTestEnv(t)
	id := env.registerDraft(t, false)

	handle, err := env.registry.Resolve(id)
	require.NoError(t, err)
	require.Equal(t, assets.VisibilityPrivate, handle.Visibility)

	var wg sync.WaitGroup
	outs := make([]saveFavoriteResp, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, outs[i] = env.saveFavorite(t, "u1", handle.Source.Key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, outs[0].Asset.ID, outs[1].Asset.ID)
	assert.NotEqual(t, outs[0].AlreadySaved, outs[1].AlreadySaved,
		"exactly one caller created, the other observed already_saved")
	assert.Equal(t, 1, env.blobs.Len(), "exactly one copy in the saved tier")

	// the draft evicting afterwards does not touch the saved copy
	env.clock.Advance(2 * time.Hour)
	_, err = env.registry.Resolve(id)
	assert.Error(t, err)
	assert.Equal(t, 1, env.blobs.Len())
}
