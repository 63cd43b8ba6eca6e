package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vbonduro/foodguard/internal/db"
	"github.com/vbonduro/foodguard/internal/domain"
	"github.com/vbonduro/foodguard/internal/foodapi"
	"github.com/vbonduro/foodguard/internal/history"
	"github.com/vbonduro/foodguard/internal/photostore"
	"github.com/vbonduro/foodguard/internal/seal"
	"github.com/vbonduro/foodguard/internal/service"
	"github.com/vbonduro/foodguard/internal/session"
	"github.com/vbonduro/foodguard/internal/store"
	"github.com/vbonduro/foodguard/internal/web"
	"github.com/vbonduro/foodguard/internal/web/templates"
)

// minimalJPEG is 512 bytes with the JPEG magic bytes header followed by zeros.
var minimalJPEG = func() []byte {
	b := make([]byte, 512)
	b[0] = 0xFF
	b[1] = 0xD8
	b[2] = 0xFF
	b[3] = 0xE0
	return b
}()

// fakeAPI stands in for the remote FoodGuard service.
type fakeAPI struct {
	mu            sync.Mutex
	records       []domain.NutritionRecord
	nutritionsErr bool
	loginMessage  string
	registerCalls int
	lastAuth      string
	lastUpload    []byte
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": f.loginMessage})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": "tok-abc"})
	})
	mux.HandleFunc("POST /api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.registerCalls++
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /api/v1/nutritions", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastAuth = r.Header.Get("Authorization")
		if f.nutritionsErr {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(f.records)
	})
	mux.HandleFunc("POST /api/v1/nutritions/predic", func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("picture")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		f.mu.Lock()
		f.lastUpload = data
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"p1","name":"Rendang","calorie":470,"carbohydrates":8,"fats":32,"sugar":5,"protein":38,"createdAt":"1700000000000","score":5,"recommendation":"Pair it with vegetables"}`))
	})
	return mux
}

func (f *fakeAPI) LastAuth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *fakeAPI) LastUpload() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUpload
}

func (f *fakeAPI) Registers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registerCalls
}

// memPhotoStore is a simple in-memory implementation of photostore.PhotoStore.
type memPhotoStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	mimes   map[string]string
	counter int
}

func newMemPhotoStore() *memPhotoStore {
	return &memPhotoStore{data: make(map[string][]byte), mimes: make(map[string]string)}
}

func (m *memPhotoStore) Save(_ context.Context, prefix, mimeType string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	key := fmt.Sprintf("2024-01/%s_%d.jpg", prefix, m.counter)
	m.data[key] = data
	m.mimes[key] = mimeType
	return key, nil
}

func (m *memPhotoStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, "", photostore.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.mimes[key], nil
}

func (m *memPhotoStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type testEnv struct {
	srv     *httptest.Server
	api     *fakeAPI
	session *session.Session
	client  *http.Client
}

// newTestEnv wires a real web.Server to a fake service, in-memory SQLite and
// an in-memory photo library.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	api := &fakeAPI{
		loginMessage: "Invalid email or password",
		records: []domain.NutritionRecord{
			{ID: "n2", Name: "Martabak Manis", Carbohydrates: domain.Float(60), Fats: domain.Float(20), Sugar: domain.Float(18), CreatedAt: "1700000000000", Score: 3, Recommendation: "Share it with friends"},
			{ID: "n1", Name: "Gado-gado", Carbohydrates: domain.Float(25), Fats: domain.Float(12), Sugar: domain.Float(6), CreatedAt: "1699990000000", Score: 8, Recommendation: "Good choice"},
		},
	}
	apiSrv := httptest.NewServer(api.handler(t))
	t.Cleanup(apiSrv.Close)

	database, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sealer, err := seal.New("test-secret")
	require.NoError(t, err)
	sess := session.New(store.NewCredentialStore(database, sealer))
	require.NoError(t, sess.Hydrate(context.Background()))

	client := foodapi.NewClient(apiSrv.URL, 0, sess)
	loc, err := history.LoadLocation("")
	require.NoError(t, err)
	photos := newMemPhotoStore()

	srv := httptest.NewServer(web.NewServer(web.Deps{
		Auth:         service.NewAuthService(client, sess, slog.Default()),
		Scans:        service.NewScanService(store.NewScanStore(database), client, photos, slog.Default()),
		History:      history.New(client, loc),
		Session:      sess,
		Photos:       photos,
		Templates:    templates.FS,
		SugarLimit:   25,
		CookieSecret: "cookie-secret-for-tests-32-bytes",
	}, slog.Default()))
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testEnv{srv: srv, api: api, session: sess, client: &http.Client{Jar: jar}}
}

func (e *testEnv) noFollow() *http.Client {
	return &http.Client{
		Jar: e.client.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	resp, err := e.client.PostForm(e.srv.URL+"/login", url.Values{"email": {"jessy@example.com"}, "password": {"correct"}})
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.True(t, e.session.Authenticated())
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestIntegration_LaunchRoutesToLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.noFollow().Get(env.srv.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp, err = env.noFollow().Get(env.srv.URL + "/history")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestIntegration_UnauthenticatedHTMXGetsHXRedirect(t *testing.T) {
	env := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/history/entries", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err := env.noFollow().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("HX-Redirect"))
}

func TestIntegration_FailedLoginStaysOnLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.noFollow().PostForm(env.srv.URL+"/login", url.Values{"email": {"jessy@example.com"}, "password": {"wrong"}})
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Location"))
	assert.Contains(t, body, "Login Failed")
	assert.Contains(t, body, "Invalid email or password")
	assert.False(t, env.session.Authenticated())
}

func TestIntegration_LoginThenRootRoutesToHistory(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.noFollow().Get(env.srv.URL + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "/history", resp.Header.Get("Location"))
}

func TestIntegration_RegisterMismatchSkipsNetwork(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.PostForm(env.srv.URL+"/register", url.Values{
		"email":            {"jessy@example.com"},
		"username":         {"jessy"},
		"password":         {"one"},
		"confirm_password": {"two"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Contains(t, body, "Passwords do not match.")
	assert.Zero(t, env.api.Registers())
}

func TestIntegration_RegisterFlashesOnLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.client.PostForm(env.srv.URL+"/register", url.Values{
		"email":            {"jessy@example.com"},
		"username":         {"jessy"},
		"password":         {"same"},
		"confirm_password": {"same"},
	})
	require.NoError(t, err)
	body := readBody(t, resp)

	assert.Equal(t, 1, env.api.Registers())
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "Registration successful! Please log in.")

	// The flash is shown once.
	resp, err = env.client.Get(env.srv.URL + "/login")
	require.NoError(t, err)
	assert.NotContains(t, readBody(t, resp), "Registration successful!")
}

var generationAttr = regexp.MustCompile(`/history/entries\?gen=(\d+)`)

func TestIntegration_HistoryPlaceholdersThenEntries(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/history")
	require.NoError(t, err)
	page := readBody(t, resp)

	assert.Equal(t, 5, strings.Count(page, `class="card skeleton"`))
	assert.NotContains(t, page, "Martabak Manis")
	match := generationAttr.FindStringSubmatch(page)
	require.Len(t, match, 2)

	resp, err = env.client.Get(env.srv.URL + "/history/entries?gen=" + match[1])
	require.NoError(t, err)
	fragment := readBody(t, resp)

	assert.Equal(t, "Bearer tok-abc", env.api.LastAuth())
	assert.NotContains(t, fragment, "skeleton")
	assert.Equal(t, 1, strings.Count(fragment, "card highlighted"))
	assert.Contains(t, fragment, "Wed, 15 November • 05:13 am")

	highlighted := strings.Index(fragment, "Martabak Manis")
	remaining := strings.Index(fragment, "Gado-gado")
	require.NotEqual(t, -1, highlighted)
	require.NotEqual(t, -1, remaining)
	assert.Less(t, highlighted, remaining)
}

func TestIntegration_SupersededHistoryFetchFollowsLatestCycle(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/history")
	require.NoError(t, err)
	first := generationAttr.FindStringSubmatch(readBody(t, resp))
	require.Len(t, first, 2)

	resp, err = env.client.Get(env.srv.URL + "/history")
	require.NoError(t, err)
	second := generationAttr.FindStringSubmatch(readBody(t, resp))
	require.Len(t, second, 2)
	require.NotEqual(t, first[1], second[1])

	resp, err = env.client.Get(env.srv.URL + "/history/entries?gen=" + first[1])
	require.NoError(t, err)
	fragment := readBody(t, resp)

	assert.Equal(t, 5, strings.Count(fragment, `class="card skeleton"`))
	assert.Contains(t, fragment, `hx-trigger="load delay:1s"`)
	next := generationAttr.FindStringSubmatch(fragment)
	require.Len(t, next, 2)
	assert.Equal(t, second[1], next[1])

	resp, err = env.client.Get(env.srv.URL + "/history/entries?gen=" + next[1])
	require.NoError(t, err)
	fragment = readBody(t, resp)
	assert.NotContains(t, fragment, "skeleton")
	assert.NotContains(t, fragment, "load delay")
	assert.Contains(t, fragment, "Martabak Manis")
}

func TestIntegration_SummaryDoesNotStallHistoryPage(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/history")
	require.NoError(t, err)
	match := generationAttr.FindStringSubmatch(readBody(t, resp))
	require.Len(t, match, 2)

	resp, err = env.client.Get(env.srv.URL + "/summary")
	require.NoError(t, err)
	_ = readBody(t, resp)

	resp, err = env.client.Get(env.srv.URL + "/history/entries?gen=" + match[1])
	require.NoError(t, err)
	fragment := readBody(t, resp)
	assert.Contains(t, fragment, "Martabak Manis")
	assert.NotContains(t, fragment, "skeleton")
}

func TestIntegration_HistoryFailureKeepsPreviousEntries(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/history/entries")
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "Martabak Manis")

	env.api.mu.Lock()
	env.api.nutritionsErr = true
	env.api.mu.Unlock()

	resp, err = env.client.Get(env.srv.URL + "/history/entries")
	require.NoError(t, err)
	fragment := readBody(t, resp)
	assert.Contains(t, fragment, history.FetchErrorMessage)
	assert.Contains(t, fragment, "Martabak Manis")
}

func TestIntegration_NutritionDetail(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/history/entries")
	require.NoError(t, err)
	_ = readBody(t, resp)

	resp, err = env.client.Get(env.srv.URL + "/nutritions/n1")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Gado-gado")
	assert.Contains(t, body, "Good choice")

	resp, err = env.client.Get(env.srv.URL + "/nutritions/missing")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func buildMultipartBody(t *testing.T, field string, imageData []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile(field, "meal.jpg")
	require.NoError(t, err)
	_, err = fw.Write(imageData)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestIntegration_ScanPredictsAndLogs(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	body, contentType := buildMultipartBody(t, "picture", minimalJPEG)
	resp, err := env.client.Post(env.srv.URL+"/scan", contentType, body)
	require.NoError(t, err)
	page := readBody(t, resp)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Rendang")
	assert.Contains(t, page, "Pair it with vegetables")
	assert.Equal(t, minimalJPEG, env.api.LastUpload())

	resp, err = env.client.Get(env.srv.URL + "/scan")
	require.NoError(t, err)
	page = readBody(t, resp)
	assert.Contains(t, page, "Recent scans")
	assert.Contains(t, page, "/photos/2024-01/scan_1.jpg")

	resp, err = env.client.Get(env.srv.URL + "/photos/2024-01/scan_1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, string(minimalJPEG), readBody(t, resp))
}

var scanLink = regexp.MustCompile(`href="/scans/([0-9a-f-]+)"`)

func TestIntegration_ScanDetailAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	body, contentType := buildMultipartBody(t, "picture", minimalJPEG)
	resp, err := env.client.Post(env.srv.URL+"/scan", contentType, body)
	require.NoError(t, err)
	_ = readBody(t, resp)

	resp, err = env.client.Get(env.srv.URL + "/scan")
	require.NoError(t, err)
	match := scanLink.FindStringSubmatch(readBody(t, resp))
	require.Len(t, match, 2)

	resp, err = env.client.Get(env.srv.URL + "/scans/" + match[1])
	require.NoError(t, err)
	page := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Rendang")
	assert.Contains(t, page, "/photos/2024-01/scan_1.jpg")

	resp, err = env.noFollow().PostForm(env.srv.URL+"/scans/"+match[1]+"/delete", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/scan", resp.Header.Get("Location"))

	resp, err = env.client.Get(env.srv.URL + "/photos/2024-01/scan_1.jpg")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = env.client.Get(env.srv.URL + "/scans/" + match[1])
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = env.noFollow().PostForm(env.srv.URL+"/scans/"+match[1]+"/delete", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestIntegration_ScanRejectsNonImage(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	body, contentType := buildMultipartBody(t, "picture", []byte("%PDF-1.4"))
	resp, err := env.client.Post(env.srv.URL+"/scan", contentType, body)
	require.NoError(t, err)
	page := readBody(t, resp)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, page, "Unsupported image format.")
	assert.Nil(t, env.api.LastUpload())
}

func TestIntegration_Summary(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/summary?period=weekly&nutrient=sugar")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Daily Sugar Limit: 25 gram")
	assert.Contains(t, body, "Mon")
	assert.Contains(t, body, "Martabak Manis")

	resp, err = env.client.Get(env.srv.URL + "/summary?period=yearly")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIntegration_EducationListsAndFiltersCourses(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/education")
	require.NoError(t, err)
	page := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Healthier choices start here.")
	assert.Contains(t, page, "Food Ingredient Facts")
	assert.Contains(t, page, "Healthy Foods")

	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/education?q=snack", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err = env.client.Do(req)
	require.NoError(t, err)
	fragment := readBody(t, resp)
	assert.NotContains(t, fragment, "<html")
	assert.Contains(t, fragment, "Tips for Healthy Snacking")
	assert.NotContains(t, fragment, "Food Ingredient Facts")

	resp, err = env.client.Get(env.srv.URL + "/education?q=durian")
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "No articles match your search.")
}

func TestIntegration_EducationRequiresLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, err := env.noFollow().Get(env.srv.URL + "/education")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestIntegration_ProfileShowsAccountAndLogsOut(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/profile")
	require.NoError(t, err)
	page := readBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, page, "Profile Settings")
	assert.Contains(t, page, "jessy@example.com")
	assert.Contains(t, page, "Diet &amp; Allergy Preferences")
	assert.Contains(t, page, `action="/logout"`)

	resp, err = env.noFollow().PostForm(env.srv.URL+"/logout", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.False(t, env.session.Authenticated())
	assert.Empty(t, env.session.Account())

	resp, err = env.noFollow().Get(env.srv.URL + "/profile")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestIntegration_LogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.noFollow().PostForm(env.srv.URL+"/logout", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "/login", resp.Header.Get("Location"))
	assert.False(t, env.session.Authenticated())
}

func TestIntegration_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.login(t)

	resp, err := env.client.Get(env.srv.URL + "/metrics")
	require.NoError(t, err)
	body := readBody(t, resp)
	assert.Contains(t, body, `foodguard_api_requests_total{endpoint="login",outcome="ok"}`)
}
