package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/example/preorder/pkg/config"
	"github.com/example/preorder/pkg/models"
	"github.com/example/preorder/pkg/orders"
	"github.com/example/preorder/pkg/repository"
)

const testKey = "thaiday"

type testEnv struct {
	gw    *Gateway
	store *repository.FileStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Name: "preorder", Host: "127.0.0.1", Port: 5000},
		Admin:  config.AdminConfig{Key: testKey},
		Writer: config.WriterConfig{RequestTimeout: 5 * time.Second},
	}
	store := repository.NewFileStore(filepath.Join(t.TempDir(), "orders.json"), zap.NewNop())
	svc := orders.NewService(cfg, store, zap.NewNop())
	t.Cleanup(svc.Close)

	gw := NewGateway(cfg, zap.NewNop(), svc)
	gw.SetupRoutes()
	return &testEnv{gw: gw, store: store}
}

func (e *testEnv) do(t *testing.T, method, target string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	e.gw.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T, list []models.Order) {
	t.Helper()
	require.NoError(t, e.store.Save(list))
}

func (e *testEnv) load(t *testing.T) []models.Order {
	t.Helper()
	list, err := e.store.Load()
	require.NoError(t, err)
	return list
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestOrderForm(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="order"`)
}

func TestSubmit_RedirectsToThanks(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/", url.Values{
		"name":  {" Amy Lee "},
		"order": {"Pad Thai"},
		"notes": {"no peanuts"},
	})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/thanks?person=Amy+Lee", w.Header().Get("Location"))

	list := env.load(t)
	require.Len(t, list, 1)
	assert.Equal(t, "Amy Lee", list[0].Name)
	assert.Equal(t, "no peanuts", list[0].Notes)
	assert.Equal(t, 1, list[0].ID)
}

func TestSubmit_InvalidRerendersForm(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/", url.Values{
		"name":  {"Amy"},
		"order": {"   "},
		"notes": {"keep me"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="Amy"`)
	assert.Contains(t, w.Body.String(), "keep me")
	assert.Empty(t, env.load(t))
}

func TestThanks(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/thanks?person=%3Cb%3EAmy", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "&lt;b&gt;Amy")
}

func TestAdmin_LockedWithoutKey(t *testing.T) {
	env := newTestEnv(t)

	for _, target := range []string{"/admin", "/admin?key=nope", "/admin/metrics?key=nope"} {
		w := env.do(t, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, target)
		assert.Contains(t, w.Body.String(), "Access denied", target)
	}

	w := env.do(t, http.MethodGet, "/admin/metrics.json?key=nope", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/admin/export.csv", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdmin_ListsOrders(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, []models.Order{
		{ID: 1, Name: "Amy", Order: "Pad Thai", Timestamp: "2025-02-15 11:00:00"},
		{ID: 2, Name: "Bo", Order: "Larb", Timestamp: "2025-02-15 11:05:00"},
	})

	w := env.do(t, http.MethodGet, "/admin?key="+testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Pad Thai")
	assert.Contains(t, body, "Larb")
	assert.Contains(t, body, "(2)")
	assert.Contains(t, body, "/admin/delete/2?key="+testKey)
}

func TestAdmin_DeleteAndClear(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, []models.Order{
		{ID: 1, Name: "Amy", Order: "Pad Thai"},
		{ID: 2, Name: "Bo", Order: "Larb"},
		{ID: 3, Name: "Cy", Order: "Satay"},
	})

	w := env.do(t, http.MethodPost, "/admin/delete/2?key=nope", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized", w.Body.String())
	assert.Len(t, env.load(t), 3)

	w = env.do(t, http.MethodPost, "/admin/delete/abc?key="+testKey, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/admin/delete/2?key="+testKey, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/admin?key="+testKey, w.Header().Get("Location"))
	assert.Equal(t, []models.Order{
		{ID: 1, Name: "Amy", Order: "Pad Thai"},
		{ID: 3, Name: "Cy", Order: "Satay"},
	}, env.load(t))

	w = env.do(t, http.MethodPost, "/admin/delete/99?key="+testKey, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Len(t, env.load(t), 2)

	w = env.do(t, http.MethodPost, "/admin/clear?key=nope", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Len(t, env.load(t), 2)

	w = env.do(t, http.MethodPost, "/admin/clear?key="+testKey, nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Empty(t, env.load(t))
}

func TestAdmin_Metrics(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, []models.Order{
		{ID: 1, Name: "Amy", Order: "Pad Thai", Timestamp: "2025-01-01 10:00:00"},
		{ID: 2, Name: "Bo", Order: "Larb", Timestamp: "2025-01-02 10:00:00"},
		{ID: 3, Name: "amy", Order: "Green Curry", Timestamp: "2025-01-15 10:00:00"},
		{ID: 4, Name: "AMY", Order: "Pad Thai", Timestamp: "not-a-date"},
	})

	w := env.do(t, http.MethodGet, "/admin/metrics?key="+testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "AMY")
	assert.Contains(t, w.Body.String(), "03 &#39;25")

	w = env.do(t, http.MethodGet, "/admin/metrics.json?key="+testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Summaries []models.UserSummary `json:"summaries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Summaries, 2)
	assert.Equal(t, "AMY", resp.Summaries[0].DisplayName)
	assert.Equal(t, 3, resp.Summaries[0].TotalOrders)
	assert.Equal(t, "Pad Thai", resp.Summaries[0].MostCommon)
	assert.Equal(t, models.Placeholder, resp.Summaries[0].Orders[0].Week)
	assert.Equal(t, "Bo", resp.Summaries[1].DisplayName)
}

func TestAdmin_Exports(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, []models.Order{
		{ID: 1, Name: "Amy", Order: "Pad Thai", Timestamp: "2025-02-15 11:00:00"},
	})

	w := env.do(t, http.MethodGet, "/admin/export.csv?key="+testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".csv")
	assert.Equal(t, "id,name,order,notes,timestamp\n1,Amy,Pad Thai,,2025-02-15 11:00:00\n", w.Body.String())

	w = env.do(t, http.MethodGet, "/admin/export.xlsx?key="+testKey, nil)
	require.Equal(t, http.StatusOK, w.Code)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Orders")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRedactKey(t *testing.T) {
	assert.Equal(t, "key=REDACTED&x=1", redactKey(url.Values{"key": {"thaiday"}, "x": {"1"}}))
	assert.Equal(t, "x=1", redactKey(url.Values{"x": {"1"}}))
}
