package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/neogan74/droppy-api/internal/metrics"
	"github.com/neogan74/droppy-api/internal/middleware"
	"github.com/neogan74/droppy-api/internal/persistence"
)

// countingEngine records every call that reaches the store
type countingEngine struct {
	persistence.Engine

	mu      sync.Mutex
	gets    int
	puts    int
	lastTTL time.Duration
}

func (e *countingEngine) Get(ctx context.Context, key string) (string, error) {
	e.mu.Lock()
	e.gets++
	e.mu.Unlock()
	return e.Engine.Get(ctx, key)
}

func (e *countingEngine) Put(ctx context.Context, key, value string, opts persistence.PutOptions) error {
	e.mu.Lock()
	e.puts++
	e.lastTTL = opts.ExpirationTTL
	e.mu.Unlock()
	return e.Engine.Put(ctx, key, value, opts)
}

type brokenEngine struct{}

var errStoreDown = errors.New("store unavailable")

func (brokenEngine) Get(context.Context, string) (string, error) { return "", errStoreDown }

func (brokenEngine) Put(context.Context, string, string, persistence.PutOptions) error {
	return errStoreDown
}

func (brokenEngine) Close() error { return nil }

func newDryApp(engine persistence.Engine) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Use(NewDryHandler(engine, "/dry", DefaultRecordTTL).Handle)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func TestDryHandler_SubmitThenLookup(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	resp, body := doRequest(t, app, "POST", "/dry", `{"name":"Alice","response":"hello"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = doRequest(t, app, "GET", "/dry?name=alice", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", body)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDryHandler_NameNormalization(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	resp, _ := doRequest(t, app, "POST", "/dry", `{"name":" Foo ","response":"bar"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	for _, variant := range []string{"foo", "FOO", "%20fOo%20", "%09Foo"} {
		resp, body := doRequest(t, app, "GET", "/dry?name="+variant, "")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, "variant %q", variant)
		assert.Equal(t, "bar", body, "variant %q", variant)
	}
}

func TestDryHandler_SubmitOverwrites(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	doRequest(t, app, "POST", "/dry", `{"name":"bob","response":"first"}`)
	doRequest(t, app, "POST", "/dry", `{"name":"BOB","response":"second"}`)

	_, body := doRequest(t, app, "GET", "/dry?name=bob", "")
	assert.Equal(t, "second", body)
}

func TestDryHandler_LookupUnknownName(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	resp, body := doRequest(t, app, "GET", "/dry?name=nobody", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestDryHandler_RecordExpires(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	app := newDryApp(persistence.NewMemoryEngineWithClock(clock))
	doRequest(t, app, "POST", "/dry", `{"name":"carol","response":"soon gone"}`)

	advance(DefaultRecordTTL - time.Second)
	resp, body := doRequest(t, app, "GET", "/dry?name=carol", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "soon gone", body)

	advance(time.Second)
	resp, body = doRequest(t, app, "GET", "/dry?name=carol", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Not found", body)
}

func TestDryHandler_SubmitUsesRecordTTL(t *testing.T) {
	engine := &countingEngine{Engine: persistence.NewMemoryEngine()}

	app := fiber.New()
	app.Use(NewDryHandler(engine, "/dry", 0).Handle)
	doRequest(t, app, "POST", "/dry", `{"name":"dave","response":"x"}`)
	assert.Equal(t, DefaultRecordTTL, engine.lastTTL)

	app = fiber.New()
	app.Use(NewDryHandler(engine, "/dry", time.Minute).Handle)
	doRequest(t, app, "POST", "/dry", `{"name":"dave","response":"x"}`)
	assert.Equal(t, time.Minute, engine.lastTTL)
}

func TestDryHandler_SubmitRejectsInvalidInput(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"empty name", `{"name":"","response":"x"}`},
		{"whitespace name", `{"name":"   ","response":"x"}`},
		{"missing name", `{"response":"x"}`},
		{"null name", `{"name":null,"response":"x"}`},
		{"missing response", `{"name":"erin"}`},
		{"empty response", `{"name":"erin","response":""}`},
		{"numeric name", `{"name":42,"response":"x"}`},
		{"numeric response", `{"name":"erin","response":7}`},
		{"malformed json", `{"name":"erin",`},
		{"not an object", `["erin","x"]`},
		{"json null", `null`},
		{"plain text", `name=erin&response=x`},
		{"upper-case keys", `{"NAME":"erin","Response":"x"}`},
		{"upper-case response key", `{"name":"erin","RESPONSE":"x"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &countingEngine{Engine: persistence.NewMemoryEngine()}
			app := newDryApp(engine)

			resp, body := doRequest(t, app, "POST", "/dry", tc.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "Bad request", body)
			assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
			assert.Zero(t, engine.puts, "rejected submit must not write")

			resp, _ = doRequest(t, app, "GET", "/dry?name=erin", "")
			assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestDryHandler_SubmitReadsExactKeys(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	resp, _ := doRequest(t, app, "POST", "/dry", `{"name":"alice","NAME":"bob","response":"x","Response":"y"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := doRequest(t, app, "GET", "/dry?name=alice", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "x", body)

	resp, _ = doRequest(t, app, "GET", "/dry?name=bob", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDryHandler_SubmitIgnoresExtraKeys(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	resp, _ := doRequest(t, app, "POST", "/dry", `{"name":"ivan","response":"hi","extra":[1,2]}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	_, body := doRequest(t, app, "GET", "/dry?name=ivan", "")
	assert.Equal(t, "hi", body)
}

func TestDryHandler_NameWithByteOrderMark(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	resp, _ := doRequest(t, app, "POST", "/dry", "{\"name\":\"\uFEFFJudy\u00A0\",\"response\":\"bom\"}")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := doRequest(t, app, "GET", "/dry?name=judy", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "bom", body)

	resp, body = doRequest(t, app, "GET", "/dry?name=%EF%BB%BFJUDY", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "bom", body)
}

func TestDryHandler_SubmitEmptyBody(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	resp, err := app.Test(httptest.NewRequest("POST", "/dry", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestDryHandler_LookupRejectsMissingName(t *testing.T) {
	engine := &countingEngine{Engine: persistence.NewMemoryEngine()}
	app := newDryApp(engine)

	for _, target := range []string{"/dry", "/dry?name=", "/dry?name=%20%20", "/dry?other=alice"} {
		resp, body := doRequest(t, app, "GET", target, "")
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, target)
		assert.Equal(t, "Bad request", body, target)
	}
	assert.Zero(t, engine.gets, "rejected lookup must not read")
}

func TestDryHandler_Preflight(t *testing.T) {
	engine := &countingEngine{Engine: persistence.NewMemoryEngine()}
	app := newDryApp(engine)

	for _, target := range []string{"/dry", "/", "/unknown/path", "/dry/"} {
		resp, body := doRequest(t, app, "OPTIONS", target, "")
		assert.Equal(t, fiber.StatusOK, resp.StatusCode, target)
		assert.Empty(t, body, target)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), target)
		assert.Equal(t, "GET, POST", resp.Header.Get("Access-Control-Allow-Methods"), target)
		assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"), target)
	}
	assert.Zero(t, engine.gets+engine.puts)
}

func TestDryHandler_UnknownPath(t *testing.T) {
	engine := &countingEngine{Engine: persistence.NewMemoryEngine()}
	app := newDryApp(engine)

	requests := []struct {
		method string
		target string
		body   string
	}{
		{"GET", "/", ""},
		{"GET", "/other?name=alice", ""},
		{"GET", "/dry/", ""},
		{"GET", "/DRY?name=alice", ""},
		{"POST", "/submit", `{"name":"alice","response":"x"}`},
		{"PUT", "/nope", ""},
		{"DELETE", "/dry/alice", ""},
	}

	for _, r := range requests {
		resp, body := doRequest(t, app, r.method, r.target, r.body)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "%s %s", r.method, r.target)
		assert.Equal(t, "Not found", body, "%s %s", r.method, r.target)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	}
	assert.Zero(t, engine.gets+engine.puts)
}

func TestDryHandler_MethodNotAllowed(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	for _, method := range []string{"PUT", "DELETE", "PATCH"} {
		resp, body := doRequest(t, app, method, "/dry", "")
		assert.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode, method)
		assert.Equal(t, "Method not allowed", body, method)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), method)
	}
}

func TestDryHandler_StoreFailure(t *testing.T) {
	app := newDryApp(brokenEngine{})

	resp, body := doRequest(t, app, "POST", "/dry", `{"name":"frank","response":"x"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = doRequest(t, app, "GET", "/dry?name=frank", "")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", body)
	assert.NotContains(t, body, errStoreDown.Error())
}

func TestDryHandler_OperationMetrics(t *testing.T) {
	app := newDryApp(persistence.NewMemoryEngine())

	submitted := metrics.DryOperationsTotal.WithLabelValues("submit", "success")
	missing := metrics.DryOperationsTotal.WithLabelValues("lookup", "not_found")
	beforeSubmitted := testutil.ToFloat64(submitted)
	beforeMissing := testutil.ToFloat64(missing)

	doRequest(t, app, "POST", "/dry", `{"name":"grace","response":"x"}`)
	doRequest(t, app, "GET", "/dry?name=heidi", "")

	assert.Equal(t, float64(1), testutil.ToFloat64(submitted)-beforeSubmitted)
	assert.Equal(t, float64(1), testutil.ToFloat64(missing)-beforeMissing)
}

func TestNormalizeName(t *testing.T) {
	str := func(s string) *string { return &s }

	testCases := []struct {
		raw      *string
		expected string
		ok       bool
	}{
		{nil, "", false},
		{str(""), "", false},
		{str(" \t\n"), "", false},
		{str("Alice"), "alice", true},
		{str("  Mixed Case  "), "mixed case", true},
		{str("ÄBC"), "äbc", true},
		{str("\uFEFF Bom\uFEFF"), "bom", true},
		{str("\uFEFF"), "", false},
	}

	for _, tc := range testCases {
		name, ok := normalizeName(tc.raw)
		assert.Equal(t, tc.expected, name)
		assert.Equal(t, tc.ok, ok)
	}
}

func TestQueryParam(t *testing.T) {
	app := fiber.New()
	c := app.AcquireCtx(&fasthttp.RequestCtx{})
	defer app.ReleaseCtx(c)

	c.Request().SetRequestURI("/dry?name=&other=x")

	empty := queryParam(c, "name")
	require.NotNil(t, empty)
	assert.Equal(t, "", *empty)
	assert.Nil(t, queryParam(c, "missing"))
}
