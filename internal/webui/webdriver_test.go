package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeElement struct {
	displayed bool
	enabled   bool
	selected  bool
	value     string
	// dropKeys makes the next N SendKeys calls a no-op.
	dropKeys int
}

// fakeDriver is an in-process W3C WebDriver endpoint.
type fakeDriver struct {
	mu       sync.Mutex
	byLoc    map[string]*fakeElement
	byID     map[string]*fakeElement
	url      string
	title    string
	states   []string
	caps     map[string]interface{}
	timeouts map[string]int64
	calls    map[string]int
	quit     bool
}

func newFakeDriver(t *testing.T) (*fakeDriver, *httptest.Server) {
	t.Helper()
	fd := &fakeDriver{
		byLoc:  make(map[string]*fakeElement),
		byID:   make(map[string]*fakeElement),
		states: []string{"complete"},
		calls:  make(map[string]int),
	}
	srv := httptest.NewServer(fd.router())
	t.Cleanup(srv.Close)
	return fd, srv
}

// add registers el under loc and returns it.
func (fd *fakeDriver) add(loc Locator, el *fakeElement) *fakeElement {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.byLoc[loc.String()] = el
	fd.byID["el-"+strconv.Itoa(len(fd.byID)+1)] = el
	return el
}

func (fd *fakeDriver) count(name string) int {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.calls[name]
}

func (fd *fakeDriver) idOf(el *fakeElement) string {
	for id, e := range fd.byID {
		if e == el {
			return id
		}
	}
	return ""
}

func writeValue(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"value": v})
}

func writeDriverError(w http.ResponseWriter, status int, code, msg string) {
	writeValue(w, status, map[string]string{"error": code, "message": msg})
}

func (fd *fakeDriver) router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/session", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		_ = json.NewDecoder(req.Body).Decode(&fd.caps)
		writeValue(w, http.StatusOK, map[string]interface{}{"sessionId": "s1", "capabilities": map[string]string{}})
	}).Methods(http.MethodPost)

	r.HandleFunc("/session/{sid}", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		fd.quit = true
		fd.mu.Unlock()
		writeValue(w, http.StatusOK, nil)
	}).Methods(http.MethodDelete)

	r.HandleFunc("/session/{sid}/timeouts", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		_ = json.NewDecoder(req.Body).Decode(&fd.timeouts)
		writeValue(w, http.StatusOK, nil)
	}).Methods(http.MethodPost)

	r.HandleFunc("/session/{sid}/url", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		if req.Method == http.MethodGet {
			writeValue(w, http.StatusOK, fd.url)
			return
		}
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(req.Body).Decode(&body)
		fd.url = body.URL
		writeValue(w, http.StatusOK, nil)
	}).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/session/{sid}/title", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		writeValue(w, http.StatusOK, fd.title)
	}).Methods(http.MethodGet)

	r.HandleFunc("/session/{sid}/execute/sync", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		fd.calls["execute"]++
		state := fd.states[0]
		if len(fd.states) > 1 {
			fd.states = fd.states[1:]
		}
		writeValue(w, http.StatusOK, state)
	}).Methods(http.MethodPost)

	r.HandleFunc("/session/{sid}/element", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		var loc Locator
		_ = json.NewDecoder(req.Body).Decode(&loc)
		fd.calls["find "+loc.String()]++
		el, ok := fd.byLoc[loc.String()]
		if !ok {
			writeDriverError(w, http.StatusNotFound, "no such element", "Unable to locate "+loc.String())
			return
		}
		writeValue(w, http.StatusOK, map[string]string{elementKey: fd.idOf(el)})
	}).Methods(http.MethodPost)

	r.HandleFunc("/session/{sid}/element/{eid}/property/{name}", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		el := fd.byID[mux.Vars(req)["eid"]]
		fd.calls["property"]++
		if mux.Vars(req)["name"] != "value" {
			writeValue(w, http.StatusOK, nil)
			return
		}
		writeValue(w, http.StatusOK, el.value)
	}).Methods(http.MethodGet)

	r.HandleFunc("/session/{sid}/element/{eid}/{cmd}", func(w http.ResponseWriter, req *http.Request) {
		fd.mu.Lock()
		defer fd.mu.Unlock()
		el, ok := fd.byID[mux.Vars(req)["eid"]]
		if !ok {
			writeDriverError(w, http.StatusNotFound, "stale element reference", "gone")
			return
		}
		cmd := mux.Vars(req)["cmd"]
		fd.calls[cmd]++
		switch cmd {
		case "displayed":
			writeValue(w, http.StatusOK, el.displayed)
		case "enabled":
			writeValue(w, http.StatusOK, el.enabled)
		case "selected":
			writeValue(w, http.StatusOK, el.selected)
		case "click":
			el.selected = true
			writeValue(w, http.StatusOK, nil)
		case "clear":
			el.value = ""
			writeValue(w, http.StatusOK, nil)
		case "value":
			var body struct {
				Text string `json:"text"`
			}
			_ = json.NewDecoder(req.Body).Decode(&body)
			if el.dropKeys > 0 {
				el.dropKeys--
			} else {
				el.value += body.Text
			}
			writeValue(w, http.StatusOK, nil)
		default:
			writeDriverError(w, http.StatusNotFound, "unknown command", cmd)
		}
	})

	return r
}

func newTestSession(t *testing.T) (*fakeDriver, *Session) {
	t.Helper()
	fd, srv := newFakeDriver(t)
	s, err := NewSession(context.Background(), srv.URL, SessionOptions{Headless: true})
	require.NoError(t, err)
	return fd, s
}

// fastFinder polls quickly so fallbacks resolve in milliseconds.
func fastFinder(s *Session) *Finder {
	f := NewFinder(s)
	f.Timeout = 20 * time.Millisecond
	f.PageLoadTimeout = 50 * time.Millisecond
	f.PollInterval = 2 * time.Millisecond
	f.RetryDelay = time.Millisecond
	return f
}

func TestChromeArgs(t *testing.T) {
	tests := []struct {
		name     string
		opts     SessionOptions
		headless bool
		ua       string
	}{
		{"headed default agent", SessionOptions{}, false, DefaultUserAgent},
		{"headless custom agent", SessionOptions{Headless: true, UserAgent: "bot/1"}, true, "bot/1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := ChromeArgs(tt.opts)
			assert.Equal(t, tt.headless, contains(args, "--headless=new"))
			assert.True(t, contains(args, "--no-sandbox"))
			assert.True(t, contains(args, "--disable-dev-shm-usage"))
			assert.True(t, contains(args, "--window-size=1920,1080"))
			assert.True(t, contains(args, "--disable-blink-features=AutomationControlled"))
			assert.True(t, contains(args, "--user-agent="+tt.ua))
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestNewSession(t *testing.T) {
	fd, s := newTestSession(t)
	assert.Equal(t, "s1", s.ID())

	caps := fd.caps["capabilities"].(map[string]interface{})
	match := caps["alwaysMatch"].(map[string]interface{})
	assert.Equal(t, "chrome", match["browserName"])
	args := match["goog:chromeOptions"].(map[string]interface{})["args"].([]interface{})
	assert.Contains(t, args, "--headless=new")

	assert.Equal(t, int64(30000), fd.timeouts["pageLoad"])
	assert.Equal(t, int64(0), fd.timeouts["implicit"])
}

func TestSessionNavigation(t *testing.T) {
	fd, s := newTestSession(t)
	fd.title = "Practice"
	ctx := context.Background()

	require.NoError(t, s.Navigate(ctx, "https://example.test/form"))
	u, err := s.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/form", u)

	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Practice", title)

	require.NoError(t, s.Quit(ctx))
	assert.True(t, fd.quit)
	assert.Equal(t, "", s.ID())
	require.NoError(t, s.Quit(ctx), "second quit is a no-op")
}

func TestFindElementMissing(t *testing.T) {
	_, s := newTestSession(t)
	_, err := s.FindElement(context.Background(), ByID("nope"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSuchElement))

	var derr *DriverError
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusNotFound, derr.Status)
	assert.Equal(t, "no such element", derr.Code)
}

func TestElementCommands(t *testing.T) {
	fd, s := newTestSession(t)
	fd.add(ByID("box"), &fakeElement{displayed: true, enabled: true, value: "old"})
	ctx := context.Background()

	el, err := s.FindElement(ctx, ByID("box"))
	require.NoError(t, err)

	shown, err := el.Displayed(ctx)
	require.NoError(t, err)
	assert.True(t, shown)

	require.NoError(t, el.Clear(ctx))
	require.NoError(t, el.SendKeys(ctx, "new"))
	v, err := el.Property(ctx, "value")
	require.NoError(t, err)
	assert.Equal(t, "new", v)

	missing, err := el.Property(ctx, "placeholder")
	require.NoError(t, err)
	assert.Equal(t, "", missing, "null property reads as empty")

	sel, err := el.Selected(ctx)
	require.NoError(t, err)
	assert.False(t, sel)
	require.NoError(t, el.Click(ctx))
	sel, err = el.Selected(ctx)
	require.NoError(t, err)
	assert.True(t, sel)
}
