// Package webui drives a browser through a W3C WebDriver endpoint
// (chromedriver, selenium) to exercise web forms. It carries a locator
// fallback finder and page objects built on top of it.
package webui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// elementKey is the W3C web element identifier key.
const elementKey = "element-6066-11e4-a52e-4f735466cecf"

// DefaultUserAgent is sent by sessions created with NewSession.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ErrNoSuchElement is matched by errors for locators that found nothing.
var ErrNoSuchElement = errors.New("no such element")

// DriverError is an error reported by the WebDriver endpoint.
type DriverError struct {
	Status  int
	Code    string
	Message string
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("webdriver %d %s: %s", e.Status, e.Code, e.Message)
}

// Is reports "no such element" errors as ErrNoSuchElement.
func (e *DriverError) Is(target error) bool {
	return target == ErrNoSuchElement && e.Code == "no such element"
}

// Locator is a W3C location strategy and selector.
type Locator struct {
	Using string `json:"using"`
	Value string `json:"value"`
}

func (l Locator) String() string {
	return l.Using + "=" + l.Value
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	Headless  bool
	UserAgent string
	// PageLoadTimeout bounds navigation. Zero uses 30s.
	PageLoadTimeout time.Duration
	// HTTPClient overrides the client used to reach the driver.
	HTTPClient *http.Client
}

// ChromeArgs returns the Chrome command-line switches for opts.
func ChromeArgs(opts SessionOptions) []string {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	var args []string
	if opts.Headless {
		args = append(args, "--headless=new")
	}
	return append(args,
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--window-size=1920,1080",
		"--disable-blink-features=AutomationControlled",
		"--user-agent="+ua,
	)
}

// Session is one WebDriver browser session.
type Session struct {
	baseURL string
	id      string
	http    *http.Client
}

// NewSession starts a Chrome session on the driver at driverURL,
// e.g. "http://localhost:9515".
func NewSession(ctx context.Context, driverURL string, opts SessionOptions) (*Session, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	s := &Session{baseURL: strings.TrimRight(driverURL, "/"), http: hc}

	caps := map[string]interface{}{
		"capabilities": map[string]interface{}{
			"alwaysMatch": map[string]interface{}{
				"browserName": "chrome",
				"goog:chromeOptions": map[string]interface{}{
					"args": ChromeArgs(opts),
				},
			},
		},
	}
	var created struct {
		SessionID string `json:"sessionId"`
	}
	if err := s.call(ctx, http.MethodPost, "/session", caps, &created); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if created.SessionID == "" {
		return nil, errors.New("failed to create session: driver returned no session id")
	}
	s.id = created.SessionID

	pageLoad := opts.PageLoadTimeout
	if pageLoad <= 0 {
		pageLoad = 30 * time.Second
	}
	timeouts := map[string]int64{"implicit": 0, "pageLoad": pageLoad.Milliseconds()}
	if err := s.call(ctx, http.MethodPost, s.path("/timeouts"), timeouts, nil); err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("failed to set timeouts")
	}
	log.Debug().Str("session", s.id).Bool("headless", opts.Headless).Msg("webdriver session started")
	return s, nil
}

// ID returns the driver's session id.
func (s *Session) ID() string { return s.id }

// Navigate loads rawURL in the current window.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	return s.call(ctx, http.MethodPost, s.path("/url"), map[string]string{"url": rawURL}, nil)
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	err := s.call(ctx, http.MethodGet, s.path("/title"), nil, &title)
	return title, err
}

// URL returns the current page URL.
func (s *Session) URL(ctx context.Context) (string, error) {
	var u string
	err := s.call(ctx, http.MethodGet, s.path("/url"), nil, &u)
	return u, err
}

// FindElement returns the first element matching loc.
func (s *Session) FindElement(ctx context.Context, loc Locator) (*Element, error) {
	var ref map[string]string
	if err := s.call(ctx, http.MethodPost, s.path("/element"), loc, &ref); err != nil {
		return nil, err
	}
	id := ref[elementKey]
	if id == "" {
		return nil, fmt.Errorf("element reference missing for %s", loc)
	}
	return &Element{session: s, id: id}, nil
}

// ExecuteScript runs a synchronous script and decodes its return value into out.
func (s *Session) ExecuteScript(ctx context.Context, script string, args []interface{}, out interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	body := map[string]interface{}{"script": script, "args": args}
	return s.call(ctx, http.MethodPost, s.path("/execute/sync"), body, out)
}

// Quit ends the session and closes the browser.
func (s *Session) Quit(ctx context.Context) error {
	if s.id == "" {
		return nil
	}
	err := s.call(ctx, http.MethodDelete, s.path(""), nil, nil)
	if err != nil {
		log.Warn().Err(err).Str("session", s.id).Msg("failed to quit session")
		return err
	}
	s.id = ""
	return nil
}

func (s *Session) path(suffix string) string {
	return "/session/" + url.PathEscape(s.id) + suffix
}

// call performs one WebDriver command. Responses wrap their payload in
// {"value": ...}; errors carry {"value": {"error", "message"}}.
func (s *Session) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	} else if method == http.MethodPost {
		body = strings.NewReader("{}")
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Value json.RawMessage `json:"value"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &envelope); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		derr := &DriverError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var v struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Value, &v) == nil && v.Error != "" {
			derr.Code = v.Error
			derr.Message = v.Message
		}
		return derr
	}

	if out == nil || len(envelope.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Value, out); err != nil {
		return fmt.Errorf("failed to decode value: %w", err)
	}
	return nil
}

// Element is a reference to a DOM element in a session.
type Element struct {
	session *Session
	id      string
}

// ID returns the driver's element reference.
func (e *Element) ID() string { return e.id }

func (e *Element) path(suffix string) string {
	return e.session.path("/element/" + url.PathEscape(e.id) + suffix)
}

func (e *Element) boolState(ctx context.Context, name string) (bool, error) {
	var v bool
	err := e.session.call(ctx, http.MethodGet, e.path("/"+name), nil, &v)
	return v, err
}

// Displayed reports whether the element is visible.
func (e *Element) Displayed(ctx context.Context) (bool, error) {
	return e.boolState(ctx, "displayed")
}

// Enabled reports whether the element accepts input.
func (e *Element) Enabled(ctx context.Context) (bool, error) {
	return e.boolState(ctx, "enabled")
}

// Selected reports whether a checkbox, radio or option is selected.
func (e *Element) Selected(ctx context.Context) (bool, error) {
	return e.boolState(ctx, "selected")
}

func (e *Element) Click(ctx context.Context) error {
	return e.session.call(ctx, http.MethodPost, e.path("/click"), nil, nil)
}

func (e *Element) Clear(ctx context.Context) error {
	return e.session.call(ctx, http.MethodPost, e.path("/clear"), nil, nil)
}

// SendKeys types text into the element.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	return e.session.call(ctx, http.MethodPost, e.path("/value"), map[string]string{"text": text}, nil)
}

// Property returns a DOM property as a string ("" when null).
func (e *Element) Property(ctx context.Context, name string) (string, error) {
	var raw json.RawMessage
	if err := e.session.call(ctx, http.MethodGet, e.path("/property/"+url.PathEscape(name)), nil, &raw); err != nil {
		return "", err
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, nil
	}
	if string(raw) == "null" || len(raw) == 0 {
		return "", nil
	}
	return string(raw), nil
}
