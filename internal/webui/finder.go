package webui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultFindTimeout     = 10 * time.Second
	DefaultPageLoadTimeout = 30 * time.Second
	DefaultPollInterval    = 250 * time.Millisecond
	DefaultRetryDelay      = 500 * time.Millisecond
	DefaultSendKeysRetries = 3
)

// ByID locates an element by its id attribute.
func ByID(id string) Locator { return Locator{Using: "css selector", Value: "#" + id} }

// ByName locates an element by its name attribute.
func ByName(name string) Locator {
	return Locator{Using: "css selector", Value: "[name='" + name + "']"}
}

func ByCSS(selector string) Locator { return Locator{Using: "css selector", Value: selector} }

func ByXPath(expr string) Locator { return Locator{Using: "xpath", Value: expr} }

// ByText locates the first element whose text contains text.
func ByText(text string) Locator {
	return ByXPath("//*[contains(text(), " + xpathLiteral(text) + ")]")
}

// xpathLiteral quotes s as an XPath string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// Finder locates elements by trying a list of locators in order.
type Finder struct {
	session *Session

	// Timeout is how long each locator is polled before the next is tried.
	Timeout         time.Duration
	PageLoadTimeout time.Duration
	PollInterval    time.Duration
	// RetryDelay separates failed SafeSendKeys attempts.
	RetryDelay time.Duration
}

// NewFinder returns a Finder with the default timeouts.
func NewFinder(s *Session) *Finder {
	return &Finder{
		session:         s,
		Timeout:         DefaultFindTimeout,
		PageLoadTimeout: DefaultPageLoadTimeout,
		PollInterval:    DefaultPollInterval,
		RetryDelay:      DefaultRetryDelay,
	}
}

// FindElement returns the first displayed element matched by any locator,
// trying them in order.
func (f *Finder) FindElement(ctx context.Context, locators ...Locator) (*Element, error) {
	return f.find(ctx, "displayed", (*Element).Displayed, locators)
}

// FindClickable is FindElement that also requires the element to be enabled.
func (f *Finder) FindClickable(ctx context.Context, locators ...Locator) (*Element, error) {
	clickable := func(el *Element, ctx context.Context) (bool, error) {
		ok, err := el.Displayed(ctx)
		if err != nil || !ok {
			return false, err
		}
		return el.Enabled(ctx)
	}
	return f.find(ctx, "clickable", clickable, locators)
}

// FindByText looks for an element containing text, then tries fallbacks.
func (f *Finder) FindByText(ctx context.Context, text string, fallbacks ...Locator) (*Element, error) {
	return f.FindElement(ctx, append([]Locator{ByText(text)}, fallbacks...)...)
}

func (f *Finder) find(ctx context.Context, want string, ready func(*Element, context.Context) (bool, error), locators []Locator) (*Element, error) {
	for i, loc := range locators {
		el, err := f.waitFor(ctx, loc, ready)
		if err == nil {
			log.Debug().Str("locator", loc.String()).Int("attempt", i+1).Msg("element found")
			return el, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Err(err).Str("locator", loc.String()).Msg("locator failed, trying next")
	}
	return nil, fmt.Errorf("no %s element found with any of %d locators: %w", want, len(locators), ErrNoSuchElement)
}

// waitFor polls loc until an element satisfies ready or the timeout passes.
func (f *Finder) waitFor(ctx context.Context, loc Locator, ready func(*Element, context.Context) (bool, error)) (*Element, error) {
	deadline := time.Now().Add(f.Timeout)
	var lastErr error
	for {
		el, err := f.session.FindElement(ctx, loc)
		if err == nil {
			var ok bool
			ok, err = ready(el, ctx)
			if err == nil && ok {
				return el, nil
			}
			if err == nil {
				err = errors.New("element not ready")
			}
		}
		lastErr = err

		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("timed out after %s: %w", f.Timeout, lastErr)
		}
		if err := sleepCtx(ctx, f.PollInterval); err != nil {
			return nil, err
		}
	}
}

// SafeSendKeys clears el, types text and checks the value took. It makes
// up to maxRetries attempts (DefaultSendKeysRetries when <= 0) and returns
// the last error if none succeeds.
func (f *Finder) SafeSendKeys(ctx context.Context, el *Element, text string, maxRetries int) error {
	if maxRetries <= 0 {
		maxRetries = DefaultSendKeysRetries
	}
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		lastErr = typeAndVerify(ctx, el, text)
		if lastErr == nil {
			return nil
		}
		log.Warn().Err(lastErr).Int("attempt", attempt).Int("max", maxRetries).Msg("send keys failed")
		if attempt < maxRetries {
			if err := sleepCtx(ctx, f.RetryDelay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("failed to send keys after %d attempts: %w", maxRetries, lastErr)
}

func typeAndVerify(ctx context.Context, el *Element, text string) error {
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear: %w", err)
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("failed to type: %w", err)
	}
	got, err := el.Property(ctx, "value")
	if err != nil {
		return fmt.Errorf("failed to read value: %w", err)
	}
	if got != text {
		return fmt.Errorf("value = %q, want %q", got, text)
	}
	return nil
}

// WaitForPageLoad blocks until document.readyState is "complete".
func (f *Finder) WaitForPageLoad(ctx context.Context) error {
	deadline := time.Now().Add(f.PageLoadTimeout)
	for {
		var state string
		err := f.session.ExecuteScript(ctx, "return document.readyState", nil, &state)
		if err == nil && state == "complete" {
			return nil
		}
		if !time.Now().Before(deadline) {
			if err == nil {
				err = fmt.Errorf("readyState %q", state)
			}
			return fmt.Errorf("page did not load within %s: %w", f.PageLoadTimeout, err)
		}
		if err := sleepCtx(ctx, f.PollInterval); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
