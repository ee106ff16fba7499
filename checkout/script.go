package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const ScriptURL = "https://checkout.razorpay.com/v1/checkout.js"

var ErrScriptTimeout = errors.New("checkout script did not load in time")

// Document is the page the checkout script is injected into.
type Document interface {
	InjectScript(src string) error
	// CheckoutWidget returns the widget once the script has defined it.
	CheckoutWidget() (Widget, bool)
}

// ScriptLoader hands out the checkout widget, loading its script first if
// needed.
type ScriptLoader interface {
	Ensure(ctx context.Context) (Widget, error)
}

// Script loads the checkout script at most once per document. Concurrent
// callers share one load, and a load that timed out is retried by polling
// again without injecting a second tag.
type Script struct {
	doc          Document
	src          string
	pollInterval time.Duration
	timeout      time.Duration

	group singleflight.Group

	mu       sync.Mutex
	injected bool
	widget   Widget
}

func NewScript(doc Document) *Script {
	return &Script{
		doc:          doc,
		src:          ScriptURL,
		pollInterval: 100 * time.Millisecond,
		timeout:      5 * time.Second,
	}
}

func (s *Script) Ensure(ctx context.Context) (Widget, error) {
	if w := s.loaded(); w != nil {
		return w, nil
	}

	v, err, _ := s.group.Do(s.src, func() (any, error) {
		return s.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(Widget), nil
}

func (s *Script) loaded() Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.widget
}

func (s *Script) load(ctx context.Context) (Widget, error) {
	if w, ok := s.doc.CheckoutWidget(); ok {
		return s.store(w), nil
	}

	s.mu.Lock()
	if !s.injected {
		if err := s.doc.InjectScript(s.src); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("inject checkout script: %w", err)
		}
		s.injected = true
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrScriptTimeout
			}
			return nil, ctx.Err()
		case <-ticker.C:
			if w, ok := s.doc.CheckoutWidget(); ok {
				return s.store(w), nil
			}
		}
	}
}

func (s *Script) store(w Widget) Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widget = w
	return w
}
