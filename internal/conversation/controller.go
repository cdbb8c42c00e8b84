// Package conversation owns the transcript of a single widget session.
//
// A Controller accepts user prompts, appends them to the transcript, hands
// them to a Dispatcher and appends the reply or a rendered error. At most one
// send is in flight at a time; a send attempted while another is pending is
// ignored, not queued.
package conversation

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/longkey1/chatassist/internal/chatassist"
	"github.com/longkey1/chatassist/pkg/logger"
)

// Dispatcher delivers a prompt and returns the reply.
// *router.Router implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, prompt, model string, cfg chatassist.ChatConfig) (*chatassist.Result, error)
}

// State is a snapshot of the conversation.
type State struct {
	Messages  []chatassist.Message
	Pending   bool
	LastError *chatassist.ErrorInfo
}

// Observer is called with a fresh snapshot after every state transition.
type Observer func(State)

// Controller is safe for concurrent use.
type Controller struct {
	dispatcher Dispatcher
	cfg        chatassist.ChatConfig
	logger     *logger.Logger

	mu        sync.Mutex
	messages  []chatassist.Message
	pending   bool
	lastError *chatassist.ErrorInfo
	epoch     uint64 // bumped by Clear; replies from an older epoch are dropped

	observers map[int]Observer
	nextObsID int
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the controller logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller with an empty transcript
func New(d Dispatcher, cfg chatassist.ChatConfig, opts ...Option) *Controller {
	c := &Controller{
		dispatcher: d,
		cfg:        cfg,
		logger:     logger.NewNop(),
		observers:  make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the session configuration
func (c *Controller) Config() chatassist.ChatConfig {
	return c.cfg
}

// Send appends text as a user message and dispatches it, blocking until the
// reply or error has been appended. It reports false without doing anything
// when text is blank or another send is pending.
func (c *Controller) Send(ctx context.Context, text, model string) (accepted bool) {
	if strings.TrimSpace(text) == "" {
		return false
	}

	c.mu.Lock()
	if c.pending {
		c.mu.Unlock()
		return false
	}
	c.pending = true
	c.lastError = nil
	c.messages = append(c.messages, chatassist.NewUserMessage(text))
	epoch := c.epoch
	c.mu.Unlock()
	c.notify()

	accepted = true

	var result *chatassist.Result
	var err error
	defer func() {
		if p := recover(); p != nil {
			result = nil
			err = chatassist.NewError(chatassist.KindTransport, "unexpected failure: %v", p)
		}
		c.complete(epoch, result, err)
	}()

	result, err = c.dispatcher.Dispatch(ctx, text, model, c.cfg)
	return accepted
}

// complete ends a send: it clears pending and appends the outcome unless the
// transcript was cleared in the meantime.
func (c *Controller) complete(epoch uint64, result *chatassist.Result, err error) {
	c.mu.Lock()
	c.pending = false
	stale := epoch != c.epoch
	if !stale {
		if err != nil {
			ce := chatassist.AsChatError(err)
			info := ce.Info()
			c.lastError = &info
			c.messages = append(c.messages, chatassist.NewErrorMessage(ce.Message))
		} else {
			c.messages = append(c.messages, chatassist.NewAssistantMessage(result.Reply()))
		}
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("send failed",
			zap.String("kind", string(chatassist.KindOf(err))),
			zap.Bool("discarded", stale),
			zap.Error(err),
		)
	}
	c.notify()
}

// Clear empties the transcript and the last error. A send in flight keeps
// running but its outcome is discarded.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.messages = nil
	c.lastError = nil
	c.epoch++
	c.mu.Unlock()
	c.notify()
}

// DeleteLast removes the most recent message, if any.
func (c *Controller) DeleteLast() {
	c.mu.Lock()
	if len(c.messages) == 0 {
		c.mu.Unlock()
		return
	}
	c.messages = c.messages[:len(c.messages)-1]
	c.mu.Unlock()
	c.notify()
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := State{Pending: c.pending}
	if len(c.messages) > 0 {
		s.Messages = make([]chatassist.Message, len(c.messages))
		copy(s.Messages, c.messages)
	}
	if c.lastError != nil {
		info := *c.lastError
		s.LastError = &info
	}
	return s
}

// Subscribe registers fn for state changes and returns a function that
// removes it.
func (c *Controller) Subscribe(fn Observer) func() {
	c.mu.Lock()
	id := c.nextObsID
	c.nextObsID++
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// notify calls the observers outside the lock.
func (c *Controller) notify() {
	c.mu.Lock()
	if len(c.observers) == 0 {
		c.mu.Unlock()
		return
	}
	snapshot := c.snapshotLocked()
	observers := make([]Observer, 0, len(c.observers))
	for _, fn := range c.observers {
		observers = append(observers, fn)
	}
	c.mu.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}
