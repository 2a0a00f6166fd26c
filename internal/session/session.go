// Package session orchestrates one request/response cycle: prompt assembly,
// provider streaming, and conversation bookkeeping.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rehearse/internal/config"
	"rehearse/internal/conversation"
	"rehearse/internal/llm"
	"rehearse/internal/logging"
	"rehearse/internal/prompts"
	"rehearse/internal/registry"
)

// Mode selects the prompt template used at send time.
type Mode int32

const (
	// ModeAnswer asks the model to answer the question as the persona.
	ModeAnswer Mode = iota
	// ModeEvaluate asks the model to critique the user's own answer against
	// the most recently asked question.
	ModeEvaluate
)

func (m Mode) String() string {
	if m == ModeEvaluate {
		return "evaluate"
	}
	return "answer"
}

// State tracks where the controller is in the request cycle.
type State int32

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// ErrBusy rejects a send while a previous one is still in flight.
var ErrBusy = errors.New("a request is already in flight")

// NoQuestionContextError reports an evaluate-mode send with no prior
// question to critique against.
type NoQuestionContextError struct{}

func (e *NoQuestionContextError) Error() string {
	return "no question to evaluate against: ask a question first"
}

// Sink receives display updates as they happen. It is the injected UI
// capability; the controller never touches a terminal itself.
type Sink interface {
	OnChunk(text string)
	OnError(err error)
}

// ClientFactory resolves a provider client for a model descriptor. It must
// fail with *llm.MissingCredentialError before any request when the
// descriptor's required key is not configured.
type ClientFactory func(registry.ModelDescriptor) (llm.Client, error)

// Record summarizes one completed send for the stats hook.
type Record struct {
	When     time.Time
	Mode     string
	Model    string
	Question string
	Duration time.Duration
	Chunks   int
	Failed   bool
}

// Options tunes optional controller behavior.
type Options struct {
	Temperature float64      // default 0.7
	MaxTokens   int          // default 1000
	OnRecord    func(Record) // called after every send, including failures
}

// Controller owns the session state: mode flag, conversation log, and the
// single-flight request cycle. One active request at a time; concurrent
// sends are rejected with ErrBusy.
type Controller struct {
	store   *config.Store
	log     *conversation.Log
	factory ClientFactory
	sink    Sink
	logger  *log.Logger

	state atomic.Int32
	mode  atomic.Int32

	sendMu      sync.Mutex
	temperature float64
	maxTokens   int
	onRecord    func(Record)
}

// New wires a controller. sink may not be nil; logger may be.
func New(store *config.Store, convLog *conversation.Log, factory ClientFactory, sink Sink, logger *log.Logger, opts Options) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 1000
	}
	return &Controller{
		store:       store,
		log:         convLog,
		factory:     factory,
		sink:        sink,
		logger:      logger,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		onRecord:    opts.OnRecord,
	}
}

// Mode returns the active prompt mode.
func (c *Controller) Mode() Mode {
	return Mode(c.mode.Load())
}

// SetMode switches between answer and evaluate prompting. Not persisted.
func (c *Controller) SetMode(m Mode) {
	c.mode.Store(int32(m))
}

// State reports the current request-cycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Conversation exposes the session's conversation log.
func (c *Controller) Conversation() *conversation.Log {
	return c.log
}

// Send runs one full cycle for the given user text. All recoverable errors
// are rendered into the conversation (tagged as errors) and reported via
// the sink before being returned for the caller's status line.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty input")
	}
	if !c.sendMu.TryLock() {
		return ErrBusy
	}
	defer c.sendMu.Unlock()

	c.state.Store(int32(StateSending))
	started := time.Now()
	cfg := c.store.Config()
	mode := c.Mode()

	chunks, err := c.run(ctx, cfg, mode, text)
	if err != nil {
		c.state.Store(int32(StateFailed))
		logging.ErrorLog("send failed: %v", err)
		c.log.Append(conversation.Entry{
			Role:      conversation.RoleAssistant,
			Text:      err.Error(),
			Timestamp: time.Now(),
			Err:       true,
		})
		c.sink.OnError(err)
	}
	c.record(Record{
		When:     started,
		Mode:     mode.String(),
		Model:    cfg.SelectedModel,
		Question: text,
		Duration: time.Since(started),
		Chunks:   chunks,
		Failed:   err != nil,
	})
	c.state.Store(int32(StateIdle))
	return err
}

// run performs the guarded part of the cycle and returns the chunk count.
func (c *Controller) run(ctx context.Context, cfg config.Config, mode Mode, text string) (int, error) {
	var prompt string
	if mode == ModeEvaluate {
		question, ok := c.log.LastUserEntry()
		if !ok {
			return 0, &NoQuestionContextError{}
		}
		prompt = prompts.Evaluate(cfg.Persona, cfg.CompanyContext, question.Text, text)
	} else {
		prompt = prompts.Answer(cfg.Persona, cfg.CompanyContext, text)
	}

	desc, err := registry.Resolve(cfg.SelectedModel)
	if err != nil {
		return 0, err
	}
	client, err := c.factory(desc)
	if err != nil {
		return 0, err
	}

	c.log.Append(conversation.Entry{
		Role:      conversation.RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	})

	stream, err := client.StreamCompletion(ctx, llm.CompletionRequest{
		Model:       desc.EndpointID,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	c.state.Store(int32(StateStreaming))
	c.logger.Printf("streaming from %s (%s mode)", desc.DisplayName, mode)

	var pending strings.Builder
	chunks := 0
	for {
		chunk, recvErr := stream.Recv()
		if recvErr == io.EOF {
			break
		}
		if recvErr != nil {
			return chunks, fmt.Errorf("stream interrupted: %w", recvErr)
		}
		chunks++
		pending.WriteString(chunk)
		c.sink.OnChunk(chunk)
	}

	c.log.Append(conversation.Entry{
		Role:      conversation.RoleAssistant,
		Text:      pending.String(),
		Timestamp: time.Now(),
	})
	return chunks, nil
}

func (c *Controller) record(r Record) {
	if c.onRecord != nil {
		c.onRecord(r)
	}
}
