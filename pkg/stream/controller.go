// Package stream drives a streamed completion and relays it to the client as
// server-sent events.
//
// In docs mode the first tokens are held back until enough text has
// accumulated (or a timeout passes) so that a leading refusal sentence can be
// recognised and removed before anything reaches the client. If nothing usable
// arrives at all, the refusal sentence is sent once, in full, as the answer.
// In general mode tokens are forwarded as they arrive.
package stream

import (
	"context"
	"errors"
	"io"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/perbu/ragstream/pkg/config"
	"github.com/perbu/ragstream/pkg/llm"
	"github.com/perbu/ragstream/pkg/logging"
	"github.com/perbu/ragstream/pkg/retrieval"
)

// Upstream starts a streamed completion
type Upstream interface {
	Stream(ctx context.Context, messages []openai.ChatCompletionMessage) (llm.TokenStream, error)
}

// Pacing controls when streaming starts and how output is batched
type Pacing struct {
	StartThreshold int           // characters of stripped text that start streaming
	StartTimeout   time.Duration // start anyway after this, once there is text
	MinDelta       int           // smallest increment sent between flush ticks
	FlushInterval  time.Duration
}

// DefaultPacing returns the production pacing values
func DefaultPacing() Pacing {
	return Pacing{
		StartThreshold: 128,
		StartTimeout:   time.Second,
		MinDelta:       8,
		FlushInterval:  120 * time.Millisecond,
	}
}

// PacingFromConfig converts the stream configuration section
func PacingFromConfig(cfg config.StreamConfig) Pacing {
	return Pacing{
		StartThreshold: cfg.StartThreshold,
		StartTimeout:   cfg.StartTimeout,
		MinDelta:       cfg.MinDelta,
		FlushInterval:  cfg.FlushInterval,
	}
}

// Controller runs stream sessions. It holds no per-request state and is safe
// for concurrent use.
type Controller struct {
	upstream Upstream
	pacing   Pacing
	log      *zap.Logger
}

// NewController creates a Controller
func NewController(upstream Upstream, pacing Pacing, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{upstream: upstream, pacing: pacing, log: log}
}

type recvResult struct {
	text string
	err  error
}

// Run streams one answer to sink. It returns when the answer is complete, the
// upstream fails, or ctx is done (client disconnect). Upstream failures are
// written to the sink as an error event and also returned; a disconnect
// returns nil.
func (c *Controller) Run(ctx context.Context, sink Sink, mode retrieval.Mode, messages []openai.ChatCompletionMessage) error {
	upCtx, cancel := context.WithCancel(ctx)
	s := &session{
		ctx:    ctx,
		mode:   mode,
		sink:   sink,
		cancel: cancel,
		pacing: c.pacing,
		log:    logging.FromContext(ctx, c.log),
	}
	defer s.finalize()

	if mode == retrieval.ModeGeneral {
		if s.open(); s.ended {
			return nil
		}
	}

	st, err := c.upstream.Stream(upCtx, messages)
	if err != nil {
		if ctx.Err() != nil {
			s.disconnect()
			return nil
		}
		s.fail(err)
		return err
	}
	s.stream = st
	s.open()
	if s.ended {
		return nil
	}

	tokens := make(chan recvResult)
	go pump(upCtx, st, tokens)

	if mode == retrieval.ModeDocs {
		s.startTimer = time.NewTimer(c.pacing.StartTimeout)
	}

	for !s.ended {
		select {
		case <-ctx.Done():
			s.disconnect()
		case r := <-tokens:
			switch {
			case r.err == nil:
				s.add(r.text)
			case errors.Is(r.err, io.EOF):
				s.complete()
				return nil
			case ctx.Err() != nil:
				s.disconnect()
			default:
				s.fail(r.err)
				return r.err
			}
		case <-s.startC():
			s.onStartTimeout()
		case <-s.tickC():
			s.flush(true)
		}
	}
	return nil
}

// pump turns blocking Recv calls into channel sends. It exits after the
// first error or once ctx is cancelled.
func pump(ctx context.Context, st llm.TokenStream, out chan<- recvResult) {
	for {
		text, err := st.Recv()
		select {
		case out <- recvResult{text: text, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}
