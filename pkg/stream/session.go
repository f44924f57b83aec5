package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/perbu/ragstream/pkg/llm"
	"github.com/perbu/ragstream/pkg/retrieval"
	"github.com/perbu/ragstream/pkg/stripper"
)

// session is the state of one streamed answer. It is owned by the goroutine
// running Controller.Run and never shared, so it takes no locks.
type session struct {
	ctx    context.Context // client request context
	mode   retrieval.Mode
	sink   Sink
	stream llm.TokenStream
	cancel context.CancelFunc
	pacing Pacing
	log    *zap.Logger

	raw  strings.Builder // docs mode text received before streaming starts
	buf  strings.Builder // text committed for sending
	sent int             // bytes of buf already sent; never decreases

	started        bool
	deadlinePassed bool
	disconnected   bool
	terminated     bool // [DONE] or an error event has been written
	ended          bool // finalize ran; nothing may be written

	startTimer *time.Timer
	ticker     *time.Ticker
}

func (s *session) source() string {
	if s.mode == retrieval.ModeDocs {
		return "docs"
	}
	return "openai"
}

// view is the pre-start text with any leading refusal stripped.
func (s *session) view() string {
	return stripper.Strip(s.raw.String())
}

// gone reports whether the client has left, and ends the session if so.
func (s *session) gone() bool {
	if s.ended {
		return true
	}
	if s.ctx.Err() != nil {
		s.disconnect()
		return true
	}
	return false
}

func (s *session) open() {
	if s.gone() {
		return
	}
	if err := s.sink.Open(); err != nil {
		s.disconnect()
	}
}

// add handles one token from upstream.
func (s *session) add(text string) {
	if s.ended {
		return
	}
	if s.mode == retrieval.ModeGeneral {
		s.buf.WriteString(text)
		if s.send(text) {
			s.sent = s.buf.Len()
		}
		return
	}
	if !s.started {
		s.raw.WriteString(text)
		s.maybeStart()
		return
	}
	s.buf.WriteString(text)
	s.flush(false)
}

func (s *session) onStartTimeout() {
	s.deadlinePassed = true
	s.maybeStart()
}

func (s *session) maybeStart() {
	if s.started || s.ended {
		return
	}
	v := s.view()
	n := utf8.RuneCountInString(strings.TrimSpace(v))
	if n == 0 {
		return
	}
	if n >= s.pacing.StartThreshold || s.deadlinePassed {
		s.start(v)
	}
}

func (s *session) start(view string) {
	s.started = true
	s.buf.WriteString(view)
	if s.startTimer != nil {
		s.startTimer.Stop()
	}
	s.ticker = time.NewTicker(s.pacing.FlushInterval)
	s.log.Debug("streaming started", zap.Int("buffered", len(view)))
	s.flush(true)
}

// flush sends pending text. Without force it waits for MinDelta characters.
// Trailing whitespace is held back until more text follows it.
func (s *session) flush(force bool) {
	if !s.started || s.ended {
		return
	}
	pending := s.buf.String()[s.sent:]
	if !force && utf8.RuneCountInString(pending) < s.pacing.MinDelta {
		return
	}
	out := strings.TrimRightFunc(pending, unicode.IsSpace)
	if out == "" {
		return
	}
	if s.send(out) {
		s.sent += len(out)
	}
}

func (s *session) send(content string) bool {
	if content == "" || s.gone() {
		return false
	}
	if err := s.sink.Send(s.source(), content); err != nil {
		s.disconnect()
		return false
	}
	return true
}

// complete handles the end of the upstream stream.
func (s *session) complete() {
	if s.ended {
		return
	}
	if s.mode == retrieval.ModeDocs && !s.started {
		if v := s.view(); strings.TrimSpace(v) != "" {
			s.start(v)
		}
	}
	s.flush(true)
	if s.mode == retrieval.ModeDocs && !s.started {
		s.send(stripper.FallbackSentence)
	}
	s.done()
}

func (s *session) done() {
	if s.terminated || s.gone() {
		return
	}
	s.terminated = true
	if err := s.sink.Done(); err != nil {
		s.disconnect()
	}
}

// fail surfaces an upstream failure as the single terminal event.
func (s *session) fail(err error) {
	if s.terminated || s.gone() {
		return
	}
	s.terminated = true
	s.log.Warn("upstream failed", zap.Error(err))
	if openErr := s.sink.Open(); openErr != nil {
		s.disconnect()
		return
	}
	if sendErr := s.sink.Fail(ClientMessage(err)); sendErr != nil {
		s.disconnect()
	}
}

// ClientMessage is the error text shown to the client for an upstream failure.
// Provider response bodies stay in the logs.
func ClientMessage(err error) string {
	var httpErr *llm.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("upstream request failed with status %d", httpErr.StatusCode)
	}
	return "upstream request failed"
}

// disconnect is the cancellation path: the client is gone.
func (s *session) disconnect() {
	if s.ended {
		return
	}
	s.disconnected = true
	s.log.Debug("client disconnected", zap.Int("sent", s.sent))
	s.finalize()
}

// finalize releases everything the session holds. Every exit path ends here;
// calls after the first do nothing.
func (s *session) finalize() {
	if s.ended {
		return
	}
	s.ended = true
	if s.startTimer != nil {
		s.startTimer.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.log.Debug("closing upstream", zap.Error(err))
		}
	}
	s.log.Debug("session ended",
		zap.Bool("started", s.started),
		zap.Bool("disconnected", s.disconnected),
		zap.Int("sent", s.sent))
}

func (s *session) startC() <-chan time.Time {
	if s.startTimer == nil || s.started || s.deadlinePassed {
		return nil
	}
	return s.startTimer.C
}

func (s *session) tickC() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}
