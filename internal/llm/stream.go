package llm

import (
	"context"
	"io"
	"strings"
	"sync"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// Streamer adapts an Anthropic Messages streaming response into Chunks,
// grounded on the corpus's anthropicStreamer (goa-ai's
// features/model/anthropic/stream.go): a buffered channel fed by a single
// reader goroutine, closed on stream end or context cancellation.
type Streamer struct {
	ctx    context.Context
	cancel context.CancelFunc
	stream *ssestream.Stream[sdk.MessageStreamEventUnion]

	chunks chan Chunk

	mu       sync.Mutex
	finalErr error
}

func newStreamer(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion]) *Streamer {
	cctx, cancel := context.WithCancel(ctx)
	s := &Streamer{ctx: cctx, cancel: cancel, stream: stream, chunks: make(chan Chunk, 32)}
	go s.run()
	return s
}

// Recv returns the next Chunk, io.EOF when the stream completed cleanly, or
// any error the underlying stream/context produced.
func (s *Streamer) Recv() (Chunk, error) {
	select {
	case c, ok := <-s.chunks:
		if ok {
			return c, nil
		}
		if err := s.err(); err != nil {
			return Chunk{}, err
		}
		return Chunk{}, io.EOF
	case <-s.ctx.Done():
		s.setErr(s.ctx.Err())
		return Chunk{}, s.ctx.Err()
	}
}

// Close stops the stream and releases its underlying connection.
func (s *Streamer) Close() error {
	s.cancel()
	if s.stream == nil {
		return nil
	}
	return s.stream.Close()
}

func (s *Streamer) run() {
	defer close(s.chunks)
	defer func() {
		if s.stream != nil {
			_ = s.stream.Close()
		}
	}()

	var toolIdx map[int64]*toolBuffer
	reset := func() { toolIdx = make(map[int64]*toolBuffer) }
	reset()

	for {
		if s.ctx.Err() != nil {
			s.setErr(s.ctx.Err())
			return
		}
		if !s.stream.Next() {
			s.setErr(s.stream.Err())
			return
		}
		event := s.stream.Current()
		if !s.handleEvent(event, toolIdx, reset) {
			return
		}
	}
}

type toolBuffer struct {
	id        string
	name      string
	fragments []string
}

func (s *Streamer) handleEvent(event sdk.MessageStreamEventUnion, toolIdx map[int64]*toolBuffer, reset func()) bool {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		reset()
		return true
	case sdk.ContentBlockStartEvent:
		if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
			toolIdx[ev.Index] = &toolBuffer{id: toolUse.ID, name: toolUse.Name}
		}
		return true
	case sdk.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if delta.Text == "" {
				return true
			}
			return s.emit(Chunk{Type: ChunkTypeText, TextDelta: delta.Text})
		case sdk.InputJSONDelta:
			if tb, ok := toolIdx[ev.Index]; ok {
				tb.fragments = append(tb.fragments, delta.PartialJSON)
			}
			return true
		default:
			return true
		}
	case sdk.ContentBlockStopEvent:
		if tb, ok := toolIdx[ev.Index]; ok {
			delete(toolIdx, ev.Index)
			input := strings.Join(tb.fragments, "")
			if strings.TrimSpace(input) == "" {
				input = "{}"
			}
			return s.emit(Chunk{
				Type:      ChunkTypeToolCallDone,
				ToolUseID: tb.id,
				ToolName:  tb.name,
				ToolInput: []byte(input),
			})
		}
		return true
	case sdk.MessageDeltaEvent:
		return s.emit(Chunk{
			Type: ChunkTypeUsage,
			Usage: Usage{
				InputTokens:  int(ev.Usage.InputTokens),
				OutputTokens: int(ev.Usage.OutputTokens),
			},
			StopReason: string(ev.Delta.StopReason),
		})
	case sdk.MessageStopEvent:
		return s.emit(Chunk{Type: ChunkTypeStop})
	default:
		return true
	}
}

func (s *Streamer) emit(c Chunk) bool {
	select {
	case s.chunks <- c:
		return true
	case <-s.ctx.Done():
		s.setErr(s.ctx.Err())
		return false
	}
}

func (s *Streamer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalErr == nil {
		s.finalErr = err
	}
}

func (s *Streamer) err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalErr
}
