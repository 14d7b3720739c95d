// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/framing"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/protocol"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
)

// Server drives a Dispatcher over a byte stream, typically the process's
// stdin/stdout. Framing is auto-detected from the first inbound bytes and
// replies use the same framing. Requests run concurrently up to the
// manifest's maxConcurrency; responses are written under a mutex so
// pipelined frames never interleave.
type Server struct {
	dispatcher *Dispatcher
	log        logger.Logger
	sem        chan struct{}

	writeMu sync.Mutex
	codec   *framing.Codec
	out     io.Writer
}

// Serve reads framed requests from r and writes framed responses to w
// until r reaches end of stream or ctx is cancelled. It blocks for the
// duration; in-flight handlers are drained before it returns.
//
// Parameters:
//   - ctx: Governs shutdown; cancellation stops the read loop
//   - r: Request stream (the process's stdin when serving over stdio)
//   - w: Response stream (stdout)
//
// Returns:
//   - error: Error if reading fails for a reason other than end of stream
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.codec = framing.NewCodec()
	defer s.codec.Close()
	s.out = w

	var handlers sync.WaitGroup
	defer handlers.Wait()

	buf := make([]byte, 4096)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := r.Read(buf)
		if n > 0 {
			for _, frame := range s.codec.Decode(buf[:n]) {
				s.handleFrame(ctx, &handlers, frame)
			}
		}
		if err != nil {
			if tail := s.codec.Flush(); tail != nil {
				s.handleFrame(ctx, &handlers, tail)
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// handleFrame decodes one frame and routes it. Malformed JSON gets a
// parse-error response with a null id and the stream continues.
func (s *Server) handleFrame(ctx context.Context, handlers *sync.WaitGroup, frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		s.log.Printf("dropping malformed frame: %v", err)
		s.write(protocol.NewErrorResponse(nil,
			protocol.NewError(protocol.CodeParseError, "Parse error", nil)))
		return
	}

	if msg.IsNotification() {
		s.dispatcher.Dispatch(ctx, msg)
		return
	}
	if !msg.IsRequest() {
		// A response on the server's inbound channel has no pending
		// request to correlate with; log and move on.
		s.log.Printf("ignoring unexpected inbound message (id=%v)", msg.ID)
		return
	}

	// Acquire a concurrency slot before spawning so pipelined calls past
	// the limit queue at the boundary instead of piling up goroutines.
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	handlers.Add(1)
	go func() {
		defer func() {
			<-s.sem
			handlers.Done()
		}()
		if resp := s.dispatcher.Dispatch(ctx, msg); resp != nil {
			s.write(resp)
		}
	}()
}

// write frames and writes one response under the write lock.
func (s *Server) write(msg *protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("failed to marshal response for id %v: %v", msg.ID, err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.out.Write(s.codec.Encode(data)); err != nil {
		s.log.Printf("failed to write response for id %v: %v", msg.ID, err)
	}
}
