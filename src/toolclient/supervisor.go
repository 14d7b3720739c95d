// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package toolclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/framing"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/internal/protocol"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/logger"
	"github.com/H0llyW00dzZ/mcp-tool-runtime/src/version"
)

// State is a supervisor's lifecycle phase.
type State int

const (
	// StateStopped means no child process exists. Initial state, and
	// where idle shutdown and Stop return to; the next call leaves it.
	StateStopped State = iota
	// StateStarting means the child is being spawned.
	StateStarting
	// StateAwaitingHandshake means the child is alive but the handshake
	// barrier has not completed yet.
	StateAwaitingHandshake
	// StateReady means the handshake barrier completed for this process.
	StateReady
	// StateCrashed means the child exited without being asked to. The
	// next call respawns from here like from StateStopped.
	StateCrashed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateAwaitingHandshake:
		return "awaiting-handshake"
	case StateReady:
		return "ready"
	case StateCrashed:
		return "crashed"
	default:
		return "stopped"
	}
}

// Handshake readiness probe backoff schedule.
const (
	handshakeInitialBackoff = 120 * time.Millisecond
	handshakeBackoffFactor  = 1.6
	handshakeBackoffCap     = time.Second
	handshakeMaxAttempts    = 5
	handshakeCallTimeout    = 10 * time.Second
)

// idleCheckCap bounds the idle check interval; short TTLs are checked at
// the TTL itself, long ones every 30 seconds.
const idleCheckCap = 30 * time.Second

// defaultRPCTimeout applies when a caller passes no per-request timeout.
const defaultRPCTimeout = 30 * time.Second

// ErrProcessExited rejects every request that was in flight when the
// child process died.
var ErrProcessExited = errors.New("process exited")

// rpcOutcome resolves one pending request.
type rpcOutcome struct {
	result json.RawMessage
	err    error
}

// pendingRequest tracks one in-flight request: its resolution channel and
// the self-removing timeout timer. At most one exists per id, and ids are
// never reused while the process is alive.
type pendingRequest struct {
	ch    chan rpcOutcome
	timer *time.Timer
}

// handshakeState is the once-per-process handshake barrier. done is
// closed when the barrier settles; err is written before the close.
type handshakeState struct {
	done chan struct{}
	err  error
}

// Supervisor owns exactly one child process for a logical server name and
// mediates all RPC to it: spawn, handshake, request correlation, per-call
// timeouts, idle shutdown, and crash recovery. All methods are safe for
// concurrent use.
type Supervisor struct {
	config *ServerConfig
	log    logger.Logger

	mu         sync.Mutex
	state      State
	generation int // increments per spawn and per exit, fencing stale goroutines
	cmd        *exec.Cmd
	stdin      io.WriteCloser
	codec      *framing.Codec
	pending    map[int64]*pendingRequest
	nextID     int64
	lastUsed   time.Time
	stopping   bool
	barrier    *handshakeState
}

// NewSupervisor creates a supervisor for one server configuration. The
// child is not spawned until the first call needs it.
func NewSupervisor(config *ServerConfig, log logger.Logger) *Supervisor {
	if log == nil {
		log = logger.NewMCPLogger(nil, true)
	}
	return &Supervisor{config: config, log: log}
}

// Name returns the logical server name this supervisor owns.
func (s *Supervisor) Name() string { return s.config.Name }

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start spawns the child process if none is alive. It wires stdout
// through the framing codec, inherits stderr, arms the idle check, and
// kicks off the handshake barrier. Calling Start on a live supervisor is
// a no-op.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Supervisor) startLocked() error {
	if s.cmd != nil {
		return nil
	}
	s.state = StateStarting

	cmd := exec.Command(s.config.Command, s.config.Args...)
	cmd.Dir = s.config.Cwd
	cmd.Env = os.Environ()
	for k, v := range s.config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to open stdin pipe for %s: %w", s.config.Name, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to open stdout pipe for %s: %w", s.config.Name, err)
	}

	if err := cmd.Start(); err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to spawn %s: %w", s.config.Name, err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.codec = framing.NewCodec()
	s.pending = make(map[int64]*pendingRequest)
	s.nextID = 0
	s.stopping = false
	s.lastUsed = time.Now()
	s.generation++
	s.state = StateAwaitingHandshake
	s.barrier = &handshakeState{done: make(chan struct{})}

	gen := s.generation
	barrier := s.barrier
	go s.readLoop(gen, stdout)
	go s.waitLoop(gen, cmd)
	go s.runHandshake(gen, barrier)
	if s.config.IdleTTLMs > 0 {
		go s.idleLoop(gen)
	}

	s.log.Printf("spawned server %s (pid %d)", s.config.Name, cmd.Process.Pid)
	return nil
}

// Stop kills the child if one is alive. In-flight requests are rejected
// when the exit is observed; the supervisor returns to StateStopped and
// the next call respawns cleanly.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Supervisor) stopLocked() {
	if s.cmd == nil {
		s.state = StateStopped
		return
	}
	s.stopping = true
	_ = s.stdin.Close()
	_ = s.cmd.Process.Kill()
}

// EnsureReady spawns the child if needed and waits for the handshake
// barrier to settle.
func (s *Supervisor) EnsureReady(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	return s.awaitBarrier(ctx)
}

// RPC sends one request and waits for its correlated response. Every
// method except initialize first awaits the handshake barrier. A zero
// timeout uses the package default. The error is a *protocol.Error when
// the server answered with one.
//
// Parameters:
//   - ctx: Cancels the wait (the request id is freed; no signal reaches
//     the child)
//   - method: JSON-RPC method name
//   - params: Params payload, marshaled as-is (nil omits the member)
//   - timeout: Per-request deadline; 0 means the package default
//
// Returns:
//   - json.RawMessage: The response's result member
//   - error: Timeout, process exit, or the server's error object
func (s *Supervisor) RPC(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = defaultRPCTimeout
	}
	if err := s.Start(); err != nil {
		return nil, err
	}
	if method != protocol.MethodInitialize {
		if err := s.awaitBarrier(ctx); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	return s.send(ctx, gen, method, params, timeout)
}

// send registers a pending request and writes it to the child. gen fences
// the call to one process instance: if the child was respawned since the
// caller observed it, the call fails instead of talking to the wrong
// process.
func (s *Supervisor) send(ctx context.Context, gen int, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	s.mu.Lock()
	if s.cmd == nil || s.generation != gen {
		s.mu.Unlock()
		return nil, fmt.Errorf("server %s is not running", s.config.Name)
	}

	s.nextID++
	id := s.nextID
	msg, err := protocol.NewRequest(id, method, params)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	p := &pendingRequest{ch: make(chan rpcOutcome, 1)}
	p.timer = time.AfterFunc(timeout, func() {
		s.expirePending(gen, id, method, timeout)
	})
	s.pending[id] = p
	s.lastUsed = time.Now()

	_, werr := s.stdin.Write(s.codec.Encode(data))
	s.mu.Unlock()

	if werr != nil {
		s.removePending(gen, id)
		return nil, fmt.Errorf("failed to write request to %s: %w", s.config.Name, werr)
	}

	select {
	case out := <-p.ch:
		return out.result, out.err
	case <-ctx.Done():
		s.removePending(gen, id)
		return nil, ctx.Err()
	}
}

// notify writes a notification frame; no response is expected.
func (s *Supervisor) notify(gen int, method string, params any) error {
	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil || s.generation != gen {
		return fmt.Errorf("server %s is not running", s.config.Name)
	}
	if _, err := s.stdin.Write(s.codec.Encode(data)); err != nil {
		return fmt.Errorf("failed to write notification to %s: %w", s.config.Name, err)
	}
	return nil
}

// expirePending fires when a request's timer lapses: the id slot is freed
// and the caller rejected. No cancellation reaches the child; a late
// response for this id is ignored by the read loop.
func (s *Supervisor) expirePending(gen int, id int64, method string, timeout time.Duration) {
	s.mu.Lock()
	var p *pendingRequest
	if s.generation == gen && s.pending != nil {
		p = s.pending[id]
		delete(s.pending, id)
	}
	s.mu.Unlock()

	if p != nil {
		p.ch <- rpcOutcome{err: fmt.Errorf("request %s (id %d) timed out after %s", method, id, timeout)}
	}
}

// removePending frees an id slot without resolving it (context cancel or
// write failure).
func (s *Supervisor) removePending(gen int, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.pending == nil {
		return
	}
	if p, ok := s.pending[id]; ok {
		p.timer.Stop()
		delete(s.pending, id)
	}
}

// readLoop feeds the child's stdout through the codec and resolves
// pending requests by id. End of stream flushes the codec so a final
// NDJSON response missing its trailing newline is still delivered.
func (s *Supervisor) readLoop(gen int, stdout io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			s.mu.Lock()
			if s.generation != gen {
				s.mu.Unlock()
				return
			}
			for _, frame := range s.codec.Decode(buf[:n]) {
				s.handleFrameLocked(frame)
			}
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			if s.generation == gen && s.codec != nil {
				if tail := s.codec.Flush(); tail != nil {
					s.handleFrameLocked(tail)
				}
			}
			s.mu.Unlock()
			return
		}
	}
}

// handleFrameLocked resolves one decoded frame against the pending map.
// Responses for unknown ids (timed out or never sent) are logged and
// ignored. Must be called with s.mu held.
func (s *Supervisor) handleFrameLocked(frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		s.log.Printf("server %s: dropping malformed frame: %v", s.config.Name, err)
		return
	}
	if !msg.IsResponse() {
		s.log.Printf("server %s: ignoring non-response message (method=%s)", s.config.Name, msg.Method)
		return
	}
	id, ok := msg.ID.(int64)
	if !ok {
		s.log.Printf("server %s: ignoring response with non-numeric id %v", s.config.Name, msg.ID)
		return
	}

	p, ok := s.pending[id]
	if !ok {
		s.log.Printf("server %s: ignoring late response for id %d", s.config.Name, id)
		return
	}
	delete(s.pending, id)
	p.timer.Stop()

	if msg.Error != nil {
		p.ch <- rpcOutcome{err: msg.Error}
	} else {
		p.ch <- rpcOutcome{result: msg.Result}
	}
}

// waitLoop reaps the child and triggers exit cleanup.
func (s *Supervisor) waitLoop(gen int, cmd *exec.Cmd) {
	err := cmd.Wait()
	s.onExit(gen, err)
}

// onExit rejects every pending request with ErrProcessExited and resets
// all per-process state so the next call triggers a clean cold start with
// a fresh handshake.
func (s *Supervisor) onExit(gen int, exitErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}

	for id, p := range s.pending {
		p.timer.Stop()
		p.ch <- rpcOutcome{err: fmt.Errorf("%w", ErrProcessExited)}
		delete(s.pending, id)
	}
	s.pending = nil
	s.cmd = nil
	s.stdin = nil
	if s.codec != nil {
		s.codec.Close()
		s.codec = nil
	}

	if s.stopping {
		s.state = StateStopped
	} else {
		s.state = StateCrashed
		s.log.Printf("server %s exited unexpectedly: %v", s.config.Name, exitErr)
	}
	s.stopping = false

	// Fence out the old process's handshake, idle, and read goroutines.
	s.generation++
}

// idleLoop stops the child once it has been unused longer than its TTL.
// A stopped child is respawned transparently by the next call.
func (s *Supervisor) idleLoop(gen int) {
	ttl := time.Duration(s.config.IdleTTLMs) * time.Millisecond
	interval := ttl
	if interval > idleCheckCap {
		interval = idleCheckCap
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		s.mu.Lock()
		if s.generation != gen {
			s.mu.Unlock()
			return
		}
		if time.Since(s.lastUsed) > ttl {
			s.log.Printf("server %s idle for over %s, stopping", s.config.Name, ttl)
			s.stopLocked()
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
	}
}

// awaitBarrier blocks until the current process's handshake settles.
func (s *Supervisor) awaitBarrier(ctx context.Context) error {
	s.mu.Lock()
	barrier := s.barrier
	s.mu.Unlock()
	if barrier == nil {
		return fmt.Errorf("server %s is not running", s.config.Name)
	}

	select {
	case <-barrier.done:
		return barrier.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runHandshake performs the once-per-process barrier: initialize
// (tolerating servers that do not implement it), the initialized
// notification, then a tools/list readiness probe with backoff. Probe
// failures that do not look like "not yet initialized" are tolerated,
// and exhausting the retries completes the barrier optimistically.
func (s *Supervisor) runHandshake(gen int, barrier *handshakeState) {
	ctx := context.Background()

	initParams := map[string]any{
		"protocolVersion": protocol.HandshakeVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    "mcp-tool-runtime",
			"version": version.Version,
		},
	}
	if _, err := s.send(ctx, gen, protocol.MethodInitialize, initParams, handshakeCallTimeout); err != nil {
		var rpcErr *protocol.Error
		switch {
		case errors.As(err, &rpcErr) && rpcErr.Code == protocol.CodeMethodNotFound:
			s.log.Printf("server %s does not implement initialize; treating as handshake-less", s.config.Name)
		case errors.As(err, &rpcErr):
			s.log.Printf("server %s: initialize answered with %v; continuing", s.config.Name, rpcErr)
		default:
			s.finishBarrier(gen, barrier, fmt.Errorf("handshake with %s failed: %w", s.config.Name, err))
			return
		}
	}

	if err := s.notify(gen, protocol.MethodInitialized, nil); err != nil {
		s.finishBarrier(gen, barrier, fmt.Errorf("handshake with %s failed: %w", s.config.Name, err))
		return
	}

	backoff := handshakeInitialBackoff
	for attempt := 1; attempt <= handshakeMaxAttempts; attempt++ {
		_, err := s.send(ctx, gen, protocol.MethodToolsList, nil, handshakeCallTimeout)
		if err == nil {
			break
		}

		var rpcErr *protocol.Error
		if !errors.As(err, &rpcErr) {
			s.finishBarrier(gen, barrier, fmt.Errorf("readiness probe for %s failed: %w", s.config.Name, err))
			return
		}
		if !strings.Contains(strings.ToLower(rpcErr.Message), "initial") {
			// The server answers but has no tools/list; good enough.
			s.log.Printf("server %s: tools/list unsupported (%v); assuming ready", s.config.Name, rpcErr)
			break
		}
		if attempt == handshakeMaxAttempts {
			s.log.Printf("server %s: readiness probe exhausted after %d attempts; assuming ready",
				s.config.Name, handshakeMaxAttempts)
			break
		}

		time.Sleep(backoff)
		backoff = time.Duration(float64(backoff) * handshakeBackoffFactor)
		if backoff > handshakeBackoffCap {
			backoff = handshakeBackoffCap
		}
	}

	s.finishBarrier(gen, barrier, nil)
}

// finishBarrier settles the handshake barrier for one process instance.
func (s *Supervisor) finishBarrier(gen int, barrier *handshakeState, err error) {
	s.mu.Lock()
	if err == nil && s.generation == gen {
		s.state = StateReady
	}
	s.mu.Unlock()

	barrier.err = err
	close(barrier.done)
}
