// Package ptysession implements the Session type: the unit the rest of
// the server operates on, combining a PTY channel, a terminal emulator, an
// ingestion ring, a transcript store, and a state classifier behind the
// uniform Response every operation returns.
package ptysession

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"agentpty/internal/classify"
	"agentpty/internal/ptychannel"
	"agentpty/internal/ptyconfig"
	"agentpty/internal/ptyerr"
	"agentpty/internal/ptyingest"
	"agentpty/internal/ptylog"
	"agentpty/internal/promptdetect"
	"agentpty/internal/quiescence"
	"agentpty/internal/termvt"
	"agentpty/internal/transcript"
)

// controlKeys maps the control-key mnemonics the external interface
// accepts to the byte they send.
var controlKeys = map[string]byte{
	"c": 0x03, // ETX, Ctrl-C
	"d": 0x04, // EOT, Ctrl-D
	"z": 0x1A, // SUB, Ctrl-Z
	"l": 0x0C, // FF,  Ctrl-L
	"[": 0x1B, // ESC
}

// Response is the uniform return value of every Session operation.
type Response struct {
	Status      classify.Status
	Output      string
	Screen      string
	StateReason string
}

// CreateOptions configures a new Session.
type CreateOptions struct {
	ID      string
	Command string
	Args    []string
	Cwd     string
	Env     []string
	Cols    int
	Rows    int
	Config  ptyconfig.Config
	Logger  *ptylog.Logger
	Sampler classify.Sampler
}

// Session is one PTY-backed shell the server is tracking.
type Session struct {
	id  string
	cfg ptyconfig.Config

	opMu sync.Mutex // serializes operations against this session

	channel    *ptychannel.Channel
	emulator   *termvt.Emulator
	ring       *ptyingest.Ring
	store      *transcript.Store
	loop       *ptyingest.Loop
	prompts    *promptdetect.Detector
	classifier *classify.Classifier
	logger     *ptylog.Logger

	readCursor int64 // this session's own poll_output cursor

	alive      atomic.Bool
	terminated atomic.Bool // set synchronously by Terminate, independent of onExit's timing
	exitCode   atomic.Int32
	createdAt time.Time
	command  string
	cwd      string
}

// Create spawns a new PTY-backed session and starts its ingestion loop.
func Create(opts CreateOptions) (*Session, error) {
	if opts.ID == "" {
		return nil, ptyerr.InvalidArgument("session id is required")
	}
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = opts.Config.Cols
	}
	if rows == 0 {
		rows = opts.Config.Rows
	}

	logger := opts.Logger
	if logger != nil {
		logger = logger.Session(opts.ID)
	}

	store, err := transcript.Open(opts.Config.RootDir, opts.ID, transcript.Metadata{
		Shell:      opts.Command,
		InitialCwd: opts.Cwd,
		ServerPID:  serverPID(),
	})
	if err != nil {
		return nil, err
	}

	channel, err := ptychannel.Start(ptychannel.StartOptions{
		Command: opts.Command,
		Args:    opts.Args,
		Cwd:     opts.Cwd,
		Env:     opts.Env,
		Cols:    cols,
		Rows:    rows,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	_ = store.SetPID(channel.Pid())

	emulator := termvt.New(cols, rows, opts.Config.ScrollbackLines)
	emulator.ForwardResponsesTo(channelWriter{channel})

	s := &Session{
		id:         opts.ID,
		cfg:        opts.Config,
		channel:    channel,
		emulator:   emulator,
		ring:       ptyingest.NewRing(opts.Config.RingSize),
		store:      store,
		prompts:    promptdetect.New(),
		logger:     logger,
		createdAt:  time.Now(),
		command:    opts.Command,
		cwd:        opts.Cwd,
	}
	s.classifier = classify.New(s.prompts, opts.Sampler)
	s.alive.Store(true)

	s.loop = ptyingest.New(channel, emulator, store, s.ring, logger, s.onExit)
	go s.loop.Run()

	return s, nil
}

func serverPID() int { return os.Getpid() }

// channelWriter adapts ptychannel.Channel to the plain io.Writer midterm
// wants for ForwardResponses.
type channelWriter struct{ ch *ptychannel.Channel }

func (w channelWriter) Write(p []byte) (int, error) { return w.ch.Write(p) }

func (s *Session) onExit(exitCode int) {
	s.alive.Store(false)
	s.exitCode.Store(int32(exitCode))
	if s.logger != nil {
		s.logger.Info("session child exited")
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string { return s.id }

// Alive reports whether the child process is still running.
func (s *Session) Alive() bool { return s.alive.Load() }

// CreatedAt returns the session's creation time.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// TranscriptDir returns the on-disk directory holding this session's
// transcript files.
func (s *Session) TranscriptDir() string { return s.store.Dir() }

// --- operations ---

// Run sends a command line and collects output until quiescence or the
// wait ceiling, whichever comes first.
func (s *Session) Run(ctx context.Context, command string) (Response, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if !s.Alive() {
		return s.terminalResponse(""), nil
	}
	_ = s.store.LogCommand(command)
	_ = s.store.LogInteraction("input", command)

	cursor := s.ring.Cursor()
	if _, err := s.channel.Write([]byte(command + "\n")); err != nil {
		return Response{}, err
	}
	chunk, newCursor := quiescence.Collect(ctx, s.ring, cursor, s.cfg.Quiescence(), s.cfg.MaxWait())
	s.readCursor = newCursor
	return s.classify(string(chunk)), nil
}

// SendInput writes raw bytes to the PTY without appending a newline,
// collecting output the same way Run does. Used for partial lines (e.g.
// answering an in-progress prompt).
func (s *Session) SendInput(ctx context.Context, data string) (Response, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if !s.Alive() {
		return s.terminalResponse(""), nil
	}
	_ = s.store.LogInteraction("input", data)
	cursor := s.ring.Cursor()
	if _, err := s.channel.Write([]byte(data)); err != nil {
		return Response{}, err
	}
	chunk, newCursor := quiescence.Collect(ctx, s.ring, cursor, s.cfg.Quiescence(), s.cfg.MaxWait())
	s.readCursor = newCursor
	return s.classify(string(chunk)), nil
}

// SendControl sends a control-key mnemonic (c, d, z, l, [) as its
// corresponding byte.
func (s *Session) SendControl(ctx context.Context, key string) (Response, error) {
	b, ok := controlKeys[key]
	if !ok {
		return Response{}, ptyerr.InvalidArgument(fmt.Sprintf("unknown control key %q", key))
	}
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if !s.Alive() {
		return s.terminalResponse(""), nil
	}
	_ = s.store.LogInteraction("control", key)
	cursor := s.ring.Cursor()
	if _, err := s.channel.Write([]byte{b}); err != nil {
		return Response{}, err
	}
	chunk, newCursor := quiescence.Collect(ctx, s.ring, cursor, s.cfg.Quiescence(), s.cfg.MaxWait())
	s.readCursor = newCursor
	return s.classify(string(chunk)), nil
}

// SendPassword writes a password followed by a newline. The literal bytes
// reach transcript.log like any other input; interaction.log and
// session.json only ever see a redaction placeholder.
func (s *Session) SendPassword(ctx context.Context, password string) (Response, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if !s.Alive() {
		return s.terminalResponse(""), nil
	}
	_ = s.store.LogInteraction("password", password)
	cursor := s.ring.Cursor()
	if _, err := s.channel.Write([]byte(password + "\n")); err != nil {
		return Response{}, err
	}
	chunk, newCursor := quiescence.Collect(ctx, s.ring, cursor, s.cfg.Quiescence(), s.cfg.MaxWait())
	s.readCursor = newCursor
	return s.classify(string(chunk)), nil
}

// SendSignal delivers a named signal to the child's process group.
func (s *Session) SendSignal(name string) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if !s.Alive() {
		return ptyerr.Terminated(s.id)
	}
	return s.channel.Signal(name)
}

// PollOutput returns whatever has arrived since the session's own last
// poll, without waiting for quiescence.
func (s *Session) PollOutput() Response {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	chunk, newCursor := quiescence.Poll(s.ring, s.readCursor, 50*time.Millisecond)
	s.readCursor = newCursor
	return s.classify(string(chunk))
}

// Expect waits for the rendered screen to match pattern.
func (s *Session) Expect(ctx context.Context, pattern quiescence.Matcher) (matched bool, resp Response) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	ok, _ := quiescence.Expect(ctx, s.emulator, pattern, 100*time.Millisecond, s.cfg.MaxWait())
	return ok, s.classify("")
}

// ExpectPrompt waits until the shell's own prompt reappears, the
// convenience form of Expect that most callers want after Run.
func (s *Session) ExpectPrompt(ctx context.Context) (matched bool, resp Response) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	deadline := time.Now().Add(s.cfg.MaxWait())
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if ok, _ := s.prompts.Match(s.emulator.Screen()); ok {
			return true, s.classify("")
		}
		if time.Now().After(deadline) {
			return false, s.classify("")
		}
		select {
		case <-ctx.Done():
			return false, s.classify("")
		case <-ticker.C:
		}
	}
}

// GetScreen returns the current rendered screen.
func (s *Session) GetScreen() Response {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.classify("")
}

// GetScrollback returns up to maxLines of scrollback text.
func (s *Session) GetScrollback(maxLines int) string {
	return s.emulator.Scrollback(maxLines)
}

// ClearScrollback discards accumulated scrollback.
func (s *Session) ClearScrollback() {
	s.emulator.ClearScrollback()
}

// Metadata describes session bookkeeping useful to a caller deciding
// whether to keep talking to this session.
type Metadata struct {
	ID         string
	Command    string
	Cwd        string
	Alive      bool
	ExitCode   int
	CreatedAt  time.Time
	TranscriptDir string
}

// GetMetadata returns the session's bookkeeping fields.
func (s *Session) GetMetadata() Metadata {
	return Metadata{
		ID:            s.id,
		Command:       s.command,
		Cwd:           s.cwd,
		Alive:         s.Alive(),
		ExitCode:      int(s.exitCode.Load()),
		CreatedAt:     s.createdAt,
		TranscriptDir: s.store.Dir(),
	}
}

// ConfigureSession updates the prompt-detection override and/or resizes
// the PTY and emulator together, keeping them from disagreeing about the
// screen's dimensions.
func (s *Session) ConfigureSession(promptOverride string, cols, rows int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	if promptOverride != "" {
		if err := s.prompts.SetOverride(promptOverride); err != nil {
			return ptyerr.InvalidArgument(err.Error())
		}
	}
	if cols > 0 && rows > 0 {
		if err := s.channel.Resize(cols, rows); err != nil {
			return err
		}
		s.emulator.Resize(cols, rows)
	}
	return nil
}

// GetChildEnv runs `env` through the session and parses KEY=VALUE pairs
// for the requested keys, supplementing the core operation set with the
// environment-capture helper the Python original exposed.
func (s *Session) GetChildEnv(ctx context.Context, keys ...string) (map[string]string, error) {
	resp, err := s.Run(ctx, "env")
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := make(map[string]string)
	for _, line := range splitLines(resp.Output) {
		k, v, ok := splitKV(line)
		if !ok {
			continue
		}
		if len(keys) == 0 || want[k] {
			out[k] = v
		}
	}
	return out, nil
}

// Subscribe streams every byte written to the PTY from this point
// forward, independent of PollOutput's own cursor, so an attached client
// can watch a session live without disturbing a concurrent caller that's
// driving it with Run/PollOutput. The returned channel is closed when ctx
// is done or the session exits.
func (s *Session) Subscribe(ctx context.Context) <-chan []byte {
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		cursor := s.ring.Cursor()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				chunk, newCursor := s.ring.Since(cursor)
				cursor = newCursor
				if len(chunk) > 0 {
					select {
					case out <- chunk:
					case <-ctx.Done():
						return
					}
				}
				if !s.Alive() {
					return
				}
			}
		}
	}()
	return out
}

// Terminate signals the child to exit and tears down the session's
// resources: the ingestion loop, the transcript store's symlink, and the
// PTY channel.
func (s *Session) Terminate() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.terminated.Store(true)
	if s.Alive() {
		if err := s.channel.Close(); err != nil {
			return err
		}
	}
	return s.store.Close()
}

func (s *Session) classify(output string) Response {
	ctx := context.Background()
	if !s.Alive() {
		return s.terminalResponse(output)
	}
	screen := s.emulator.Screen()
	scrollback := s.emulator.Scrollback(200)
	result := s.classifier.Classify(ctx, screen, scrollback, s.emulator.AltScreen(), s.Alive())
	return Response{Status: result.Status, Output: output, Screen: screen, StateReason: result.Reason}
}

// terminalResponse builds the uniform Response for a session that is no
// longer alive, distinguishing an explicit Terminate from the child
// simply exiting on its own. The emulator keeps its last rendered screen
// after the child is gone, so callers still get a screen back.
func (s *Session) terminalResponse(output string) Response {
	screen := s.emulator.Screen()
	if s.terminated.Load() {
		return Response{Status: classify.Terminated, Output: output, Screen: screen, StateReason: "session was explicitly terminated"}
	}
	return Response{Status: classify.EOF, Output: output, Screen: screen, StateReason: "child process exited"}
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func splitKV(line string) (key, value string, ok bool) {
	for i := 0; i < len(line); i++ {
		if line[i] == '=' {
			return line[:i], line[i+1:], true
		}
	}
	return "", "", false
}
