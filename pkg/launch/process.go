package launch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/cuemby/pilot/pkg/log"
	"github.com/cuemby/pilot/pkg/types"
)

// stopGracePeriod is how long Process.Stop waits for a SIGTERM'd child
// to exit before escalating to SIGKILL.
const stopGracePeriod = 10 * time.Second

// Process launches kind's component as a subprocess of binary, re-
// exec'd into the hidden RunSubcommand with its kind and ComponentConfig
// passed through the environment (see encode.go). Grounded on the
// teacher's test/framework/process.go Process type: SIGTERM-then-
// timeout-then-SIGKILL stop, stdout/stderr captured into a LogBuffer
// rather than left to inherit the parent's descriptors.
func Process(ctx context.Context, binary string, kind string, cfg types.ComponentConfig) (Handle, error) {
	encoded, err := EncodeConfig(cfg)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(runCtx, binary, RunSubcommand)
	cmd.Env = append(os.Environ(), EnvKind+"="+kind, EnvConfig+"="+encoded)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("launch: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("launch: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("launch: start %s: %w", binary, err)
	}

	p := &processHandle{
		cmd:    cmd,
		cancel: cancel,
		logs:   &logBuffer{},
		kind:   kind,
		uid:    cfg.UID,
	}
	go p.captureLogs("stdout", stdout)
	go p.captureLogs("stderr", stderr)

	log.Logger.Info().
		Str("uid", cfg.UID).Str("kind", kind).Int("pid", cmd.Process.Pid).
		Msg("launch: process started")

	if ctx != nil {
		go func() {
			<-ctx.Done()
			_ = p.Stop()
		}()
	}

	return p, nil
}

type processHandle struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	logs   *logBuffer
	kind   string
	uid    string

	mu       sync.Mutex
	stopped  bool
	waitErr  error
	waitOnce sync.Once
}

func (p *processHandle) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return p.kill()
	}

	done := make(chan error, 1)
	go func() { done <- p.waitForExit() }()

	select {
	case <-done:
		return nil
	case <-time.After(stopGracePeriod):
		return p.kill()
	}
}

func (p *processHandle) kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("launch: kill %s: %w", p.uid, err)
	}
	return p.waitForExit()
}

// waitForExit calls cmd.Wait exactly once, however many callers race to
// trigger it (Stop via the grace-period path and an explicit Wait()).
func (p *processHandle) waitForExit() error {
	p.waitOnce.Do(func() {
		p.waitErr = p.cmd.Wait()
		p.cancel()
	})
	return p.waitErr
}

func (p *processHandle) Wait() error {
	return p.waitForExit()
}

func (p *processHandle) captureLogs(source string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		p.logs.Append(line)
		log.Logger.Debug().
			Str("uid", p.uid).Str("kind", p.kind).Str("source", source).
			Msg(line)
	}
}

// Logs returns everything captured from the child's stdout/stderr so
// far, interleaved in arrival order.
func (p *processHandle) Logs() string {
	return p.logs.String()
}

// logBuffer is a trimmed version of the teacher's LogBuffer: thread-safe
// accumulation with no timestamp indexing, since pkg/launch has no
// "logs since" use case the way the test framework did.
type logBuffer struct {
	mu    sync.Mutex
	lines []string
}

func (b *logBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf bytes.Buffer
	for _, l := range b.lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.String()
}
