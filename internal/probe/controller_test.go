package probe

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucky845/gtipsync/internal/model"
)

// step is one scripted interaction: write out, then (if wait) block until the
// controller sends input.
type step struct {
	out  string
	wait bool
}

type fakeChannel struct {
	pr     *io.PipeReader
	pw     *io.PipeWriter
	inputs chan string
	exit   int
	stderr string

	mu      sync.Mutex
	written []string
	closed  chan struct{}
	done    chan struct{}
	once    sync.Once
}

func newFakeChannel(exit int, steps ...step) *fakeChannel {
	pr, pw := io.Pipe()
	f := &fakeChannel{
		pr: pr, pw: pw,
		inputs: make(chan string, 16),
		exit:   exit,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		for _, s := range steps {
			if _, err := io.WriteString(pw, s.out); err != nil {
				return
			}
			if s.wait {
				select {
				case <-f.inputs:
				case <-f.closed:
					return
				}
			}
		}
		_ = pw.Close()
	}()
	return f
}

func (f *fakeChannel) Read(p []byte) (int, error) { return f.pr.Read(p) }

func (f *fakeChannel) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.written = append(f.written, string(p))
	f.mu.Unlock()
	select {
	case f.inputs <- string(p):
	default:
	}
	return len(p), nil
}

func (f *fakeChannel) Wait() (int, error) {
	select {
	case <-f.done:
	case <-f.closed:
		return -1, nil
	}
	return f.exit, nil
}

func (f *fakeChannel) Close() error {
	f.once.Do(func() {
		close(f.closed)
		_ = f.pr.Close()
	})
	return nil
}

func (f *fakeChannel) Stderr() string { return f.stderr }

func (f *fakeChannel) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

type fakeLauncher struct {
	ch   *fakeChannel
	name string
	args []string
}

func (l *fakeLauncher) Launch(_ context.Context, name string, args []string, _ string) (Channel, error) {
	l.name, l.args = name, args
	return l.ch, nil
}

func fakeExe(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "GoogleTranslateIpCheck")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	return p
}

const scanBlock = "开始测速\r\n" +
	"translate.googleapis.com 扫描结果\r\n" +
	"\x1b[32m1.2.3.4 translate.x.com\x1b[0m\r\n" +
	"5.6.7.8 translate-pa.googleapis.com\r\n"

func TestRunDeclinesPromptOnce(t *testing.T) {
	ch := newFakeChannel(0,
		step{out: scanBlock + HostsPrompt, wait: true},
		step{out: "\r\n已跳过\r\n"},
	)
	l := &fakeLauncher{ch: ch}
	var observed []string
	c := NewController(Options{
		Launcher:           l,
		SuppressHostsWrite: true,
		Timeout:            5 * time.Second,
		Observer:           func(line string) { observed = append(observed, line) },
		Logger:             zerolog.Nop(),
	})

	exe := fakeExe(t)
	res, err := c.Run(context.Background(), exe)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCompleted, res.Outcome)
	assert.Equal(t, "5.6.7.8", res.BestAddress)
	assert.Equal(t, []string{"1.2.3.4 translate.x.com", "5.6.7.8 translate-pa.googleapis.com"}, res.Lines())
	assert.Equal(t, []string{"n\n"}, ch.Written())
	assert.Contains(t, observed, HostsPrompt)

	assert.Equal(t, exe, l.name)
	assert.Equal(t, []string{"-s", "-n"}, l.args)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(exe)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestRunSendsEnterAfterAck(t *testing.T) {
	ch := newFakeChannel(0,
		step{out: scanBlock + HostsPrompt, wait: true},
		step{out: "\r\n设置成功\r\n", wait: true},
		step{out: "bye\r\n"},
	)
	c := NewController(Options{
		Launcher:  &fakeLauncher{ch: ch},
		Responder: scriptedResponder{answer: "y", proceed: true},
		Timeout:   5 * time.Second,
		Logger:    zerolog.Nop(),
	})

	_, err := c.Run(context.Background(), fakeExe(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"y\n", "\n"}, ch.Written())
}

type scriptedResponder struct {
	answer  string
	proceed bool
}

func (r scriptedResponder) Respond(context.Context, string) (string, bool, error) {
	return r.answer, r.proceed, nil
}

func TestRunInteractiveCancel(t *testing.T) {
	ch := newFakeChannel(0, step{out: scanBlock + HostsPrompt, wait: true})
	c := NewController(Options{
		Launcher:  &fakeLauncher{ch: ch},
		Responder: NewInteractiveResponder(strings.NewReader("no\n"), io.Discard),
		Timeout:   5 * time.Second,
		Logger:    zerolog.Nop(),
	})

	res, err := c.Run(context.Background(), fakeExe(t))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCancelled, res.Outcome)
	assert.Empty(t, res.Entries)
	assert.Equal(t, []string{"no\n"}, ch.Written())
}

func TestRunNonZeroExitWins(t *testing.T) {
	ch := newFakeChannel(3, step{out: scanBlock})
	ch.stderr = "boom"
	c := NewController(Options{Launcher: &fakeLauncher{ch: ch}, Timeout: 5 * time.Second, Logger: zerolog.Nop()})

	_, err := c.Run(context.Background(), fakeExe(t))
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Equal(t, "boom", execErr.Stderr)
}

func TestRunIncompleteResult(t *testing.T) {
	ch := newFakeChannel(0, step{out: "1.2.3.4 translate.x.com\r\nfinished\r\n"})
	c := NewController(Options{Launcher: &fakeLauncher{ch: ch}, Timeout: 5 * time.Second, Logger: zerolog.Nop()})

	res, err := c.Run(context.Background(), fakeExe(t))
	var inc *IncompleteResultError
	require.True(t, errors.As(err, &inc))
	assert.Equal(t, 2, inc.Lines)
	assert.Empty(t, res.Entries)
}

func TestRunTimeout(t *testing.T) {
	ch := newFakeChannel(0, step{out: "translate.googleapis.com\r\n1.2.3.4 translate.x.com\r\n", wait: true})
	c := NewController(Options{Launcher: &fakeLauncher{ch: ch}, Timeout: 100 * time.Millisecond, Logger: zerolog.Nop()})

	start := time.Now()
	_, err := c.Run(context.Background(), fakeExe(t))
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, "1.2.3.4", te.Partial.BestAddress)
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestRunResponderFailureEndsSession(t *testing.T) {
	errTerminal := errors.New("terminal gone")
	ch := newFakeChannel(0, step{out: scanBlock + HostsPrompt, wait: true})
	c := NewController(Options{
		Launcher:  &fakeLauncher{ch: ch},
		Responder: NewInteractiveResponder(failingReader{err: errTerminal}, io.Discard),
		Timeout:   30 * time.Second,
		Logger:    zerolog.Nop(),
	})

	start := time.Now()
	_, err := c.Run(context.Background(), fakeExe(t))
	require.ErrorIs(t, err, errTerminal)
	var te *TimeoutError
	assert.False(t, errors.As(err, &te))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, ch.Written())
}

func TestRunAnswersOnlyTheBarePrompt(t *testing.T) {
	ch := newFakeChannel(0, step{out: scanBlock + "提示: " + HostsPrompt + " 仅交互模式可用\r\n"})
	c := NewController(Options{Launcher: &fakeLauncher{ch: ch}, Timeout: 5 * time.Second, Logger: zerolog.Nop()})

	res, err := c.Run(context.Background(), fakeExe(t))
	require.NoError(t, err)
	assert.Equal(t, "5.6.7.8", res.BestAddress)
	assert.Empty(t, ch.Written())
}

func TestCommandElevated(t *testing.T) {
	c := NewController(Options{Elevate: true})
	name, args := c.Command("/w/GoogleTranslateIpCheck")
	assert.Equal(t, "sudo", name)
	assert.Equal(t, []string{"-n", "/w/GoogleTranslateIpCheck", "-s"}, args)
}

const probeScript = `#!/bin/sh
echo "translate.googleapis.com 扫描结果"
echo "1.2.3.4 translate.x.com"
echo "5.6.7.8 translate-pa.googleapis.com"
printf '是否设置到Host文件(Y:设置)'
read ans
echo "answer=$ans"
`

func TestRunRealProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script probe")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	launchers := map[string]Launcher{"pipe": PipeLauncher{}, "pty": DefaultLauncher()}
	for name, l := range launchers {
		t.Run(name, func(t *testing.T) {
			exe := filepath.Join(t.TempDir(), "GoogleTranslateIpCheck")
			require.NoError(t, os.WriteFile(exe, []byte(probeScript), 0o600))

			var mu sync.Mutex
			var observed []string
			c := NewController(Options{
				Launcher: l,
				Timeout:  10 * time.Second,
				Observer: func(line string) {
					mu.Lock()
					observed = append(observed, line)
					mu.Unlock()
				},
				Logger: zerolog.Nop(),
			})

			res, err := c.Run(context.Background(), exe)
			require.NoError(t, err)
			assert.Equal(t, "5.6.7.8", res.BestAddress)
			assert.Len(t, res.Entries, 2)

			mu.Lock()
			defer mu.Unlock()
			assert.Contains(t, strings.Join(observed, "\n"), "answer=n")
		})
	}
}

const stallingScript = `#!/bin/sh
echo "translate.googleapis.com 扫描结果"
echo "1.2.3.4 translate.x.com"
sleep 30
`

func TestRunTimeoutStopsWholeProcessTree(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}

	launchers := map[string]Launcher{"pipe": PipeLauncher{}, "pty": DefaultLauncher()}
	for name, l := range launchers {
		t.Run(name, func(t *testing.T) {
			exe := filepath.Join(t.TempDir(), "GoogleTranslateIpCheck")
			require.NoError(t, os.WriteFile(exe, []byte(stallingScript), 0o600))

			c := NewController(Options{Launcher: l, Timeout: 500 * time.Millisecond, Logger: zerolog.Nop()})

			start := time.Now()
			_, err := c.Run(context.Background(), exe)
			var te *TimeoutError
			require.True(t, errors.As(err, &te), "got %v", err)
			assert.Less(t, time.Since(start), 10*time.Second)
			assert.Equal(t, "1.2.3.4", te.Partial.BestAddress)
		})
	}
}

func TestLauncherByName(t *testing.T) {
	l, err := LauncherByName("pipe")
	require.NoError(t, err)
	assert.IsType(t, PipeLauncher{}, l)

	_, err = LauncherByName("ssh")
	assert.Error(t, err)
}
