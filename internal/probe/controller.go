// Package probe drives one run of the GoogleTranslateIpCheck console program:
// it launches the binary, answers its prompts, and collects the translate
// host block it prints.
package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lucky845/gtipsync/internal/hosts"
	"github.com/lucky845/gtipsync/internal/model"
)

const (
	DefaultTimeout = 10 * time.Minute

	argScan        = "-s"
	argNoHostWrite = "-n"
	maxLineBytes   = 1 << 20
)

// Options configure a Controller. Zero values get defaults in NewController.
type Options struct {
	Launcher           Launcher
	Responder          Responder
	SuppressHostsWrite bool // pass -n so the probe never edits the hosts file
	Elevate            bool // run through "sudo -n"
	Timeout            time.Duration
	Observer           func(line string)
	Logger             zerolog.Logger
}

type Controller struct {
	opts Options
}

func NewController(opts Options) *Controller {
	if opts.Launcher == nil {
		opts.Launcher = DefaultLauncher()
	}
	if opts.Responder == nil {
		opts.Responder = DeclineResponder{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Controller{opts: opts}
}

// Command returns the program and arguments used to start exePath.
func (c *Controller) Command(exePath string) (string, []string) {
	args := []string{argScan}
	if c.opts.SuppressHostsWrite {
		args = append(args, argNoHostWrite)
	}
	if c.opts.Elevate {
		return "sudo", append([]string{"-n", exePath}, args...)
	}
	return exePath, args
}

// Run executes one probe session. A declined interactive prompt is returned as
// a result with OutcomeCancelled and a nil error.
func (c *Controller) Run(ctx context.Context, exePath string) (model.ScanResult, error) {
	log := c.opts.Logger
	if runtime.GOOS != "windows" {
		// #nosec G302 -- the probe must be executable
		if err := os.Chmod(exePath, 0o755); err != nil {
			return model.ScanResult{}, &ExecutionError{ExitCode: -1, Cause: fmt.Errorf("chmod %s: %w", exePath, err)}
		}
	}

	sessCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	name, args := c.Command(exePath)
	log.Info().Str("cmd", name).Strs("args", args).Dur("timeout", c.opts.Timeout).Msg("starting probe")

	ch, err := c.opts.Launcher.Launch(sessCtx, name, args, filepath.Dir(exePath))
	if err != nil {
		return model.ScanResult{}, &ExecutionError{ExitCode: -1, Cause: err}
	}
	defer func() { _ = ch.Close() }()
	stop := context.AfterFunc(sessCtx, func() { _ = ch.Close() })
	defer stop()

	s := &session{ch: ch, opts: c.opts, log: log}
	cancelled, err := s.consume(sessCtx)
	if cancelled {
		cancel()
		_ = ch.Close()
		_, _ = ch.Wait()
		log.Info().Msg("operator declined; probe stopped")
		return model.ScanResult{Outcome: model.OutcomeCancelled, Transcript: s.transcript}, nil
	}
	if err != nil && sessCtx.Err() == nil {
		// The probe is still waiting for input nobody will send.
		cancel()
		_ = ch.Close()
		code, _ := ch.Wait()
		if code > 0 {
			return model.ScanResult{}, &ExecutionError{ExitCode: code, Stderr: ch.Stderr(), Cause: err}
		}
		return model.ScanResult{Transcript: s.transcript}, err
	}

	code, waitErr := ch.Wait()

	switch {
	case errors.Is(sessCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		partial := s.collector.Result()
		partial.Transcript = s.transcript
		return partial, &TimeoutError{After: c.opts.Timeout, Partial: partial}
	case ctx.Err() != nil:
		return model.ScanResult{}, ctx.Err()
	case err != nil:
		return model.ScanResult{}, err
	case waitErr != nil:
		return model.ScanResult{}, &ExecutionError{ExitCode: -1, Stderr: ch.Stderr(), Cause: waitErr}
	case code != 0:
		return model.ScanResult{}, &ExecutionError{ExitCode: code, Stderr: ch.Stderr()}
	}

	res := s.collector.Result()
	res.Transcript = s.transcript
	if res.BestAddress == "" || len(res.Entries) == 0 {
		return res, &IncompleteResultError{Lines: len(s.transcript), Entries: len(res.Entries)}
	}
	log.Info().Int("entries", len(res.Entries)).Str("best", res.BestAddress).Msg("probe finished")
	return res, nil
}

type session struct {
	ch         Channel
	opts       Options
	log        zerolog.Logger
	collector  hosts.Collector
	transcript []string
	acked      bool
}

// consume reads until end of stream. It reports cancelled when the responder
// ended the session.
func (s *session) consume(ctx context.Context) (bool, error) {
	sc := bufio.NewScanner(s.ch)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	sc.Split(SplitLines(HostsPrompt))

	for sc.Scan() {
		line := Clean(sc.Text())
		s.transcript = append(s.transcript, line)
		if s.opts.Observer != nil {
			s.opts.Observer(line)
		}
		s.collector.Feed(line)

		switch {
		case strings.TrimSpace(line) == HostsPrompt:
			answer, proceed, err := s.opts.Responder.Respond(ctx, line)
			if err != nil {
				if ctx.Err() != nil {
					return false, nil
				}
				return false, fmt.Errorf("answer prompt: %w", err)
			}
			s.log.Debug().Str("answer", answer).Msg("answered hosts prompt")
			if err := s.send(answer + "\n"); err != nil {
				return false, err
			}
			if !proceed {
				return true, nil
			}
		case !s.acked && strings.TrimSpace(line) == AckLine:
			s.acked = true
			if err := s.send("\n"); err != nil {
				return false, err
			}
		}
	}
	if err := sc.Err(); !isEndOfStream(err) {
		s.log.Warn().Err(err).Msg("probe output stream ended abnormally")
	}
	return false, nil
}

func (s *session) send(text string) error {
	if _, err := s.ch.Write([]byte(text)); err != nil && !isEndOfStream(err) {
		return fmt.Errorf("write to probe: %w", err)
	}
	return nil
}
