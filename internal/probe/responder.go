package probe

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Responder answers the hosts-file prompt. proceed=false ends the session as
// cancelled after answer has been sent.
type Responder interface {
	Respond(ctx context.Context, prompt string) (answer string, proceed bool, err error)
}

// DeclineResponder always answers "n" and never blocks.
type DeclineResponder struct{}

func (DeclineResponder) Respond(context.Context, string) (string, bool, error) {
	return "n", true, nil
}

// InteractiveResponder relays the prompt to an operator.
type InteractiveResponder struct {
	in  *bufio.Reader
	out io.Writer
}

func NewInteractiveResponder(in io.Reader, out io.Writer) *InteractiveResponder {
	return &InteractiveResponder{in: bufio.NewReader(in), out: out}
}

func (r *InteractiveResponder) Respond(ctx context.Context, _ string) (string, bool, error) {
	_, _ = fmt.Fprint(r.out, "> [y/N] ")

	type reply struct {
		text string
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		s, err := r.in.ReadString('\n')
		ch <- reply{s, err}
	}()

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case rep := <-ch:
		if rep.err != nil && !errors.Is(rep.err, io.EOF) {
			return "", false, fmt.Errorf("read answer: %w", rep.err)
		}
		answer := strings.TrimSpace(rep.text)
		if answer == "" {
			answer = "n"
		}
		return answer, Affirmative(answer), nil
	}
}

// Affirmative reports whether answer means yes.
func Affirmative(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}
