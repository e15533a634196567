package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// promptResolver asks on the terminal which side of each conflict to keep.
// An empty answer or end of input keeps the remote version.
type promptResolver struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptResolver(in io.Reader, out io.Writer) *promptResolver {
	return &promptResolver{in: bufio.NewReader(in), out: out}
}

func (p *promptResolver) Resolve(ctx context.Context, c domain.Conflict) (domain.Resolution, error) {
	fmt.Fprintf(p.out, "\nConflict on %s\n", c.ID)
	fmt.Fprintf(p.out, "  local:  [%s] %s\n", c.Local.Category, c.Local.Text)
	fmt.Fprintf(p.out, "  remote: [%s] %s\n", c.Remote.Category, c.Remote.Text)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		fmt.Fprint(p.out, "Keep (l)ocal or (r)emote? [r]: ")

		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "l", "local":
			return domain.KeepLocal, nil
		case "r", "remote":
			return domain.KeepRemote, nil
		case "":
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
			}

			return domain.KeepRemote, nil
		}

		if errors.Is(err, io.EOF) {
			return domain.KeepRemote, nil
		}

		fmt.Fprintln(p.out, "Please answer l or r.")
	}
}

// printNotifier writes status messages as single lines.
type printNotifier struct {
	w io.Writer
}

func (n printNotifier) Notify(_ context.Context, note ports.Notification) {
	if n.w == nil {
		return
	}

	fmt.Fprintf(n.w, "%-7s %s\n", note.Level, note.Message)
}
