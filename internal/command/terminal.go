package command

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sweeney/light-orchestra/internal/logger"
)

// ReadTerminal feeds one command per non-empty input line into mb until r
// reaches EOF or ctx is done. Lines are parsed with Parse.
func ReadTerminal(ctx context.Context, r io.Reader, mb *Mailbox) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		c := Parse(line)
		c.Source = SourceTerminal
		logger.DebugKV(ctx, "terminal command", "command", c.String())
		mb.Offer(c)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read terminal: %w", err)
	}
	return nil
}
