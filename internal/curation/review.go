package curation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrQuit stops a pass at the reviewer's request.
var ErrQuit = errors.New("review stopped")

// Decision is a reviewer's answer for one image.
type Decision int

const (
	Keep Decision = iota
	Reject
	Quit
)

// Item is what the reviewer is asked about.
type Item struct {
	Index   int
	Total   int
	File    string
	Source  string
	Width   int
	Height  int
	Preview string
}

// Reviewer asks a human to keep or reject an image.
type Reviewer interface {
	Review(ctx context.Context, item Item) (Decision, error)
}

// ParseDecision maps a typed answer to a decision: "q" quits, "y" keeps,
// anything else rejects.
func ParseDecision(answer string) Decision {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "q", "quit":
		return Quit
	case "y", "yes":
		return Keep
	default:
		return Reject
	}
}

// Console prompts on a terminal.
type Console struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{reader: bufio.NewReader(in), out: out}
}

// Review blocks until a line is read or ctx is cancelled.
func (c *Console) Review(ctx context.Context, item Item) (Decision, error) {
	fmt.Fprintf(c.out, "\n[%d/%d] %s\n", item.Index, item.Total, item.File)
	fmt.Fprintf(c.out, "  Source: %s\n", item.Source)
	fmt.Fprintf(c.out, "  Size:   %dx%d\n", item.Width, item.Height)
	fmt.Fprint(c.out, "  Keep? [y/n/q]: ")

	line, err := readLine(ctx, c.reader)
	if err != nil {
		return Quit, err
	}
	return ParseDecision(line), nil
}

type lineResult struct {
	line string
	err  error
}

func readLine(ctx context.Context, reader *bufio.Reader) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if errors.Is(res.err, io.EOF) {
			return "", ErrQuit
		}
		return res.line, res.err
	}
}
