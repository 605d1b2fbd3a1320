package wake

import (
	"bufio"
	"context"
	"io"
	"strings"
)

// Source yields recognized utterances. Next returns io.EOF when the
// recognizer is gone.
type Source interface {
	Next(ctx context.Context) (string, error)
}

// LineSource reads one utterance per line, as printed by an external
// speech recognizer.
type LineSource struct {
	lines chan string
	errc  chan error
}

// NewLineSource starts reading r. Blank lines are skipped.
func NewLineSource(r io.Reader) *LineSource {
	s := &LineSource{
		lines: make(chan string),
		errc:  make(chan error, 1),
	}
	go s.scan(r)
	return s
}

func (s *LineSource) scan(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		s.lines <- line
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	s.errc <- err
	close(s.lines)
}

// Next implements Source.
func (s *LineSource) Next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if ok {
			return line, nil
		}
		err := <-s.errc
		s.errc <- err
		return "", err
	}
}
