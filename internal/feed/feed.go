// Package feed reads the list of targets to probe.
//
// The whole input is read into memory before the first probe starts. Input
// is often piped from a process which shares the database with the scanner,
// so reading it lazily while results are written can deadlock both sides.
package feed

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CZERTAINLY/notary-scan/internal/model"
)

const maxLine = 1024 * 1024

// Open returns the input named by path, "" and "-" stand for stdin.
func Open(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening target list: %w", err)
	}
	return f, nil
}

// ReadAll returns all lines of r in order, with trailing whitespace removed.
func ReadAll(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, strings.TrimRightFunc(scanner.Text(), isSpace))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading target list: %w", err)
	}
	return lines, nil
}

// Parse splits a target line on commas. The line must have at least
// <host:port>,<service-type>.
func Parse(line string) (model.Target, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return model.Target{}, fmt.Errorf("target %q has no service type after ',': %w", line, model.ErrMalformedTarget)
	}
	return model.Target{
		ID:      line,
		Address: fields[0],
		Type:    fields[1],
		Extra:   fields[2:],
	}, nil
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\v' || r == '\f'
}
