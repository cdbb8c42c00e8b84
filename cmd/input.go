package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// errInputAborted reports Ctrl+C at the prompt
var errInputAborted = errors.New("input aborted")

// lineReader reads one line of user input per call. It returns io.EOF when
// the input is exhausted.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineReader uses line editing with in-memory history on a terminal and a
// plain scanner otherwise
func newLineReader(in *os.File) lineReader {
	if term.IsTerminal(int(in.Fd())) && liner.TerminalSupported() {
		line := liner.NewLiner()
		line.SetCtrlCAborts(true)
		return &linerReader{line: line}
	}
	return newScannerReader(in, os.Stderr)
}

type linerReader struct {
	line *liner.State
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", errInputAborted
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *linerReader) Close() error {
	return r.line.Close()
}

type scannerReader struct {
	scanner *bufio.Scanner
	echo    io.Writer
}

func newScannerReader(in io.Reader, echo io.Writer) *scannerReader {
	return &scannerReader{scanner: bufio.NewScanner(in), echo: echo}
}

func (r *scannerReader) ReadLine(prompt string) (string, error) {
	if r.echo != nil {
		fmt.Fprint(r.echo, prompt)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scannerReader) Close() error { return nil }
