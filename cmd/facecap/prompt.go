package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const idPrompt = "Enter a numeric user ID here: "

var errEmptyID = errors.New("the user ID must not be empty")

// readID prompts for the user identifier and reads the first line of in.
// The answer is accepted verbatim apart from the surrounding white space.
func readID(in io.Reader, out io.Writer, interactive bool) (string, error) {
	fmt.Fprint(out, idPrompt)

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("unable to read the user ID: %w", err)
	}
	if !interactive {
		// The piped answer is not echoed back.
		fmt.Fprintln(out)
	}

	id := strings.TrimSpace(line)
	if id == "" {
		return "", errEmptyID
	}
	return id, nil
}

// isInteractive reports whether stdin is attached to a terminal.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
