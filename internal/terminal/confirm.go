package terminal

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Confirm asks whether a translated command should run.
func Confirm(command string, input io.Reader, output io.Writer) (bool, error) {
	if input == nil {
		input = os.Stdin
	}
	return confirmWithScanner(command, bufio.NewScanner(input), output)
}

func confirmWithScanner(command string, scanner *bufio.Scanner, output io.Writer) (bool, error) {
	if output == nil {
		output = os.Stdout
	}

	fmt.Fprintf(output, "Run translated command: %s\n", command)
	fmt.Fprintf(output, "[y] run  [n] skip\n> ")

	for scanner.Scan() {
		choice := strings.ToLower(strings.TrimSpace(scanner.Text()))

		switch choice {
		case "y", "yes":
			return true, nil
		case "n", "no", "":
			fmt.Fprintln(output, "⊘ Skipped")
			return false, nil
		default:
			fmt.Fprintf(output, "Please answer y or n: ")
		}
	}

	if err := scanner.Err(); err != nil {
		return false, err
	}

	return false, nil
}
