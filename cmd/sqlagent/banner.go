package main

import (
	"fmt"
	"io"
)

// printBanner prints the sqlagent banner, with a cyan to magenta gradient
// when useColor is set.
func printBanner(w io.Writer, useColor bool) {
	lines := []string{
		``,
		`             _                        _   `,
		`   ___  __ _| | __ _  __ _  ___ _ __ | |_ `,
		`  / __|/ _' | |/ _' |/ _' |/ _ \ '_ \| __|`,
		`  \__ \ (_| | | (_| | (_| |  __/ | | | |_ `,
		`  |___/\__, |_|\__,_|\__, |\___|_| |_|\__|`,
		`          |_|        |___/                `,
		``,
	}

	if !useColor {
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
		return
	}
	colors := []string{
		"\033[1;36m",
		"\033[1;36m",
		"\033[1;96m",
		"\033[1;34m",
		"\033[1;35m",
		"\033[1;95m",
		"\033[1;95m",
		"\033[0m",
	}
	for i, line := range lines {
		fmt.Fprintf(w, "%s%s\033[0m\n", colors[i%len(colors)], line)
	}
}
