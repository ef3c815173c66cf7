// Package main is the entry point for the LogJuicer CLI.
package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/logjuicer/logjuicer/cmd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\npanic: %v\n", r)
			fmt.Fprintf(os.Stderr, "\nstack trace:\n%s\n", debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
