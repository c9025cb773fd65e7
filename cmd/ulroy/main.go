// Command ulroy manages indexes, documents and tasks of the Ulroy API from
// the shell. Every command prints the API response as indented JSON.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
