package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// replCmd is a line-at-a-time interactive shell: read stdin, Exec,
// print the result or the error.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive read-eval-print loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEngineFromFlags()
		e.SetPrintHook(func(s string) { fmt.Print(s) })

		reader := bufio.NewReader(os.Stdin)
		for {
			fmt.Print("> ")
			line, err := reader.ReadString('\n')
			if line == "" && err != nil {
				fmt.Println()
				return nil
			}
			if line == "\n" {
				continue
			}
			v, execErr := e.Exec(line)
			if execErr != nil {
				fmt.Println("ERROR:", execErr)
				continue
			}
			fmt.Println(e.Describe(v))
			e.Unlock(v) // Exec hands the result back locked
		}
	},
}
