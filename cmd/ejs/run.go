package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/embedjs/ejs"
	"github.com/fsnotify/fsnotify"
)

var watchFlag bool

var runCmd = &cobra.Command{
	Use:   "run <file.js>",
	Short: "Run a script once (or re-run it on save with --watch)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		if watchFlag {
			return runWatching(path)
		}
		return runOnce(path)
	},
}

func init() {
	runCmd.Flags().BoolVar(&watchFlag, "watch", false, "re-run the script whenever it changes on disk")
}

func runOnce(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	e := newEngineFromFlags()
	e.SetPrintHook(func(s string) { fmt.Print(s) })
	_, err = e.Exec(string(src))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Uncaught %s\n", err)
	}
	return nil
}

// runWatching re-execs the script on every fsnotify write event,
// standard dev-loop ergonomics for iterating on a script.
func runWatching(path string) error {
	if err := runOnce(path); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(path); err != nil {
		return err
	}

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				fmt.Fprintf(os.Stderr, "--- %s changed, re-running ---\n", path)
				if err := runOnce(path); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}

func newEngineFromFlags() *ejs.Engine {
	ec := engineConfigFromViper()
	cfg := ejs.NewConfig()
	cfg.SetInt("vm.pool_size", ec.poolSize)
	cfg.SetBool("vm.strict_mode", ec.strict)
	e := ejs.NewEngine(cfg)
	start := time.Now()
	e.SetMicrosecondsHook(func() int64 { return time.Since(start).Microseconds() })
	return e
}
