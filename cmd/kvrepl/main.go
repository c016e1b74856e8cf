// kvrepl is a simple CLI for exercising the dictionary, event loop, and
// background job pool interactively.
//
// Usage:
//
//	kvrepl
//
// Commands (in REPL):
//
//	put <key> <value>             Insert or update a string entry
//	get <key>                      Retrieve an entry by key
//	del <key>                      Delete an entry
//	len                            Count live entries
//	iterate                        List all entries via the safe iterator
//	scan [cursor]                  Run one ScanCursor step from cursor (default 0)
//	sample <n>                     Sample up to n entries
//	rehashstep [ms]                Drive rehashing for up to ms milliseconds (default 1)
//	loop step                      Run one non-blocking ProcessEvents iteration
//	loop register <fd> <r|w|rw>    Register an fd for readable/writable logging
//	bio submit <type> <label>      Submit a job (close|fsync|free) that logs label
//	bio pending <type>             Show the pending count for a job type
//	help                           Show this help
//	exit / quit / q                Exit
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/kvcore/engine/pkg/bio"
	"github.com/kvcore/engine/pkg/dict"
	"github.com/kvcore/engine/pkg/evloop"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	d := dict.New[string, string](stringType{})

	loop, err := evloop.New(256)
	if err != nil {
		return fmt.Errorf("creating event loop: %w", err)
	}
	defer loop.Destroy()

	pool := bio.New()
	defer func() { _ = pool.KillAll(context.Background()) }()

	repl := &REPL{dict: d, loop: loop, bio: pool}

	return repl.Run()
}

// stringType is the dict.Type used by the REPL's string/string dictionary.
type stringType struct {
	dict.DefaultType[string, string]
}

func (stringType) Hash(k string) uint64      { return dict.SipHashString(k) }
func (stringType) KeyEqual(a, b string) bool { return a == b }

// REPL is the interactive command loop.
type REPL struct {
	dict  *dict.Dict[string, string]
	loop  *evloop.Loop
	bio   *bio.Pool
	liner *liner.State

	fdLog []string
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".kvrepl_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("kvrepl - dictionary/event-loop/bio CLI")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("kvrepl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")

			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "put":
			r.cmdPut(args)

		case "get":
			r.cmdGet(args)

		case "del", "delete":
			r.cmdDelete(args)

		case "len", "count":
			r.cmdLen()

		case "iterate":
			r.cmdIterate()

		case "scan":
			r.cmdScan(args)

		case "sample":
			r.cmdSample(args)

		case "rehashstep":
			r.cmdRehashStep(args)

		case "loop":
			r.cmdLoop(args)

		case "bio":
			r.cmdBio(args)

		case "clear", "cls":
			fmt.Print("\033[H\033[2J")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"put", "get", "del", "delete", "len", "count",
		"iterate", "scan", "sample", "rehashstep",
		"loop", "bio", "clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  put <key> <value>             Insert or update a string entry")
	fmt.Println("  get <key>                      Retrieve an entry by key")
	fmt.Println("  del <key>                      Delete an entry")
	fmt.Println("  len                            Count live entries")
	fmt.Println("  iterate                        List all entries via the safe iterator")
	fmt.Println("  scan [cursor]                  Run one ScanCursor step")
	fmt.Println("  sample <n>                     Sample up to n entries")
	fmt.Println("  rehashstep [ms]                Drive rehashing for up to ms milliseconds")
	fmt.Println("  loop step                      Run one non-blocking ProcessEvents iteration")
	fmt.Println("  loop register <fd> <r|w|rw>    Register an fd for readable/writable logging")
	fmt.Println("  bio submit <type> <label>      Submit a job (close|fsync|free)")
	fmt.Println("  bio pending <type>             Show pending count for a job type")
	fmt.Println("  help                           Show this help")
	fmt.Println("  exit / quit / q                Exit")
}

func (r *REPL) cmdPut(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: put <key> <value>")

		return
	}

	switch r.dict.Replace(args[0], strings.Join(args[1:], " ")) {
	case dict.Inserted:
		fmt.Println("inserted")
	case dict.Updated:
		fmt.Println("updated")
	}
}

func (r *REPL) cmdGet(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: get <key>")

		return
	}

	val, found := r.dict.Find(args[0])
	if !found {
		fmt.Println("(not found)")

		return
	}

	fmt.Println(val)
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: del <key>")

		return
	}

	if err := r.dict.Remove(args[0]); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("deleted")
}

func (r *REPL) cmdLen() {
	fmt.Println(r.dict.Len())
}

func (r *REPL) cmdIterate() {
	it := r.dict.Iterate()
	defer it.Release()

	count := 0

	for {
		e, ok := it.Next()
		if !ok {
			break
		}

		fmt.Printf("%s = %s\n", e.Key, e.Val)
		count++
	}

	fmt.Printf("(%d entries)\n", count)
}

func (r *REPL) cmdScan(args []string) {
	var cursor uint64

	if len(args) >= 1 {
		n, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Printf("Error parsing cursor: %v\n", err)

			return
		}

		cursor = n
	}

	next := r.dict.ScanCursor(cursor, func(e dict.Entry[string, string]) {
		fmt.Printf("%s = %s\n", e.Key, e.Val)
	})

	fmt.Printf("next cursor: %d\n", next)
}

func (r *REPL) cmdSample(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: sample <n>")

		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing count: %v\n", err)

		return
	}

	for _, e := range r.dict.Sample(n) {
		fmt.Printf("%s = %s\n", e.Key, e.Val)
	}
}

func (r *REPL) cmdRehashStep(args []string) {
	budgetMs := int64(1)

	if len(args) >= 1 {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Printf("Error parsing ms: %v\n", err)

			return
		}

		budgetMs = n
	}

	r.dict.RehashMilliseconds(budgetMs, func() int64 { return time.Now().UnixMilli() })

	fmt.Printf("rehashing=%v\n", r.dict.IsRehashing())
}

func (r *REPL) cmdLoop(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: loop step | loop register <fd> <r|w|rw>")

		return
	}

	switch args[0] {
	case "step":
		n, err := r.loop.ProcessEvents(evloop.FileEvents | evloop.TimeEvents | evloop.DontWait)
		if err != nil {
			fmt.Printf("Error: %v\n", err)

			return
		}

		fmt.Printf("dispatched %d handler(s)\n", n)

	case "register":
		r.cmdLoopRegister(args[1:])

	default:
		fmt.Printf("Unknown loop subcommand: %s\n", args[0])
	}
}

func (r *REPL) cmdLoopRegister(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: loop register <fd> <r|w|rw>")

		return
	}

	fd, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Printf("Error parsing fd: %v\n", err)

		return
	}

	var mask evloop.Mask

	switch args[1] {
	case "r":
		mask = evloop.Readable
	case "w":
		mask = evloop.Writable
	case "rw":
		mask = evloop.Readable | evloop.Writable
	default:
		fmt.Println("mask must be r, w, or rw")

		return
	}

	handler := func(_ *evloop.Loop, handlerFD int, _ any, ready evloop.Mask) {
		var parts []string

		if ready&evloop.Readable != 0 {
			parts = append(parts, "R")
		}

		if ready&evloop.Writable != 0 {
			parts = append(parts, "W")
		}

		entry := fmt.Sprintf("fd=%d %s", handlerFD, strings.Join(parts, ""))
		r.fdLog = append(r.fdLog, entry)
		fmt.Println(entry)
	}

	if err := r.loop.Register(fd, mask, handler, nil); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("registered")
}

func (r *REPL) cmdBio(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bio submit <type> <label> | bio pending <type>")

		return
	}

	switch args[0] {
	case "submit":
		r.cmdBioSubmit(args[1:])
	case "pending":
		r.cmdBioPending(args[1:])
	default:
		fmt.Printf("Unknown bio subcommand: %s\n", args[0])
	}
}

func parseJobType(s string) (bio.JobType, error) {
	switch s {
	case "close":
		return bio.CloseFile, nil
	case "fsync":
		return bio.AOFFsync, nil
	case "free":
		return bio.LazyFree, nil
	default:
		return 0, fmt.Errorf("unknown job type %q (want close|fsync|free)", s)
	}
}

func (r *REPL) cmdBioSubmit(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: bio submit <type> <label>")

		return
	}

	t, err := parseJobType(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	label := strings.Join(args[1:], " ")

	if err := r.bio.Submit(t, func() { fmt.Printf("[bio] %s done\n", label) }); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("submitted")
}

func (r *REPL) cmdBioPending(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: bio pending <type>")

		return
	}

	t, err := parseJobType(args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println(r.bio.PendingOf(t))
}
