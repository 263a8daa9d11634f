// Command sheetcli wraps the Workbook API behind three subcommands:
// to-csv, info, and sheets. It is intentionally thin — a demonstration
// of the API, not a feature surface of its own.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/UNO-SOFT/zlog/v2"
	"github.com/google/uuid"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sheetcalc/sheetcalc"
	"github.com/sheetcalc/sheetcalc/csv"
	_ "github.com/sheetcalc/sheetcalc/xls"
	_ "github.com/sheetcalc/sheetcalc/xlsx"
)

var verbose zlog.VerboseVar
var logger = zlog.NewLogger(zlog.MaybeConsoleHandler(&verbose, os.Stderr)).SLog()

// exitCode is one of the CLI's four documented exit codes.
type exitCode int

const (
	exitOK            exitCode = 0
	exitUserError     exitCode = 1
	exitIOError       exitCode = 2
	exitInternalError exitCode = 3
)

func main() {
	os.Exit(int(run(os.Args[1:])))
}

func run(args []string) exitCode {
	rootFS := flag.NewFlagSet("sheetcli", flag.ContinueOnError)
	rootFS.Var(&verbose, "v", "logging verbosity")

	toCSV := newToCSVCommand()
	info := newInfoCommand()
	sheets := newSheetsCommand()

	root := &ffcli.Command{
		Name:        "sheetcli",
		ShortUsage:  "sheetcli <subcommand> [flags] <file>",
		FlagSet:     rootFS,
		Subcommands: []*ffcli.Command{toCSV, info, sheets},
		Exec: func(ctx context.Context, args []string) error {
			return flag.ErrHelp
		},
	}

	if err := root.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUserError
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := root.Run(ctx); err != nil {
		return exitForError(err)
	}
	return exitOK
}

// exitForError maps an *sheetcalc.OpError's code onto the CLI's
// exit-code table; errors sheetcalc didn't produce (flag parsing,
// missing files) are treated as user errors.
func exitForError(err error) exitCode {
	slog.Error("sheetcli", "error", err)
	var oe *sheetcalc.OpError
	switch {
	case !errors.As(err, &oe), errors.Is(err, fs.ErrNotExist):
		return exitUserError
	case sheetcalc.IsOpCode(err, sheetcalc.ErrIO):
		return exitIOError
	case sheetcalc.IsOpCode(err, sheetcalc.ErrInternal):
		return exitInternalError
	case sheetcalc.IsOpCode(err, sheetcalc.ErrInvalidFormat),
		sheetcalc.IsOpCode(err, sheetcalc.ErrInvalidArgument),
		sheetcalc.IsOpCode(err, sheetcalc.ErrInvalidReference),
		sheetcalc.IsOpCode(err, sheetcalc.ErrUnsupportedVersion),
		sheetcalc.IsOpCode(err, sheetcalc.ErrOutOfBounds),
		sheetcalc.IsOpCode(err, sheetcalc.ErrFormulaParse),
		sheetcalc.IsOpCode(err, sheetcalc.ErrCircularReference):
		return exitUserError
	default:
		return exitInternalError
	}
}

func newToCSVCommand() *ffcli.Command {
	fs := flag.NewFlagSet("sheetcli to-csv", flag.ContinueOnError)
	calc := fs.Bool("c", false, "calculate formulas before emitting CSV")
	out := fs.String("o", "", "output file (default: stdout)")
	sheet := fs.Int("sheet", 0, "sheet index to export")

	return &ffcli.Command{
		Name:       "to-csv",
		ShortUsage: "sheetcli to-csv [-c] [-o out] [-sheet n] <file>",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return sheetcalc.NewOpErrorf(sheetcalc.ErrInvalidArgument, "to-csv: expected exactly one <file> argument")
			}
			book, err := sheetcalc.Open(args[0])
			if err != nil {
				return err
			}
			if *calc {
				if err := book.Calculate(); err != nil {
					return err
				}
			}
			ws, err := book.Worksheet(*sheet)
			if err != nil {
				return err
			}

			if *out == "" {
				return csv.Write(os.Stdout, ws, csv.DefaultWriteOptions())
			}
			// Write through a uniquely-named temp file and rename into
			// place on success, so a cancelled or failing write never
			// leaves a partial file at the caller's requested path.
			tmp := *out + "." + uuid.NewString() + ".tmp"
			f, err := os.Create(tmp)
			if err != nil {
				return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
			}
			if err := csv.Write(f, ws, csv.DefaultWriteOptions()); err != nil {
				f.Close()
				os.Remove(tmp)
				return err
			}
			if err := f.Close(); err != nil {
				os.Remove(tmp)
				return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
			}
			if err := os.Rename(tmp, *out); err != nil {
				os.Remove(tmp)
				return sheetcalc.NewOpError(sheetcalc.ErrIO, err)
			}
			return nil
		},
	}
}

func newInfoCommand() *ffcli.Command {
	fs := flag.NewFlagSet("sheetcli info", flag.ContinueOnError)
	return &ffcli.Command{
		Name:       "info",
		ShortUsage: "sheetcli info <file>",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return sheetcalc.NewOpErrorf(sheetcalc.ErrInvalidArgument, "info: expected exactly one <file> argument")
			}
			book, err := sheetcalc.Open(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("sheets: %d\n", book.SheetCount())
			for i, name := range book.SheetNames() {
				ws, _ := book.WorksheetByIndex(i)
				used, ok := ws.UsedRange()
				if !ok {
					fmt.Printf("  [%d] %-20s empty\n", i, name)
					continue
				}
				fmt.Printf("  [%d] %-20s used=%s cells=%d\n", i, name, sheetcalc.FormatRange(used), ws.CellCount())
			}
			if names := book.DefinedNames(); len(names) > 0 {
				fmt.Printf("defined names: %v\n", names)
			}
			return nil
		},
	}
}

func newSheetsCommand() *ffcli.Command {
	fs := flag.NewFlagSet("sheetcli sheets", flag.ContinueOnError)
	return &ffcli.Command{
		Name:       "sheets",
		ShortUsage: "sheetcli sheets <file>",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return sheetcalc.NewOpErrorf(sheetcalc.ErrInvalidArgument, "sheets: expected exactly one <file> argument")
			}
			book, err := sheetcalc.Open(args[0])
			if err != nil {
				return err
			}
			for _, name := range book.SheetNames() {
				fmt.Println(name)
			}
			return nil
		},
	}
}
