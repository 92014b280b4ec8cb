package main

import (
	"fmt"
	"os"

	"github.com/apilens/apilens/pkg/mcplog"
	"github.com/apilens/apilens/pkg/mcpserver"
	"github.com/apilens/apilens/pkg/util"
)

const version = "0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "extract":
		if err := runExtract(args); err != nil {
			fmt.Fprintf(os.Stderr, "apilens extract: %v\n", err)
			os.Exit(1)
		}
	case "watch":
		if err := runWatch(args); err != nil {
			fmt.Fprintf(os.Stderr, "apilens watch: %v\n", err)
			os.Exit(1)
		}
	case "diff":
		equal, err := runDiff(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "apilens diff: %v\n", err)
			os.Exit(1)
		}
		if !equal {
			os.Exit(1)
		}
	case "serve":
		logPath := flagValue(args, "--log", "")
		logger := util.NewLogger(util.DefaultLoggerConfig())
		callLog, err := mcplog.NewLogger(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "apilens serve: %v\n", err)
			os.Exit(1)
		}
		if callLog != nil {
			defer callLog.Close()
		}
		srv := mcpserver.NewServer(logger, callLog)
		if err := srv.ServeStdio(); err != nil {
			fmt.Fprintf(os.Stderr, "apilens serve: %v\n", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("apilens %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: apilens <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  extract    Extract a review file and API model for a package")
	fmt.Println("  watch      Re-run extraction whenever the package's source changes")
	fmt.Println("  diff       Compare two review files, ignoring whitespace-only changes")
	fmt.Println("  serve      Start the MCP server")
	fmt.Println("  version    Print version")
	fmt.Println("  help       Show this help message")
	fmt.Println()
	fmt.Println("extract flags:")
	fmt.Println("  --root PATH         package root to scan (default \".\")")
	fmt.Println("  --entry PATH        entry module path, relative to --root (repeatable)")
	fmt.Println("  --package NAME      package name recorded in the review file / API model")
	fmt.Println("  --out PATH          write the review file here (default stdout)")
	fmt.Println("  --api-model PATH    write the API model JSON here (default: not written)")
	fmt.Println("  --local             treat missing/incompatible release tags as warnings, not errors")
	fmt.Println()
	fmt.Println("watch flags: same as extract, plus")
	fmt.Println("  --debounce MS       debounce window for grouping rapid file events (default 200)")
	fmt.Println()
	fmt.Println("diff flags:")
	fmt.Println("  --old PATH          previous review file")
	fmt.Println("  --new PATH          current review file")
}

// flagValue returns the value following the first occurrence of name in
// args, or def if name is not present.
func flagValue(args []string, name, def string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return def
}

// flagValues returns the value following every occurrence of name in args,
// in order — used for repeatable flags like --entry.
func flagValues(args []string, name string) []string {
	var out []string
	for i, a := range args {
		if a == name && i+1 < len(args) {
			out = append(out, args[i+1])
		}
	}
	return out
}

// hasFlag reports whether name appears anywhere in args.
func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}
