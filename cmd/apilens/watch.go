package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/apilens/apilens/pkg/apimodel"
	"github.com/apilens/apilens/pkg/discovery"
	"github.com/apilens/apilens/pkg/util"
)

// runWatch re-runs extraction on every debounced source change under
// req.root, printing which entities' name or release tag moved since the
// previous run. Full re-analysis on every change is acceptable per §5's
// linear-in-declaration-count cost; there is no incremental mode.
func runWatch(args []string) error {
	req, err := resolveExtractRequest(args)
	if err != nil {
		return err
	}
	logger := util.NewLogger(util.DefaultLoggerConfig())

	watchOpts := discovery.DefaultWatchOptions()
	if v := flagValue(args, "--debounce", ""); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			watchOpts.DebounceMs = ms
		}
	}

	prev := extractOnce(req, logger)

	onChange := func(path string, op discovery.ChangeOp) {
		verb := "changed"
		if op == discovery.ChangeRemove {
			verb = "removed"
		}
		fmt.Printf("[watch] %s %s, re-extracting...\n", path, verb)

		next := extractOnce(req, logger)
		printWatchDiff(prev, next)
		prev = next
	}


	w, err := discovery.NewWatcher(discovery.Options{Include: req.include, Exclude: req.exclude}, watchOpts, logger, onChange)
	if err != nil {
		return err
	}
	if err := w.Start(req.root); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Printf("[watch] watching %s (ctrl-c to stop)\n", req.root)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	fmt.Println("[watch] stopping")
	return nil
}

// watchSnapshot is the subset of one extraction run's output a watch cycle
// diffs against the previous cycle.
type watchSnapshot struct {
	tagByName map[string]string
}

func extractOnce(req extractRequest, logger *slog.Logger) watchSnapshot {
	result, err := runPackage(req, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[watch] extraction failed: %v\n", err)
		return watchSnapshot{tagByName: map[string]string{}}
	}

	snap := watchSnapshot{tagByName: map[string]string{}}
	collectSnapshot(result.ApiModel, snap.tagByName)
	printDiagnostics(result.Diagnostics)
	return snap
}

// collectSnapshot walks the API model tree, recording each item's resolved
// canonical reference and release tag so two runs can be compared by name.
func collectSnapshot(item *apimodel.Item, out map[string]string) {
	if item == nil {
		return
	}
	if item.CanonicalReference != "" {
		out[item.CanonicalReference] = item.ReleaseTag
	}
	for _, m := range item.Members {
		collectSnapshot(m, out)
	}
}

func printWatchDiff(prev, next watchSnapshot) {
	for name, tag := range next.tagByName {
		if old, ok := prev.tagByName[name]; !ok {
			fmt.Printf("[watch]   + %s (%s)\n", name, tag)
		} else if old != tag {
			fmt.Printf("[watch]   ~ %s: %s -> %s\n", name, old, tag)
		}
	}
	for name := range prev.tagByName {
		if _, ok := next.tagByName[name]; !ok {
			fmt.Printf("[watch]   - %s\n", name)
		}
	}
}
