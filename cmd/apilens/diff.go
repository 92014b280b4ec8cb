package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/apilens/apilens/pkg/span"
)

// runDiff compares two review files with span's whitespace-collapse
// equivalence rule, so CI can gate on real API changes without
// re-running extraction and without flagging reformatting noise.
// It returns whether the two files are equivalent.
func runDiff(args []string) (bool, error) {
	oldPath := flagValue(args, "--old", "")
	newPath := flagValue(args, "--new", "")
	if oldPath == "" || newPath == "" {
		return false, fmt.Errorf("both --old and --new are required")
	}

	oldBytes, err := os.ReadFile(oldPath)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", oldPath, err)
	}
	newBytes, err := os.ReadFile(newPath)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", newPath, err)
	}

	oldText, newText := string(oldBytes), string(newBytes)
	if span.AreEquivalentApiFileContents(oldText, newText) {
		fmt.Println("no API changes")
		return true, nil
	}

	printLineDiff(oldText, newText)
	return false, nil
}

// printLineDiff prints a minimal unified-style diff: lines only in the old
// file prefixed "-", lines only in the new file prefixed "+". It is not a
// longest-common-subsequence diff — good enough for a review file's mostly
// append/rename changes, not meant to minimize hunk count.
func printLineDiff(oldText, newText string) {
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")

	oldSet := make(map[string]int, len(oldLines))
	for _, l := range oldLines {
		oldSet[l]++
	}
	newSet := make(map[string]int, len(newLines))
	for _, l := range newLines {
		newSet[l]++
	}

	for _, l := range oldLines {
		if newSet[l] == 0 {
			fmt.Printf("- %s\n", l)
		}
	}
	for _, l := range newLines {
		if oldSet[l] == 0 {
			fmt.Printf("+ %s\n", l)
		}
	}
}
