package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"smart0183d/internal/catalog"
	"smart0183d/internal/nmea0183"
)

func statsCmd() *cobra.Command {
	var catalogPath string

	cmd := &cobra.Command{
		Use:   "stats <file>",
		Short: "Summarize a recorded sentence log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(catalogPath)
			if err != nil {
				return err
			}
			return printLogStats(args[0], cat)
		},
	}

	cmd.Flags().StringVar(&catalogPath, "catalog", "", "Catalog JSON to check sentence types against (default: built-in)")
	return cmd
}

type logStats struct {
	Lines          int
	Sentences      int
	Comments       int
	Malformed      int
	Noise          int
	SentenceCounts map[string]int
	UnknownTypes   map[string]int
}

func summarizeSentenceLog(r io.Reader, cat *catalog.Catalog) (logStats, error) {
	s := logStats{
		SentenceCounts: map[string]int{},
		UnknownTypes:   map[string]int{},
	}

	known := map[string]bool{}
	for _, t := range cat.Types() {
		known[t] = true
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), 4096)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.Lines++
		if strings.HasPrefix(line, "#") {
			s.Comments++
			continue
		}

		sent, err := nmea0183.Decode(line)
		if err != nil {
			if errors.Is(err, nmea0183.ErrMalformed) {
				s.Malformed++
			} else {
				s.Noise++
			}
			continue
		}
		s.Sentences++
		s.SentenceCounts[sent.SentenceID]++
		if !known[sent.Type] {
			s.UnknownTypes[sent.Type]++
		}
	}
	if err := scanner.Err(); err != nil {
		return s, err
	}
	return s, nil
}

func printLogStats(path string, cat *catalog.Catalog) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := summarizeSentenceLog(f, cat)
	if err != nil {
		return err
	}

	fmt.Printf("path: %s\n", path)
	fmt.Printf("lines: %d\n", s.Lines)
	fmt.Printf("sentences: %d\n", s.Sentences)
	fmt.Printf("comments: %d\n", s.Comments)
	fmt.Printf("malformed: %d\n", s.Malformed)
	fmt.Printf("noise: %d\n", s.Noise)

	ids := make([]string, 0, len(s.SentenceCounts))
	for id := range s.SentenceCounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Printf("sentence_counts:\n")
	for _, id := range ids {
		fmt.Printf("  %s: %d\n", id, s.SentenceCounts[id])
	}

	if len(s.UnknownTypes) > 0 {
		types := make([]string, 0, len(s.UnknownTypes))
		for t := range s.UnknownTypes {
			types = append(types, t)
		}
		sort.Strings(types)
		fmt.Printf("not_in_catalog:\n")
		for _, t := range types {
			fmt.Printf("  %s: %d\n", t, s.UnknownTypes[t])
		}
	}
	return nil
}
