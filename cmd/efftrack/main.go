// Package main implements a CLI that evaluates an efficiency measure offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
	"github.com/codeGROOVE-dev/efftrack/pkg/store"
)

func main() {
	format := flag.String("format", "human", "Output format: human or json")
	verbose := flag.Bool("v", false, "Log progress to stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [REQUEST.json]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Evaluate a building efficiency measure without a server.\n")
		fmt.Fprintf(os.Stderr, "The request is read from REQUEST.json, or from stdin when omitted or \"-\".\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s measure.json\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  cat measure.json | %s --format json\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(context.Background(), logger, flag.Arg(0), *format, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "efftrack: %v\n", err)
		os.Exit(1)
	}
}

// run evaluates the request at path (stdin for "" or "-") and writes the report to out.
func run(ctx context.Context, logger *slog.Logger, path, format string, stdin io.Reader, out io.Writer) error {
	if format != "human" && format != "json" {
		return fmt.Errorf("unknown format: %s (must be human or json)", format)
	}

	in := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open request: %w", err)
		}
		defer f.Close() //nolint:errcheck // read-only file
		in = f
	}

	req, err := efficiency.DecodeRequest(in)
	if err != nil {
		return err
	}

	svc := efficiency.NewService(store.NewMemory(), logger)
	rec, err := svc.Calculate(ctx, req)
	if err != nil {
		return err
	}

	if format == "json" {
		return printJSON(out, rec)
	}
	printHumanReadable(out, rec)
	return nil
}

// printHumanReadable writes a per-period report followed by the building summary.
func printHumanReadable(w io.Writer, rec efficiency.CalculationRecord) {
	fmt.Fprintf(w, "BUILDING EFFICIENCY REPORT\n")
	fmt.Fprintf(w, "==========================\n\n")
	fmt.Fprintf(w, "Building:    %s\n", rec.BuildingID)
	fmt.Fprintf(w, "Measure:     %s\n", rec.MeasureName)
	fmt.Fprintf(w, "Calculated:  %s\n\n", rec.CalculationTimestamp.Format("2006-01-02 15:04:05 MST"))

	for i := range rec.Periods {
		p := &rec.Periods[i]
		fmt.Fprintf(w, "%s (%s, %d days)\n", p.Period, p.TimeRange, len(p.Days))
		fmt.Fprintf(w, "  Electric Savings      %12.2f kWh     %8.2f%%   $%10.2f\n",
			p.ElectricSavingsKWh, p.ElectricImprovementPercent, p.ElectricCostSavings)
		fmt.Fprintf(w, "  Gas Savings           %12.2f therms  %8.2f%%   $%10.2f\n",
			p.GasSavingsTherms, p.GasImprovementPercent, p.GasCostSavings)
		fmt.Fprintf(w, "  ---\n")
		fmt.Fprintf(w, "  Overall               %12s         %8.2f%%   $%10.2f   %s\n\n",
			"", p.OverallImprovementPercent, p.TotalCostSavings, p.PerformanceGrade.Display())
	}

	s := rec.Summary
	fmt.Fprintf(w, "==========================\n")
	fmt.Fprintf(w, "TOTAL COST SAVINGS          $%10.2f\n", s.TotalCostSavings)
	fmt.Fprintf(w, "Electric Savings            %11.2f kWh\n", s.TotalElectricSavingsKWh)
	fmt.Fprintf(w, "Gas Savings                 %11.2f therms\n", s.TotalGasSavingsTherms)
	fmt.Fprintf(w, "Average Improvement         %10.2f%%\n", s.AverageImprovementPercent)
	fmt.Fprintf(w, "Best Period                 %s\n", s.BestPerformingPeriod)
	fmt.Fprintf(w, "Worst Period                %s\n", s.WorstPerformingPeriod)
	fmt.Fprintf(w, "OVERALL GRADE               %s\n", s.OverallPerformanceGrade.Display())
	fmt.Fprintf(w, "==========================\n")
}

// printJSON writes the record as indented JSON.
func printJSON(w io.Writer, rec efficiency.CalculationRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rec); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}
	return nil
}
