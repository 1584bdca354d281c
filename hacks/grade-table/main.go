// Package main prints the performance grading thresholds.
package main

import (
	"fmt"

	"github.com/codeGROOVE-dev/efftrack/pkg/efficiency"
)

func main() {
	for _, band := range efficiency.GradeBands() {
		fmt.Printf("%-3s >= %5.1f%%  %s\n", band.Grade, band.MinPercent, band.Grade.Label())
	}
	fmt.Printf("%-3s  < %5.1f%%  %s\n", efficiency.GradeD, 0.0, efficiency.GradeD.Label())
	fmt.Printf("Periods: %v\n", efficiency.Periods())
}
