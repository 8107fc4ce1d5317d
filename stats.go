package main

import (
	"fmt"
)

// PrintComparison writes the adaptive-vs-baseline report to stdout for
// headless runs.
func PrintComparison(report ComparisonReport) {
	if report.Steps == 0 {
		fmt.Println("No steps recorded")
		return
	}

	fmt.Println("=== Run Summary ===")
	fmt.Printf("Steps: %d\n", report.Steps)

	fmt.Println()
	fmt.Println("=== Adaptive Twin ===")
	printTwinSummary(report.Adaptive)

	fmt.Println()
	fmt.Println("=== Baseline Twin ===")
	printTwinSummary(report.Baseline)

	fmt.Println()
	fmt.Println("=== Improvement (adaptive vs baseline) ===")
	fmt.Printf("Waiting Time Reduction: %.2f%%\n", report.Improvement.WaitingTimeReduction)
	fmt.Printf("Queue Length Reduction: %.2f%%\n", report.Improvement.QueueLengthReduction)
	fmt.Printf("Throughput Increase: %.2f%%\n", report.Improvement.ThroughputIncrease)
}

func printTwinSummary(s TwinSummary) {
	fmt.Printf("Avg Waiting Time: %.2f steps\n", s.AvgWaitingTime)
	fmt.Printf("Avg Queue Length: %.2f vehicles\n", s.AvgQueueLength)
	fmt.Printf("Max Waiting Time: %.2f steps\n", s.MaxWaitingTime)
	fmt.Printf("Max Queue Length: %.2f vehicles\n", s.MaxQueueLength)
	fmt.Printf("Total Throughput: %d vehicles\n", s.TotalThroughput)
}
