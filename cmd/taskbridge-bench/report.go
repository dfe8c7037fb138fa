package main

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Swind/go-task-bridge/core"
)

var (
	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

func colorPrintln(c *color.Color, s string) {
	_, _ = c.Println(s)
}

func printSectionHeader(title string, descriptions ...string) {
	fmt.Println()
	colorPrintln(bold, "===========================================================")
	colorPrintln(bold, title)
	colorPrintln(bold, "===========================================================")
	for _, desc := range descriptions {
		fmt.Println(desc)
	}
	fmt.Println()
}

func printHeader(pool *core.WorkerPool, o options) {
	printSectionHeader("TASKBRIDGE BURST",
		fmt.Sprintf("  pool %s, floor %d, GOMAXPROCS %d", pool.ID(), pool.Floor(), runtime.GOMAXPROCS(0)),
		fmt.Sprintf("  %d items of %v from %d producers", o.items, o.spin, o.producers))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "n/a"
	}
	return d.Round(time.Microsecond).String()
}

func renderBurst(res burstResult, pool *core.WorkerPool) {
	printSectionHeader("SCALING")

	stats := pool.Stats()
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	rows := [][]string{
		{"Items", strconv.Itoa(res.items)},
		{"Failed", strconv.Itoa(res.failed)},
		{"Floor", strconv.Itoa(res.floor)},
		{"Peak workers", strconv.Itoa(res.peak)},
		{"Workers now", strconv.Itoa(stats.Workers)},
		{"Grown / retired / replaced", fmt.Sprintf("%d / %d / %d", stats.Grown, stats.Retired, stats.Replaced)},
		{"Submit time", formatDuration(res.submitted)},
		{"Drain time", formatDuration(res.drained)},
		{"Shrink to floor", formatDuration(res.shrink)},
		{"Throughput (items/s)", strconv.FormatFloat(float64(res.items)/res.drained.Seconds(), 'f', 0, 64)},
	}
	for _, r := range rows {
		_ = table.Append(r[0], r[1])
	}
	if err := table.Render(); err != nil {
		colorPrintln(red, "Error rendering scaling table")
	}

	switch {
	case res.failed > 0:
		colorPrintln(red, fmt.Sprintf("%d items failed", res.failed))
	case res.peak <= res.floor:
		colorPrintln(yellow, "pool never grew above its floor")
	default:
		colorPrintln(green, fmt.Sprintf("grew from %d to %d workers", res.floor, res.peak))
	}
	if res.shrink < 0 {
		colorPrintln(yellow, "pool did not shrink back to its floor in time")
	}
}

func renderSyncDemo(trace stageTrace) {
	printSectionHeader("SYNC BRIDGE",
		fmt.Sprintf("  caller goroutine %d", trace.caller))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Stage", "Goroutine", "Route", "On caller")
	confined := true
	for _, s := range trace.stages {
		onCaller := s.gid == trace.caller
		if s.name != "pool work" && !onCaller {
			confined = false
		}
		_ = table.Append(s.name, strconv.FormatUint(s.gid, 10), s.route.String(), strconv.FormatBool(onCaller))
	}
	if err := table.Render(); err != nil {
		colorPrintln(red, "Error rendering sync table")
	}

	if confined {
		colorPrintln(green, "every continuation resumed on the caller")
	} else {
		colorPrintln(red, "a continuation escaped the caller goroutine")
	}
}
