// Package monitoring provides progress reporting for long-running
// transformations. Reporters receive the task name together with completed
// and total step counts; implementations decide how (or whether) to
// surface that.
package monitoring

import "log"

// Reporter receives progress updates. Report is called once before the
// first step with completed=0 and again after every step; completed never
// decreases between calls for the same task.
type Reporter interface {
	Report(task string, completed, total int)
}

// NopReporter discards all progress updates. It is the default for library
// use where nobody is watching.
type NopReporter struct{}

// Report implements Reporter.
func (NopReporter) Report(string, int, int) {}

// LogReporter writes progress percentages to the standard logger.
type LogReporter struct{}

// Report implements Reporter. The displayed percentage is clamped to
// [0, 100] so a misbehaving caller cannot produce nonsense output.
func (LogReporter) Report(task string, completed, total int) {
	percent := 0
	if total > 0 {
		percent = completed * 100 / total
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	log.Printf("monitoring: %s %d%% (%d/%d)", task, percent, completed, total)
}
