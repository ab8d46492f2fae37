// Package display formats user-facing notices printed after a run.
//
// Notices are printed in yellow when color output is enabled:
//
//	display.FailedFiles(summary.Failed, runID).Display(os.Stdout)
//
// produces
//
//	Warning: 2 files failed
//	    Suggestion:
//	    filebatch history show 1f0c2a9e
package display
