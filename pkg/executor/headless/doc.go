// Package headless runs a single addon scan without a terminal UI, for cron
// jobs and CI pipelines.
//
// A run opens nothing itself: the caller hands it the live document and a
// manifest fetcher (normally a Playwright session already on the addons
// page). The executor then:
//
//   - streams each result to the console at the configured verbosity
//   - records the run in the SQLite history store when enabled
//   - writes results.json and summary.md artifacts
//   - prints a summary table and reports ErrOutdated when configured to
//     fail on outdated addons
//
// Example usage:
//
//	cfg, _ := headless.LoadConfig("sentinel.yaml")
//	exec, _ := headless.NewExecutor(cfg, headless.Target{
//	    Document: doc,
//	    Fetcher:  fetcher,
//	})
//	summary, err := exec.Run(ctx)
package headless
