// Package schedule provides the cadences that drive periodic engine
// maintenance such as the stuck-job watchdog.
//
// This package includes:
//   - Schedule interface
//   - Every() for fixed-interval schedules
//   - Cron() for cron expressions and descriptors such as "@every 30s"
//   - Parse() for configuration strings
package schedule
