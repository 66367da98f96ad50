// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The pipeline runs locate -> analyse -> strategy -> resolve -> merge ->
// commit. Merge computation is pure; all I/O happens in the commit layer
// under the locking discipline described in internal/locking.
package services
