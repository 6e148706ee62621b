// Package pkg provides shared utilities for the muge driver packages.
//
// This package contains common functionality used across the register bus,
// the indirect access engine, the filter manager and the device facade:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors and typed errors for the driver error taxonomy
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component tag:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentBringup, "device running", "chip", 0x7800)
//
// # Errors
//
// Transport failures are reported as [*BusError] and indirect-access timeouts
// as [*TimeoutError]; both match their sentinel with [errors.Is]:
//
//	if errors.Is(err, pkg.ErrIndirectTimeout) {
//	    target, _ := pkg.TimeoutTarget(err)
//	    // Handle timeout on target
//	}
package pkg
