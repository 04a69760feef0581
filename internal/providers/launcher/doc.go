// Package launcher keeps the host process table.
//
// Processes are started by the host (never by extensions); extensions get a
// read-only view through GetActiveProcesses and GetProcessStats, and the
// launcher.list / launcher.stats host operations.
//
// Each process has a monitor goroutine that waits for exit and records the
// exit code. Output is kept in a bounded buffer so a chatty process cannot
// grow the host without limit.
package launcher
