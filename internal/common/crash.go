// -----------------------------------------------------------------------
// Crash reports - fatal panic capture for post-mortem analysis
// -----------------------------------------------------------------------

package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"time"
)

// CrashLogDir receives crash report files. InstallCrashHandler overrides
// it before any run can panic.
var CrashLogDir = "./logs"

// InstallCrashHandler prepares the crash report directory. Call first
// thing in main, before config loads, so a startup panic still lands on
// disk.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// RecoverWithCrashFile is the deferred last line of defense in main:
// write the report, then exit nonzero.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}

// WriteCrashFile dumps the panic, all goroutine stacks, and runtime
// state to a timestamped file and returns its path. Falls back to
// stderr when the file cannot be written.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	crashPath := filepath.Join(CrashLogDir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	var report bytes.Buffer
	section := func(title string) {
		fmt.Fprintf(&report, "=== %s ===\n", title)
	}

	section("JOBHOUND CRASH REPORT")
	fmt.Fprintf(&report, "Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&report, "Version: %s\n\n", GetFullVersion())

	section("PANIC")
	fmt.Fprintf(&report, "%v\n\n", panicVal)

	section("STACK")
	report.WriteString(stackTrace)
	report.WriteString("\n")

	section("ALL GOROUTINES")
	report.WriteString(allGoroutineStacks())
	report.WriteString("\n")

	section("RUNTIME")
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&report, "NumGoroutine: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&report, "SafeGoSpawned: %d\n", atomic.LoadInt64(&safeGoSpawned))
	fmt.Fprintf(&report, "NumCPU: %d\n", runtime.NumCPU())
	fmt.Fprintf(&report, "GOOS/GOARCH: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&report, "Alloc: %d MB\n", mem.Alloc/1024/1024)
	fmt.Fprintf(&report, "Sys: %d MB\n", mem.Sys/1024/1024)
	fmt.Fprintf(&report, "NumGC: %d\n\n", mem.NumGC)

	section("END CRASH REPORT")

	// Unbuffered write: the process is going down and nothing may flush
	file, err := os.OpenFile(crashPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create crash file: %v\n", err)
		fmt.Fprint(os.Stderr, report.String())
		return ""
	}
	if _, err := file.Write(report.Bytes()); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n", err)
		fmt.Fprint(os.Stderr, report.String())
	}
	file.Sync()
	file.Close()

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\n", crashPath)
	fmt.Fprintf(os.Stderr, "Panic: %v\n", panicVal)
	return crashPath
}

// GetStackTrace returns the calling goroutine's stack.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// allGoroutineStacks grows its buffer until every goroutine fits, capped
// at 64MB.
func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
		if len(buf) > 64*1024*1024 {
			return string(buf[:runtime.Stack(buf, true)])
		}
	}
}
