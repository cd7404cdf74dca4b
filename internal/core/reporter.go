package core

import (
	"fmt"
	"io"
	"strings"
)

const bannerWidth = 60

// Reporter writes the human-readable run report. It is the console surface of
// the runner; structured diagnostics go through slog.
type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = io.Discard
	}
	return &Reporter{out: out}
}

func (r *Reporter) Writer() io.Writer {
	return r.out
}

func (r *Reporter) Printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

func (r *Reporter) Rule() {
	r.Printf("%s", strings.Repeat("=", bannerWidth))
}

func (r *Reporter) Banner(title string) {
	r.Rule()
	r.Printf("%s", title)
	r.Rule()
}

func (r *Reporter) Step(n int, title string) {
	r.Printf("\n[%d] %s", n, title)
}

func (r *Reporter) Ok(format string, args ...any) {
	r.Printf("   ✅ "+format, args...)
}

func (r *Reporter) Warn(format string, args ...any) {
	r.Printf("   ⚠️  "+format, args...)
}

func (r *Reporter) Fail(format string, args ...any) {
	r.Printf("❌ "+format, args...)
}

func (r *Reporter) ScriptOutput(stdout, stderr string) {
	r.Printf("\n--- Script output ---")
	if stdout != "" {
		for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
			r.Printf("   %s", line)
		}
	}
	if stderr != "" {
		r.Printf("   [stderr] %s", stderr)
	}
	r.Printf("--- End output ---")
}
