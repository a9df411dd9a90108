package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/TylerBrock/colorjson"
	"github.com/dshills/svcprobe/pkg/harness"
	"github.com/dshills/svcprobe/pkg/storage"
	"github.com/fatih/color"
)

var (
	passLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	failLabel = color.New(color.FgRed, color.Bold).SprintFunc()
	dimText   = color.New(color.Faint).SprintFunc()
)

// printReport writes a human-readable summary of a harness run.
func printReport(w io.Writer, rec *storage.RunRecord, showOutput bool) {
	if rec.Passed() {
		_, _ = fmt.Fprintf(w, "%s %s (%s)\n", passLabel("PASS"), rec.ID, formatDurationValue(rec.Duration))
	} else {
		_, _ = fmt.Fprintf(w, "%s %s (%s)\n", failLabel("FAIL"), rec.ID, formatDurationValue(rec.Duration))
	}

	_, _ = fmt.Fprintf(w, "Command: %s\n", strings.Join(rec.Command, " "))
	_, _ = fmt.Fprintf(w, "CI: %t\n", rec.CI)

	if rec.StatusCode != 0 {
		_, _ = fmt.Fprintf(w, "Status: %s\n", colorStatus(rec.StatusCode))
		_, _ = fmt.Fprintln(w, "Body:")
		_, _ = fmt.Fprintln(w, formatBody([]byte(rec.Body)))
	}

	if !rec.Passed() {
		_, _ = fmt.Fprintf(w, "%s [%s] %s\n", failLabel("Error:"), rec.Phase, rec.Error)
	}

	if showOutput && rec.Output != "" {
		_, _ = fmt.Fprintln(w, dimText("--- server output ---"))
		_, _ = fmt.Fprint(w, rec.Output)
		if !strings.HasSuffix(rec.Output, "\n") {
			_, _ = fmt.Fprintln(w)
		}
	}
}

// printResponse writes one probe response.
func printResponse(w io.Writer, resp *harness.Response, checkErr error) {
	_, _ = fmt.Fprintf(w, "Status: %s (%s)\n", colorStatus(resp.StatusCode), formatDurationValue(resp.Duration))
	_, _ = fmt.Fprintln(w, formatBody(resp.Body))

	if checkErr != nil {
		_, _ = fmt.Fprintf(w, "%s %v\n", failLabel("FAIL"), checkErr)
		return
	}
	_, _ = fmt.Fprintln(w, passLabel("PASS"))
}

func colorStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return color.New(color.FgGreen).Sprintf("%d", code)
	case code >= 300 && code < 400:
		return color.New(color.FgYellow).Sprintf("%d", code)
	default:
		return color.New(color.FgRed).Sprintf("%d", code)
	}
}

// formatBody pretty prints JSON bodies and passes anything else through.
func formatBody(body []byte) string {
	var obj interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return string(body)
	}

	f := colorjson.NewFormatter()
	f.Indent = 2
	f.DisabledColor = color.NoColor
	s, err := f.Marshal(obj)
	if err != nil {
		return string(body)
	}
	return string(s)
}

func formatDurationValue(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
