package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/nearby/internal/domain"
	"github.com/mmcdole/nearby/internal/ui/styles"
)

// printKV writes one aligned label/value line
func printKV(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %v\n", styles.LabelStyle.Render(label), value)
}

// printHeader writes a title with an optional dim annotation
func printHeader(w io.Writer, title, note string) {
	line := styles.TitleStyle.Render(title)
	if note != "" {
		line += " " + styles.DimStyle.Render(note)
	}
	fmt.Fprintln(w, line)
}

// printRecords lists records by display name
func printRecords(w io.Writer, records []domain.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, styles.DimStyle.Render("  (none)"))
		return
	}
	for _, r := range records {
		line := "  " + r.DisplayName()
		var category string
		if r.Field("category", &category) && category != "" {
			line += " " + styles.DimStyle.Render("["+category+"]")
		}
		fmt.Fprintln(w, line)
	}
}

// printRaw lists opaque search results, decoding them as records when possible
func printRaw(w io.Writer, results []json.RawMessage) {
	records := make([]domain.Record, 0, len(results))
	for _, raw := range results {
		var r domain.Record
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		records = append(records, r)
	}
	printRecords(w, records)
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintln(w, styles.ErrorStyle.Render(msg))
}

func printSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, styles.SuccessStyle.Render(msg))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
