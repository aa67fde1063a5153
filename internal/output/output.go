package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Printer writes command results either as one JSON document on stdout or
// as styled text, with errors and warnings on a separate writer.
type Printer struct {
	w     io.Writer
	errW  io.Writer
	json  bool
	color bool
	st    styles
}

type styles struct {
	err, ok, warn, hint lipgloss.Style
	title, rule, key    lipgloss.Style
	header, dim         lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain, plain, plain, plain, plain}
	}
	fg := func(c string) lipgloss.Style { return lipgloss.NewStyle().Foreground(lipgloss.Color(c)) }
	return styles{
		err:    fg("9").Bold(true),
		ok:     fg("10"),
		warn:   fg("11"),
		hint:   fg("13"),
		title:  fg("12").Bold(true),
		rule:   lipgloss.NewStyle().Faint(true),
		key:    fg("14"),
		header: lipgloss.NewStyle().Bold(true),
		dim:    fg("8"),
	}
}

// NewPrinter creates a Printer writing to w. Errors and warnings share w
// until WithStderr is called.
func NewPrinter(w io.Writer, jsonMode, color bool) *Printer {
	return &Printer{w: w, errW: w, json: jsonMode, color: color, st: newStyles(color)}
}

// WithStderr routes human-mode errors and all warnings to w.
func (p *Printer) WithStderr(w io.Writer) *Printer {
	p.errW = w
	return p
}

// IsJSON reports JSON mode.
func (p *Printer) IsJSON() bool {
	return p.json
}

// Success prints a result map. Human mode prints data["message"] when
// present, otherwise the keys in sorted order.
func (p *Printer) Success(data map[string]any) error {
	if p.json {
		return p.WriteJSON(data)
	}
	if msg, ok := data["message"].(string); ok {
		p.line(p.w, p.st.ok.Render(msg))
		return nil
	}
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.KeyValue(k, fmt.Sprint(data[k]))
	}
	return nil
}

// Error prints err with its exit code and recovery hint. JSON mode writes
// {"error","code","hint"} to stdout so callers always get a document.
func (p *Printer) Error(err error) {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = &ExitError{Code: ExitUserError, Message: err.Error()}
	}

	if p.json {
		mustWrite(p.w.Write(append(ErrorJSON(exitErr.Message, exitErr.Code, exitErr.Hint), '\n')))
		return
	}

	p.line(p.errW, p.st.err.Render("Error")+": "+exitErr.Message)
	if exitErr.Cause != nil && exitErr.Cause.Error() != exitErr.Message {
		p.line(p.errW, "  "+p.st.dim.Render(exitErr.Cause.Error()))
	}
	if exitErr.Hint != "" {
		p.line(p.errW, p.st.hint.Render("Hint:")+" "+exitErr.Hint)
	}
}

// Warn prints a warning on the error writer. In JSON mode the warning is a
// one-line {"warning": ...} object there, keeping stdout a single document.
func (p *Printer) Warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.json {
		raw, _ := json.Marshal(map[string]string{"warning": msg})
		p.line(p.errW, string(raw))
		return
	}
	p.line(p.errW, p.st.warn.Render("Warning")+": "+msg)
}

// Print writes formatted text without a trailing newline.
func (p *Printer) Print(format string, args ...any) {
	mustWrite(fmt.Fprintf(p.w, format, args...))
}

// Println writes a line.
func (p *Printer) Println(args ...any) {
	mustWrite(fmt.Fprintln(p.w, args...))
}

// WriteJSON writes data as indented JSON.
func (p *Printer) WriteJSON(data any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// ErrorJSON returns {"error": message, "code": N, "hint": ...}; hint is
// omitted when empty.
func ErrorJSON(message string, code int, hint string) []byte {
	data := map[string]any{"error": message, "code": code}
	if hint != "" {
		data["hint"] = hint
	}
	raw, _ := json.Marshal(data)
	return raw
}

// Table renders rows under bold headers in borderless, space-aligned
// columns.
func (p *Printer) Table(headers []string, rows [][]string) {
	if len(headers) == 0 {
		return
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).BorderBottom(false).
		BorderLeft(false).BorderRight(false).
		BorderHeader(false).BorderColumn(false).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle()
			if col < len(headers)-1 {
				s = s.PaddingRight(2)
			}
			if row == table.HeaderRow {
				return p.st.header.Inherit(s)
			}
			return s
		})
	p.line(p.w, strings.TrimRight(t.Render(), "\n"))
}

// Section prints a blank line, a title and a rule under it.
func (p *Printer) Section(title string) {
	p.line(p.w, "")
	p.line(p.w, p.st.title.Render(title))
	p.line(p.w, p.st.rule.Render(strings.Repeat("─", lipgloss.Width(title))))
}

// KeyValue prints "key: value".
func (p *Printer) KeyValue(key, value string) {
	p.line(p.w, p.st.key.Render(key+":")+" "+value)
}

// State colors a sync outcome word: synced and ok green, skipped and
// missing yellow, failed red.
func (p *Printer) State(s string) string {
	switch s {
	case "synced", "ok", "pass":
		return p.st.ok.Render(s)
	case "skipped", "missing", "warn":
		return p.st.warn.Render(s)
	case "failed", "fail":
		return p.st.err.Render(s)
	}
	return s
}

func (p *Printer) line(w io.Writer, s string) {
	mustWrite(fmt.Fprintln(w, s))
}

// mustWrite panics on a failed write to stdout, stderr or a buffer.
func mustWrite(_ int, err error) {
	if err != nil {
		panic(fmt.Sprintf("write failed: %v", err))
	}
}
