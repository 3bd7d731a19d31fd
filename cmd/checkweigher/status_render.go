package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"checkweigher/internal/line"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 18

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		status += " " + message
	}
	base := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// verdictStatus maps a verdict onto a status colour.
func verdictStatus(v line.Verdict) statusKind {
	switch v {
	case line.VerdictPassed:
		return statusOK
	case line.VerdictRejected:
		return statusError
	case line.VerdictWaiting:
		return statusWarn
	default:
		return statusInfo
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var titleCaser = cases.Title(language.Und)

// displayLabel turns an identifier such as "non_ferrous" into "Non Ferrous".
func displayLabel(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if s == "" {
		return "-"
	}
	return titleCaser.String(s)
}

func contaminantLabel(c line.Contaminant) string {
	if !c.Present() {
		return "Clear"
	}
	return fmt.Sprintf("%s (%.1f mm)", displayLabel(string(c)), c.SizeMM())
}

func verdictLabel(v line.Verdict, reason line.RejectReason) string {
	if v == line.VerdictRejected && reason != line.ReasonNone && reason != "" {
		return fmt.Sprintf("Rejected: %s", displayLabel(string(reason)))
	}
	return displayLabel(string(v))
}
