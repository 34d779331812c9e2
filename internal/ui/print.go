package ui

import (
	"fmt"
	"io"

	"github.com/strrl/aurora-cli/internal/chat"
)

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, message string) {
	printMarked(w, SuccessStyle.Render("✓"), "", message)
}

// PrintError prints an error message
func PrintError(w io.Writer, message string) {
	printMarked(w, ErrorStyle.Render("✗"), "", message)
}

// PrintInfo prints an informational message
func PrintInfo(w io.Writer, message string) {
	printMarked(w, InfoStyle.Render("ℹ"), "", message)
}

// PrintWarning prints a warning
func PrintWarning(w io.Writer, message string) {
	printMarked(w, WarningStyle.Render("⚠"), "WARNING: ", message)
}

func printMarked(w io.Writer, mark, plainPrefix, message string) {
	if IsTerminal(w) {
		fmt.Fprintf(w, "%s %s\n", mark, message)
		return
	}
	fmt.Fprintf(w, "%s%s\n", plainPrefix, message)
}

// Notifier prints chat notices to a writer
type Notifier struct {
	W io.Writer
}

func (n Notifier) Notify(notice chat.Notice) {
	if notice.Level == chat.NoticeError {
		PrintError(n.W, notice.Message)
		return
	}
	PrintInfo(n.W, notice.Message)
}
