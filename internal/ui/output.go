// Package ui provides colorized terminal output for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

// Header prints a banner with the given title.
func Header(text string) {
	line := strings.Repeat("=", headerWidth)
	color.Cyan(line)
	color.Cyan(center(text, headerWidth))
	color.Cyan(line)
}

// Step prints a numbered progress step.
func Step(current, total int, text string) {
	color.Blue("[%d/%d] %s", current, total, text)
}

// Success prints a green success message.
func Success(text string) {
	color.Green("✓ %s", text)
}

// Info prints a plain informational message.
func Info(text string) {
	fmt.Println(text)
}

// Warning prints a yellow warning message.
func Warning(text string) {
	color.Yellow("⚠ %s", text)
}

// Error prints a red error message.
func Error(text string) {
	color.Red("✗ %s", text)
}

// BlueText prints text in blue.
func BlueText(text string) {
	color.Blue(text)
}

// YellowText prints text in yellow.
func YellowText(text string) {
	color.Yellow(text)
}

// center left-pads text to sit in the middle of width. Text wider than
// the field is returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
