// Package ui holds the terminal output helpers used by the CLI: coloured
// messages, the end-of-run summary and watch mode notifications.
package ui
