package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the chat client and blocks until it exits.
func Run(answerer Answerer, tenantID int64, userID string) error {
	p := tea.NewProgram(New(answerer, tenantID, userID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
