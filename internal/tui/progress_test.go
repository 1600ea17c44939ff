package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/feedscout/internal/feed"
)

func update(t *testing.T, m ValidationModel, msg tea.Msg) (ValidationModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	vm, ok := next.(ValidationModel)
	require.True(t, ok)
	return vm, cmd
}

func TestValidationModelProgress(t *testing.T) {
	m := NewValidationModel("https://example.com/feed.xml")
	assert.Contains(t, m.View(), MsgStarting)

	tests := []struct {
		name    string
		msg     ProgressMsg
		wantPct int
	}{
		{"start", ProgressMsg{Status: "Starting validation...", Pct: 10}, 10},
		{"relay", ProgressMsg{Status: "Trying relay servers...", Pct: 25}, 25},
		{"never goes backwards", ProgressMsg{Status: "Trying direct connection...", Pct: 20}, 25},
		{"clamped", ProgressMsg{Status: "overflow", Pct: 140}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd tea.Cmd
			m, cmd = update(t, m, tt.msg)
			assert.Nil(t, cmd)
			assert.Equal(t, tt.wantPct, m.pct)
			assert.Contains(t, m.View(), tt.msg.Status)
		})
	}
}

func TestValidationModelDone(t *testing.T) {
	m := NewValidationModel("https://example.com/feed.xml")
	res := &feed.ValidationResult{IsValid: true, Status: feed.StatusValid}

	m, cmd := update(t, m, DoneMsg{Result: res})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Same(t, res, m.Result())
	assert.False(t, m.Cancelled())
	assert.Equal(t, 100, m.pct)
	assert.NotContains(t, m.View(), "q to cancel")
}

func TestValidationModelCancel(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
		{Type: tea.KeyRunes, Runes: []rune("q")},
	} {
		t.Run(key.String(), func(t *testing.T) {
			m, cmd := update(t, NewValidationModel("https://example.com"), key)
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
			assert.True(t, m.Cancelled())
			assert.Nil(t, m.Result())
		})
	}
}

func TestValidationModelResize(t *testing.T) {
	m, _ := update(t, NewValidationModel("https://example.com"), tea.WindowSizeMsg{Width: 200, Height: 40})
	assert.Equal(t, maxBarWidth, m.bar.Width)

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 8, Height: 40})
	assert.Equal(t, 10, m.bar.Width)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, StatusInfo, KindOf(nil))
	assert.Equal(t, StatusSuccess, KindOf(&feed.ValidationResult{IsValid: true}))
	assert.Equal(t, StatusWarn, KindOf(&feed.ValidationResult{RequiresUserSelection: true}))
	assert.Equal(t, StatusError, KindOf(&feed.ValidationResult{Status: feed.StatusNotFound}))
}
