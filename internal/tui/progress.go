package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pders01/feedscout/internal/feed"
	"github.com/pders01/feedscout/internal/resolve"
)

const maxBarWidth = 60

// ProgressMsg carries one onProgress callback into the program.
type ProgressMsg struct {
	Status string
	Pct    int
}

// DoneMsg ends the program with the run's result.
type DoneMsg struct {
	Result *feed.ValidationResult
}

// ValidationModel shows a live progress bar for one validation run.
type ValidationModel struct {
	url       string
	bar       progress.Model
	spin      spinner.Model
	status    string
	pct       int
	result    *feed.ValidationResult
	cancelled bool
}

func NewValidationModel(url string) ValidationModel {
	bar := progress.New(progress.WithGradient(string(PrimaryColor), string(SecondaryColor)))
	bar.Width = 40

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = LogoStyle

	return ValidationModel{
		url:    url,
		bar:    bar,
		spin:   spin,
		status: MsgStarting,
	}
}

func (m ValidationModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m ValidationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.cancelled = true
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
	case ProgressMsg:
		m.status = msg.Status
		// progress only moves forward on screen
		m.pct = min(max(m.pct, msg.Pct), 100)
	case DoneMsg:
		m.result = msg.Result
		m.pct = 100
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ValidationModel) View() string {
	var b strings.Builder
	if m.result == nil {
		b.WriteString(m.spin.View() + " ")
	}
	b.WriteString(HeaderStyle.Render("Validating ") + URLStyle.Render(truncateMiddle(m.url, maxBarWidth)))
	b.WriteString("\n\n")
	b.WriteString(m.bar.ViewAs(float64(m.pct) / 100))
	b.WriteString("\n")
	b.WriteString(KindOf(m.result).Style().Render(fmt.Sprintf("%3d%% %s", m.pct, m.status)))
	b.WriteString("\n")
	if m.result == nil {
		b.WriteString(HelpStyle.Render("q to cancel") + "\n")
	}
	return b.String()
}

func (m ValidationModel) Result() *feed.ValidationResult {
	return m.result
}

func (m ValidationModel) Cancelled() bool {
	return m.cancelled
}

// RunFunc performs a validation run, reporting progress as it goes.
type RunFunc func(ctx context.Context, onProgress resolve.ProgressFunc) *feed.ValidationResult

// RunValidation drives run under an interactive progress display. Quitting
// early cancels run's context and returns ErrCancelled.
func RunValidation(ctx context.Context, url string, run RunFunc, opts ...tea.ProgramOption) (*feed.ValidationResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewValidationModel(url), append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	go func() {
		res := run(ctx, func(status string, pct int) {
			p.Send(ProgressMsg{Status: status, Pct: pct})
		})
		p.Send(DoneMsg{Result: res})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, wrapErr("progress display", err)
	}
	m, ok := final.(ValidationModel)
	if !ok || m.Cancelled() {
		return nil, ErrCancelled
	}
	return m.Result(), nil
}
