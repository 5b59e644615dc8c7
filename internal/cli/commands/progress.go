package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/leapstack-labs/lumen/internal/agent"
)

var stageLabels = map[agent.Stage]string{
	agent.StageThinking:   "Thinking",
	agent.StageExecuting:  "Running query",
	agent.StageCorrecting: "Correcting query",
	agent.StageProjecting: "Projecting trend",
	agent.StageRendering:  "Choosing chart",
	agent.StageNarrating:  "Writing summary",
}

type stageMsg agent.Stage

type runDoneMsg struct{}

// progressModel shows a spinner labelled with the current pipeline stage.
type progressModel struct {
	spinner spinner.Model
	stage   agent.Stage
	styles  Styles
	cancel  context.CancelFunc
	done    bool
}

func newProgressModel(styles Styles, cancel context.CancelFunc) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Info
	return progressModel{
		spinner: sp,
		stage:   agent.StageThinking,
		styles:  styles,
		cancel:  cancel,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stageMsg:
		m.stage = agent.Stage(msg)
		return m, nil
	case runDoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			m.cancel()
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	label, ok := stageLabels[m.stage]
	if !ok {
		label = string(m.stage)
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.styles.Muted.Render(label+"..."))
}

// withProgress runs fn while a spinner follows its stage events. Without a
// terminal the stages are only logged.
func withProgress[T any](ctx context.Context, r *Renderer, logger *slog.Logger, fn func(context.Context, agent.Emitter) T) T {
	if !r.TTY || r.JSON {
		return fn(ctx, agent.EmitterFunc(func(e agent.Event) {
			if e.Type == agent.EventStage {
				logger.Debug("stage", slog.String("stage", string(e.Stage)))
			}
		}))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(r.Styles, cancel), tea.WithOutput(r.ErrOut))

	var result T
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		result = fn(ctx, agent.EmitterFunc(func(e agent.Event) {
			if e.Type == agent.EventStage {
				p.Send(stageMsg(e.Stage))
			}
		}))
		p.Send(runDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		logger.Debug("progress display failed", slog.String("error", err.Error()))
	}
	<-finished
	return result
}
