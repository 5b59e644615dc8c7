package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/lumen/internal/agent"
	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/pkg/core"
)

const replPrompt = "lumen> "

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		Long: `Start an interactive session. Each question continues the current
conversation, so follow-ups can refer to earlier answers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd, NeedAll)
			if err != nil {
				return err
			}
			defer cleanup()
			return runREPL(cmd, cc)
		},
	}
}

// replSession tracks the conversation and the last answered cell.
type replSession struct {
	cmd          *cobra.Command
	cc           *CommandContext
	conversation string
	last         *cell.Cell
}

func runREPL(cmd *cobra.Command, cc *CommandContext) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     filepath.Join(filepath.Dir(cc.Cfg.StatePath), "repl_history"),
		AutoComplete:    replCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "lumen (%s target, %s)\n", cc.Cfg.Target.Type, cc.LLM.Model())
	_, _ = fmt.Fprintln(out, "Type a question, .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)

	s := &replSession{cmd: cmd, cc: cc}
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			if quit := s.dot(line); quit {
				return nil
			}
			continue
		}
		s.ask(line, "")
	}
}

func (s *replSession) ask(question, parent string) {
	req := agent.AskRequest{Question: question, ConversationID: s.conversation, ParentCellID: parent}
	s.show(withProgress(s.cmd.Context(), s.cc.Renderer, s.cc.Logger, func(ctx context.Context, emit agent.Emitter) core.Result[*cell.Cell] {
		return s.cc.Agent.Ask(ctx, req, emit)
	}))
}

func (s *replSession) edit(sql string) {
	if s.last == nil {
		s.errorf("no cell to edit yet")
		return
	}
	req := agent.EditRequest{CellID: s.last.ID, SQL: sql}
	s.show(withProgress(s.cmd.Context(), s.cc.Renderer, s.cc.Logger, func(ctx context.Context, emit agent.Emitter) core.Result[*cell.Cell] {
		return s.cc.Agent.RunEdited(ctx, req, emit)
	}))
}

func (s *replSession) show(res core.Result[*cell.Cell]) {
	if err := finish(s.cc.Renderer, res); err == nil && res.Value != nil {
		s.last = res.Value
		if conv, err := s.cc.Store.ConversationOf(s.cmd.Context(), res.Value.ID); err == nil {
			s.conversation = conv
		}
	}
	_, _ = fmt.Fprintln(s.cmd.OutOrStdout())
}

func (s *replSession) errorf(format string, args ...any) {
	_, _ = fmt.Fprintf(s.cmd.ErrOrStderr(), "Error: "+format+"\n", args...)
}

// dot handles a dot-command and reports whether the session should end.
func (s *replSession) dot(line string) bool {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true
	case ".help":
		printREPLHelp(s.cmd.OutOrStdout())
	case ".new":
		s.conversation = ""
		s.last = nil
		_, _ = fmt.Fprintln(s.cmd.OutOrStdout(), "Started a new conversation")
	case ".refine":
		switch {
		case s.last == nil:
			s.errorf("no cell to refine yet")
		case rest == "":
			s.errorf("usage: .refine <question>")
		default:
			s.ask(rest, s.last.ID)
		}
	case ".sql":
		if rest == "" {
			s.errorf("usage: .sql <query>")
			break
		}
		s.edit(rest)
	case ".show":
		if s.last == nil {
			s.errorf("no cell yet")
			break
		}
		_ = s.cc.Renderer.Cell(s.last)
	case ".suggest":
		s.suggest()
	default:
		s.errorf("unknown command %s (type .help for commands)", command)
	}
	return false
}

func (s *replSession) suggest() {
	ctx := s.cmd.Context()
	sc, _ := s.cc.Schema.Current()
	if sc == nil {
		snap := s.cc.Schema.Refresh(ctx)
		if !snap.OK() {
			s.cc.Renderer.Diagnostics(snap.Diagnostics)
			return
		}
		sc = snap.Value
	}
	res := s.cc.Suggest.Suggestions(ctx, sc, false)
	if !res.OK() {
		s.cc.Renderer.Diagnostics(res.Diagnostics)
		return
	}
	_ = s.cc.Renderer.Suggestions(res.Value)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  <question>        Ask a question in the current conversation
  .refine <text>    Refine the last answer
  .sql <query>      Re-run the last answer with your own SQL
  .show             Show the last answer again
  .suggest          Suggest questions about the database
  .new              Start a new conversation
  .help             Show this help message
  .quit / .exit     Exit the REPL

Tips:
  - Use arrow keys to navigate history
  - Press Ctrl+C while a question runs to cancel it
`
	_, _ = fmt.Fprintln(w, help)
}

func replCompleter() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem(".refine"),
		readline.PcItem(".sql"),
		readline.PcItem(".show"),
		readline.PcItem(".suggest"),
		readline.PcItem(".new"),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	)
}
