package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/leapstack-labs/ledgerlens/internal/prompt"
	"github.com/leapstack-labs/ledgerlens/internal/summary"
)

// Menu texts.
const (
	menuTitle       = "\n--- Escolha a Abordagem para o Resumo Contábil ---"
	menuPrompt      = "Digite o número da sua escolha: "
	menuInvalid     = "Opção inválida. Por favor, digite 1, 2, 3 ou 0."
	menuAgain       = "\nGerar outro resumo? (s/n): "
	menuExit        = "Saindo do programa."
	menuEnd         = "Encerrando o programa."
	menuNoData      = "Nenhum conteúdo de dados foi carregado ou processado. Encerrando."
	menuSuccessRate = "\nTaxa de 'acerto' da API (ausência de erro na última chamada): %.2f%%\n"
)

var menuOptions = []string{
	"1: Prompt 1 (Análise Setorial Concisa) - Ideal para relatórios operacionais diários.",
	"2: Prompt 2 (Briefing Executivo Estratégico) - Ideal para análises mais profundas e estratégicas.",
	"3: Abordagem Híbrida (Prompt 1 como base, Prompt 2 como refinador) - Recomendado para resultados otimizados.",
	"0: Sair",
}

// NewMenuCommand creates the interactive menu command.
func NewMenuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Choose summaries interactively",
		Long: `Load the data once, then pick summaries from a numbered menu:

  1  concise sector analysis (prompt1)
  2  strategic executive briefing (prompt2)
  3  hybrid chain, prompt1 refined by prompt2
  0  exit

Each answer is printed and saved like summarize does. The API success rate
of the session is printed on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd)
		},
	}
}

// lineReader reads one answer per call.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// newLineReader uses readline on terminals and a plain scanner otherwise.
func newLineReader(in io.Reader, out io.Writer) (lineReader, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: file descriptors fit in int
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          menuPrompt,
			Stdin:           f,
			Stdout:          out,
			InterruptPrompt: "^C",
			EOFPrompt:       "0",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize menu: %w", err)
		}
		return rl, nil
	}
	return &scanReader{scanner: bufio.NewScanner(in), out: out, prompt: menuPrompt}, nil
}

type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
	prompt  string
}

func (s *scanReader) Readline() (string, error) {
	_, _ = fmt.Fprint(s.out, s.prompt)
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return s.scanner.Text(), nil
}

func (s *scanReader) SetPrompt(prompt string) { s.prompt = prompt }

func (s *scanReader) Close() error { return nil }

// menuJob maps a menu choice to a job.
func menuJob(choice string) (Job, bool) {
	p1, _ := prompt.Lookup("prompt1")
	p2, _ := prompt.Lookup("prompt2")
	switch choice {
	case "1":
		return SingleJob(p1), true
	case "2":
		return SingleJob(p2), true
	case "3":
		return HybridJob(p1, p2), true
	}
	return Job{}, false
}

// menuTally counts summary outcomes of a session.
type menuTally struct {
	runs      int
	successes int
}

func (t menuTally) rate() float64 {
	if t.runs == 0 {
		return 0
	}
	return float64(t.successes) / float64(t.runs) * 100
}

func runMenu(cmd *cobra.Command) error {
	ctx := cmd.Context()
	cc := NewCommandContext(cmd)
	w := cmd.OutOrStdout()

	if err := cc.Cfg.RequireCredential(); err != nil {
		return err
	}

	data, cleanup, err := loadDataset(ctx, cc)
	if errors.Is(err, ErrNoData) {
		_, _ = fmt.Fprintln(w, menuNoData)
		return nil
	}
	if err != nil {
		return err
	}
	defer cleanup()

	session, closeSession, err := newSession(cc, data, true)
	if err != nil {
		return err
	}
	defer closeSession()

	rl, err := newLineReader(cmd.InOrStdin(), w)
	if err != nil {
		return err
	}
	defer func() { _ = rl.Close() }()

	tally, err := menuLoop(ctx, rl, w, session)
	if tally.runs > 0 {
		_, _ = fmt.Fprintf(w, menuSuccessRate, tally.rate())
	}
	return err
}

// menuLoop runs the choose/generate/continue loop until the user leaves.
func menuLoop(ctx context.Context, rl lineReader, w io.Writer, session *Session) (menuTally, error) {
	var tally menuTally

	_, _ = fmt.Fprintln(w, menuTitle)
	for _, opt := range menuOptions {
		_, _ = fmt.Fprintln(w, opt)
	}

	for {
		rl.SetPrompt(menuPrompt)
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			_, _ = fmt.Fprintln(w, menuEnd)
			return tally, nil
		}
		if err != nil {
			return tally, err
		}

		choice := strings.TrimSpace(line)
		if choice == "0" {
			_, _ = fmt.Fprintln(w, menuExit)
			return tally, nil
		}
		job, ok := menuJob(choice)
		if !ok {
			_, _ = fmt.Fprintln(w, menuInvalid)
			continue
		}

		out, err := session.Run(ctx, job)
		if err != nil {
			return tally, err
		}
		tally.runs++
		if out.OK() {
			tally.successes++
			_, _ = fmt.Fprintln(w, "\n--- Resumo Gerado ---")
			_, _ = fmt.Fprintln(w, out.Text)
			_, _ = fmt.Fprintf(w, "\nO resumo foi salvo em '%s'.\n", displayPath(out.Path))
		} else {
			if out.Aborted {
				_, _ = fmt.Fprintln(w, "\n"+summary.AbortMessage)
			}
			_, _ = fmt.Fprintf(w, "\nNão foi possível gerar o resumo para a opção %s.\n", choice)
			if hint := failureHint(out.Err); hint != "" {
				_, _ = fmt.Fprintf(w, "Hint: %s\n", hint)
			}
		}

		rl.SetPrompt(menuAgain)
		again, err := rl.Readline()
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, readline.ErrInterrupt) {
			return tally, err
		}
		if strings.ToLower(strings.TrimSpace(again)) != "s" {
			_, _ = fmt.Fprintln(w, menuEnd)
			return tally, nil
		}
	}
}
