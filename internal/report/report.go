// Package report writes generated summaries to result files.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Instruction labels used in result files.
const (
	LabelInstruction = "Instrução do Prompt"
	LabelBase        = "Instrução do Prompt Base (P1)"
	LabelRefine      = "Instrução do Prompt Refinador (P2)"
)

// AnswerHeader precedes the model answer.
const AnswerHeader = "--- RESPOSTA DO MODELO ---"

// FileSuffix is appended to the tag to build the file name.
const FileSuffix = "_resultado.txt"

// Instruction is one labelled instruction recorded in a report.
type Instruction struct {
	Label string
	Text  string
}

// Entry is a single result file.
type Entry struct {
	Model        string
	Tag          string
	Instructions []Instruction
	Answer       string
	RunID        string
	Created      time.Time
}

// Single returns an entry for a single-prompt summary.
func Single(model, tag, instruction, answer string) Entry {
	return Entry{
		Model:        model,
		Tag:          tag,
		Instructions: []Instruction{{Label: LabelInstruction, Text: instruction}},
		Answer:       answer,
	}
}

// Hybrid returns an entry for a base+refine summary.
func Hybrid(model, tag, base, refine, answer string) Entry {
	return Entry{
		Model: model,
		Tag:   tag,
		Instructions: []Instruction{
			{Label: LabelBase, Text: base},
			{Label: LabelRefine, Text: refine},
		},
		Answer: answer,
	}
}

// Render formats e as file content.
func (e Entry) Render() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Modelo Utilizado: %s\n", e.Model)
	if e.RunID != "" {
		fmt.Fprintf(&sb, "ID da Execução: %s\n", e.RunID)
	}
	if !e.Created.IsZero() {
		fmt.Fprintf(&sb, "Gerado em: %s\n", e.Created.Format(time.RFC3339))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "--- %s ---\n", strings.ToUpper(e.Tag))
	for _, in := range e.Instructions {
		fmt.Fprintf(&sb, "%s:\n%s\n\n", in.Label, in.Text)
	}
	sb.WriteString(AnswerHeader + "\n")
	sb.WriteString(e.Answer)
	return sb.String()
}

// ModelDir derives a directory name from a model id: lowercase ASCII
// letters and digits only ("gpt-4o-mini" becomes "gpt4omini").
func ModelDir(model string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(model) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "default"
	}
	return sb.String()
}

// Writer stores entries under <dir>/<model dir>/<tag>_resultado.txt.
type Writer struct {
	dir      string
	modelDir string
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// NewWriter creates a writer rooted at dir. An empty modelDir derives the
// subdirectory from each entry's model.
func NewWriter(dir, modelDir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{
		dir:      dir,
		modelDir: modelDir,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Path returns the file an entry would be written to.
func (w *Writer) Path(e Entry) string {
	sub := w.modelDir
	if sub == "" {
		sub = ModelDir(e.Model)
	}
	return filepath.Join(w.dir, sub, e.Tag+FileSuffix)
}

// Write stores e, overwriting any previous result with the same tag, and
// returns the file path. RunID and Created are filled when unset.
func (w *Writer) Write(e Entry) (string, error) {
	if e.Tag == "" {
		return "", fmt.Errorf("report tag is required")
	}
	if e.RunID == "" {
		e.RunID = w.newID()
	}
	if e.Created.IsZero() {
		e.Created = w.now()
	}

	path := w.Path(e)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(e.Render()), 0o644); err != nil { //nolint:gosec // result files are meant to be shared
		return "", fmt.Errorf("failed to write result file: %w", err)
	}

	w.logger.Info("result saved", "path", path, "run_id", e.RunID)
	return path, nil
}
