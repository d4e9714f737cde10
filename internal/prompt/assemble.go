// Package prompt assembles reduced excerpts and an instruction into the text
// sent to the model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ledgerlens/internal/reduce"
)

// DataBanner opens the data section.
const DataBanner = "### DADOS A SEREM ANALISADOS ###"

// SystemPersona is the fixed system message for every summary request.
const SystemPersona = "Você é um especialista contábil e financeiro altamente qualificado, capaz de adaptar seu estilo de comunicação e análise conforme solicitado."

// ParagraphDirective asks for a single-paragraph answer.
const ParagraphDirective = "Formato de saída: Parágrafo único."

// ResolveDirective expands the "paragraph" shorthand; any other value is
// used as directive text.
func ResolveDirective(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "paragraph", "paragrafo", "parágrafo":
		return ParagraphDirective
	}
	return strings.TrimSpace(s)
}

// Assembled is an instruction paired with its data section.
// Identical inputs always produce byte-identical output.
type Assembled struct {
	Instruction string
	Data        string
	Directive   string
}

// Empty reports whether there is no data to analyse.
func (a Assembled) Empty() bool {
	return strings.TrimSpace(a.Data) == ""
}

// UserMessage returns the full user message.
func (a Assembled) UserMessage() string {
	return UserMessage(a.Instruction, a.Data, a.Directive)
}

// Stats measures the data section.
func (a Assembled) Stats() Stats {
	return Measure(a.Data)
}

// Assemble builds the data section from excerpts, in input order.
// An empty excerpt list yields an empty data section.
func Assemble(excerpts []reduce.Excerpt, instruction string) Assembled {
	return Assembled{Instruction: instruction, Data: DataBlock(excerpts)}
}

// DataBlock renders excerpts under the data banner.
func DataBlock(excerpts []reduce.Excerpt) string {
	if len(excerpts) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(DataBanner)
	b.WriteString("\n\n")
	for _, ex := range excerpts {
		fmt.Fprintf(&b, "### Arquivo: %s (Shape: %s) ###\n", ex.Name, ex.Shape())
		b.WriteString(ex.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// UserMessage joins an instruction, the data section and an optional output
// directive.
func UserMessage(instruction, data, directive string) string {
	msg := instruction + "\n\nDados:\n" + data
	if d := strings.TrimSpace(directive); d != "" {
		msg += "\n" + d
	}
	return msg
}

// RefineInstruction composes the second stage of a hybrid chain: the refiner
// text, the literal base answer and the original data.
func RefineInstruction(refiner, base, data string) string {
	return refiner +
		"\n\nAnalise o seguinte resumo inicial e os dados originais para enriquecer a resposta:" +
		"\n\nResumo Inicial:\n" + base +
		"\n\nDados Originais:\n" + data
}
