package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ledgerlens/internal/reduce"
)

func sampleExcerpts() []reduce.Excerpt {
	return []reduce.Excerpt{
		{Name: "contas_a_pagar", Strategy: reduce.StrategyFull, Rows: 2, Cols: 1, Text: "  valor\n0   100\n1   200"},
		{Name: "contas_a_receber", Strategy: reduce.StrategyFull, Rows: 2, Cols: 1, Text: "  valor\n0    50\n1    75"},
	}
}

func TestAssemble_Layout(t *testing.T) {
	a := Assemble(sampleExcerpts(), "Resuma.")

	want := "### DADOS A SEREM ANALISADOS ###\n\n" +
		"### Arquivo: contas_a_pagar (Shape: (2, 1)) ###\n" +
		"  valor\n0   100\n1   200\n\n" +
		"### Arquivo: contas_a_receber (Shape: (2, 1)) ###\n" +
		"  valor\n0    50\n1    75\n\n"
	assert.Equal(t, want, a.Data)
	assert.Equal(t, "Resuma.", a.Instruction)
	assert.False(t, a.Empty())
}

func TestAssemble_Deterministic(t *testing.T) {
	first := Assemble(sampleExcerpts(), "Resuma.").UserMessage()
	second := Assemble(sampleExcerpts(), "Resuma.").UserMessage()
	assert.Equal(t, first, second)
}

func TestAssemble_PreservesOrder(t *testing.T) {
	ex := sampleExcerpts()
	ex[0], ex[1] = ex[1], ex[0]
	data := Assemble(ex, "x").Data

	assert.Less(t, strings.Index(data, "contas_a_receber"), strings.Index(data, "contas_a_pagar"))
}

func TestAssemble_Empty(t *testing.T) {
	a := Assemble(nil, "Resuma.")
	assert.Equal(t, "", a.Data)
	assert.True(t, a.Empty())
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "P\n\nDados:\nD", UserMessage("P", "D", ""))
	assert.Equal(t, "P\n\nDados:\nD\nFormato de saída: Parágrafo único.", UserMessage("P", "D", ParagraphDirective))
}

func TestResolveDirective(t *testing.T) {
	assert.Equal(t, ParagraphDirective, ResolveDirective("paragraph"))
	assert.Equal(t, ParagraphDirective, ResolveDirective(" Parágrafo "))
	assert.Equal(t, "Formato: tópicos.", ResolveDirective("Formato: tópicos."))
	assert.Equal(t, "", ResolveDirective("  "))
}

func TestRefineInstruction(t *testing.T) {
	got := RefineInstruction("R", "B", "D")
	want := "R\n\nAnalise o seguinte resumo inicial e os dados originais para enriquecer a resposta:\n\nResumo Inicial:\nB\n\nDados Originais:\nD"
	assert.Equal(t, want, got)
}

func TestMeasure(t *testing.T) {
	s := Measure(strings.Repeat("a", 2048))
	assert.Equal(t, 2048, s.Bytes)
	assert.InDelta(t, 2.0, s.KiB, 1e-9)
	assert.Equal(t, 512, s.EstimatedTokens)
	assert.Equal(t, "2.00 KB, ~512 tokens (estimated)", s.String())

	// multi-byte runes count as bytes
	assert.Equal(t, 2, Measure("é").Bytes)
}

func TestCatalog(t *testing.T) {
	keys := Keys()
	assert.Equal(t, []string{"prompt1", "prompt2", "fluxo-caixa", "vendas-categoria", "liquidez", "gastos-natureza"}, keys)

	p1, ok := Lookup("PROMPT1")
	require.True(t, ok)
	assert.Equal(t, "Prompt1_Conciso", p1.Tag)
	assert.True(t, strings.HasPrefix(p1.Text, "Com base nos dados fornecidos"))

	p2, err := Resolve("prompt2")
	require.NoError(t, err)
	assert.Equal(t, "Hibrido_P1_P2", HybridTag(p1, p2))

	_, err = Resolve("nope")
	var unknown *UnknownPromptError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, err.Error(), "prompt1")

	// callers cannot mutate the catalog
	c := Catalog()
	c[0].Text = "changed"
	again, _ := Lookup("prompt1")
	assert.NotEqual(t, "changed", again.Text)
}

func TestCustom(t *testing.T) {
	c := Custom("Analise inadimplência.")
	assert.Equal(t, CustomKey, c.Key)
	assert.Equal(t, "Personalizado", c.Tag)
	assert.Equal(t, "Analise inadimplência.", c.Text)
}
