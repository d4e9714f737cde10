package prompt

import (
	"fmt"
	"strings"
)

// Template is a named instruction.
type Template struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	// Tag names result files, e.g. Prompt1_Conciso_resultado.txt.
	Tag string `json:"tag"`
	// Short is used when composing hybrid tags.
	Short string `json:"short"`
	Text  string `json:"text"`
}

// CustomKey identifies ad-hoc instructions.
const CustomKey = "custom"

var catalog = []Template{
	{
		Key:   "prompt1",
		Title: "Análise Setorial Concisa",
		Tag:   "Prompt1_Conciso",
		Short: "P1",
		Text: `Com base nos dados fornecidos, elabore um único resumo conciso contendo quatro seções:

1. Fluxo de Caixa Operacional
2. Desempenho de Vendas por Categoria
3. Liquidez da Empresa
4. Principais Gastos – maiores centros de custo e variação relevante.

Use linguagem direta, sem jargões desnecessários, focada em decisões rápidas.`,
	},
	{
		Key:   "prompt2",
		Title: "Briefing Executivo Estratégico",
		Tag:   "Prompt2_Estrategico",
		Short: "P2",
		Text: `Você é um Analista Financeiro Sênior encarregado de preparar um briefing executivo para a diretoria. Com base nos dados financeiros fornecidos (incluindo categorias, contas a pagar, contas a receber, movimento financeiro, naturezas financeiras, produtos e vendas):
1. Sumário Executivo: Apresente um panorama geral da saúde financeira da empresa, considerando a interação entre vendas, custos (implícitos nas contas a pagar e naturezas financeiras) e o fluxo de caixa (movimento financeiro).
2. Indicadores Chave (KPIs): Destaque os 3-5 KPIs mais relevantes. Considere:
    * Rentabilidade por produto ou categoria (cruzando df_vendas, df_produtos, df_categorias).
    * Ciclo de conversão de caixa (analisando prazos de df_contas_a_receber e df_contas_a_pagar).
    * Níveis de inadimplência (de df_contas_a_receber).
    * Concentração de vendas (em produtos ou categorias).
3. Principais Riscos e Alertas: Identifique de 2 a 3 riscos financeiros ou operacionais críticos. Analise:
    * Riscos de liquidez com base no movimento financeiro e nas obrigações de contas a pagar versus recebíveis.
    * Dependência excessiva de poucos produtos ou categorias (df_produtos, df_categorias, df_vendas).
    * Aumento de despesas específicas (df_naturezas_financeiras, df_contas_a_pagar).
4. Recomendações Estratégicas: Sugira de 1 a 2 ações prioritárias para mitigar riscos ou capitalizar oportunidades, referenciando quais áreas (vendas, gestão de pagamentos/recebimentos, etc.) seriam impactadas.
Utilize bullet points para clareza e uma linguagem direta e focada na tomada de decisão.`,
	},
	{
		Key:   "fluxo-caixa",
		Title: "Fluxo de Caixa",
		Tag:   "Fluxo_Caixa",
		Short: "FC",
		Text:  "Você é um especialista em contabilidade. Analise os dados financeiros e gere um resumo conciso do fluxo de caixa operacional.",
	},
	{
		Key:   "vendas-categoria",
		Title: "Vendas por Categoria",
		Tag:   "Vendas_Categoria",
		Short: "VC",
		Text:  "Você é um especialista em análise de vendas. Analise os dados de vendas por categoria e destaque o desempenho.",
	},
	{
		Key:   "liquidez",
		Title: "Liquidez",
		Tag:   "Liquidez",
		Short: "LQ",
		Text:  "Você é um especialista em análise financeira. Resuma a liquidez da empresa com base nos dados financeiros.",
	},
	{
		Key:   "gastos-natureza",
		Title: "Gastos por Natureza",
		Tag:   "Gastos_Natureza",
		Short: "GN",
		Text:  "Você é um especialista em análise de custos. Resuma os principais tipos de gastos.",
	},
}

// Catalog returns the built-in templates in display order.
func Catalog() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

// Keys returns the catalog keys in display order.
func Keys() []string {
	keys := make([]string, len(catalog))
	for i, t := range catalog {
		keys[i] = t.Key
	}
	return keys
}

// Lookup finds a template by key (case-insensitive).
func Lookup(key string) (Template, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, t := range catalog {
		if t.Key == k {
			return t, true
		}
	}
	return Template{}, false
}

// Resolve is Lookup returning an error naming the valid keys.
func Resolve(key string) (Template, error) {
	t, ok := Lookup(key)
	if !ok {
		return Template{}, &UnknownPromptError{Key: key, Available: Keys()}
	}
	return t, nil
}

// Custom wraps ad-hoc instruction text.
func Custom(text string) Template {
	return Template{
		Key:   CustomKey,
		Title: "Prompt Personalizado",
		Tag:   "Personalizado",
		Short: "PP",
		Text:  text,
	}
}

// HybridTag names the result file of a base+refine chain.
func HybridTag(base, refine Template) string {
	return fmt.Sprintf("Hibrido_%s_%s", base.Short, refine.Short)
}

// UnknownPromptError is returned for keys not in the catalog.
type UnknownPromptError struct {
	Key       string
	Available []string
}

func (e *UnknownPromptError) Error() string {
	return fmt.Sprintf("unknown prompt %q\nAvailable prompts: %v\nHint: run 'ledgerlens prompts' to list them", e.Key, e.Available)
}
