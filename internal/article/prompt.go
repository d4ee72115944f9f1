package article

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/seenimoa/finpress/pkg/models"
	"github.com/seenimoa/finpress/pkg/utils"
)

const systemPrompt = `Você é um jornalista financeiro veterano com mais de 15 anos de experiência em cobertura de mercado de capitais, análise fundamentalista e redação de matérias para veículos de grande circulação. Seu estilo é claro, objetivo e preciso, transformando dados técnicos em narrativas jornalísticas acessíveis.`

// section is one block of the article prompt. Present decides whether the
// block is rendered at all.
type section struct {
	Name     string
	Present  func(in *models.ArticleInput) bool
	Template *template.Template
}

func always(*models.ArticleInput) bool { return true }

// insight returns a predicate over the sentiment insights.
func insight(pick ...func(*models.Insights) any) func(*models.ArticleInput) bool {
	return func(in *models.ArticleInput) bool {
		if in.Sentiment.Insights == nil {
			return false
		}
		for _, p := range pick {
			if nonEmpty(p(in.Sentiment.Insights)) {
				return true
			}
		}
		return false
	}
}

var funcs = template.FuncMap{
	"json":    toJSON,
	"present": nonEmpty,
	"num":     numOrNA,
	"brl":     brlOrNA,
	"vol":     volumeOrNA,
	"topics":  func(t models.Topics) string { return orNA(t.String()) },
	"sources": func(s []string) string { return orNA(strings.Join(s, ", ")) },
}

func mustSection(name string, present func(*models.ArticleInput) bool, text string) section {
	return section{
		Name:     name,
		Present:  present,
		Template: template.Must(template.New(name).Funcs(funcs).Parse(text)),
	}
}

var sections = []section{
	mustSection("financial", always, `Você está escrevendo uma matéria sobre a ação {{.Symbol}} ({{.CompanyName}}) para um portal financeiro de credibilidade. A matéria será revisada por editores humanos antes da publicação.

DADOS FINANCEIROS:
- Preço atual: {{brl .Financial.Price}}
- Fechamento anterior: {{brl .Financial.PreviousClose}}
- Variação: {{num .Financial.Change}} ({{num .Financial.ChangePercent}}%)
- Volume negociado: {{vol .Financial.Volume}}
- Capitalização de mercado: {{brl .Financial.MarketCap}}
- P/L: {{num .Financial.PERatio}}
- Dividend Yield: {{num .Financial.DividendYield}}%
- Máxima 52 semanas: {{brl .Financial.High52W}}
- Mínima 52 semanas: {{brl .Financial.Low52W}}

ANÁLISE DE SENTIMENTO:
- Sentimento geral: {{.Sentiment.Sentiment}}
- Score de sentimento: {{printf "%.2f" .Sentiment.Score}}
- Notícias analisadas: {{.Sentiment.NewsCount}}
- Notícias positivas: {{.Sentiment.PositiveCount}}
- Notícias negativas: {{.Sentiment.NegativeCount}}
- Notícias neutras: {{.Sentiment.NeutralCount}}
- Tópicos em destaque: {{topics .Sentiment.TrendingTopics}}
- Fontes de notícias: {{sources .Sentiment.NewsSources}}`),

	mustSection("market", insight(func(i *models.Insights) any { return i.MarketAnalysis }),
		`ANÁLISE DE MERCADO:
{{json .Sentiment.MarketAnalysis}}`),

	mustSection("macro", insight(func(i *models.Insights) any { return i.MacroeconomicAnalysis }),
		`ANÁLISE MACROECONÔMICA:
{{json .Sentiment.MacroeconomicAnalysis}}`),

	mustSection("key-insights", insight(func(i *models.Insights) any { return i.KeyInsights }),
		`INSIGHTS PRINCIPAIS:
{{json .Sentiment.KeyInsights}}`),

	mustSection("strategy", insight(
		func(i *models.Insights) any { return i.StrategicInsights },
		func(i *models.Insights) any { return i.ActionableInsights },
		func(i *models.Insights) any { return i.StrategicAnalysis },
	), `INSIGHTS ESTRATÉGICOS E ANÁLISE:
{{- with .Sentiment.StrategicInsights}}{{if present .}}
Insights Estratégicos: {{json .}}{{end}}{{end}}
{{- with .Sentiment.ActionableInsights}}{{if present .}}
Insights Acionáveis: {{json .}}{{end}}{{end}}
{{- with .Sentiment.StrategicAnalysis}}
Análise Estratégica Completa: {{.}}{{end}}`),

	mustSection("brand", insight(
		func(i *models.Insights) any { return i.BrandPerception },
		func(i *models.Insights) any { return i.EngagementMetrics },
		func(i *models.Insights) any { return i.InvestorConfidence },
		func(i *models.Insights) any { return i.SentimentBreakdown },
	), `MÉTRICAS DE PERCEPÇÃO DE MARCA E COMPORTAMENTO:
{{- with .Sentiment.BrandPerception}}{{if present .}}
Percepção da Marca: {{json .}}{{end}}{{end}}
{{- with .Sentiment.EngagementMetrics}}{{if present .}}
Métricas de Engajamento: {{json .}}{{end}}{{end}}
{{- with .Sentiment.InvestorConfidence}}{{if present .}}
Confiança do Investidor: {{json .}}{{end}}{{end}}
{{- with .Sentiment.SentimentBreakdown}}{{if present .}}
Detalhamento de Sentimento: {{json .}}{{end}}{{end}}`),

	mustSection("analysis", func(in *models.ArticleInput) bool {
		raw := in.Sentiment.RawData
		return raw != nil && (nonEmpty(raw.Analysis.DigitalData) || nonEmpty(raw.Analysis.BehavioralData) ||
			nonEmpty(raw.Analysis.StrategicInsights) || nonEmpty(raw.Analysis.CostOptimization))
	}, `DADOS DIGITAIS E COMPORTAMENTAIS:
{{- with .Sentiment.RawData.Analysis}}
{{- if present .DigitalData}}
Dados Digitais (Volume, Sentimento, Engajamento, Alcance): {{json .DigitalData}}{{end}}
{{- if present .BehavioralData}}
Dados Comportamentais (Intenções de Compra, Reclamações, Feedback, Avaliações): {{json .BehavioralData}}{{end}}
{{- if present .StrategicInsights}}
Insights Estratégicos (Preço, Concorrência, Tendências, Satisfação): {{json .StrategicInsights}}{{end}}
{{- if present .CostOptimization}}
Otimização de Custos (Onde Cortar/Investir): {{json .CostOptimization}}{{end}}
{{- end}}`),

	mustSection("risks", insight(func(i *models.Insights) any { return i.RiskAlerts }),
		`ALERTAS DE RISCO:
{{json .Sentiment.RiskAlerts}}`),

	mustSection("opportunities", insight(func(i *models.Insights) any { return i.ImprovementOpportunities }),
		`OPORTUNIDADES DE MELHORIA:
{{json .Sentiment.ImprovementOpportunities}}`),

	mustSection("guidelines", always, `DIRETRIZES DE REDAÇÃO JORNALÍSTICA:
1. TÍTULO: impactante, informativo e preciso, sem sensacionalismo. Inclua o símbolo da ação quando relevante. Exemplo: "PETR4 registra alta de 3,2% em dia de recuperação do setor petrolífero".
2. INTRODUÇÃO: um parágrafo forte que diga o que está acontecendo e por que é relevante, ancorado em preço e variação.
3. ANÁLISE FINANCEIRA: explique o significado dos números, compare com a faixa de 52 semanas e contextualize P/L e Dividend Yield.
4. CONTEXTO DE MERCADO E SENTIMENTO: relacione as notícias recentes e os tópicos em destaque com os movimentos de preço.
5. PERCEPÇÃO DE MARCA: integre engajamento e confiança do investidor à narrativa, sem apenas listá-los.
6. PERSPECTIVAS: discuta tendências e alertas de risco de forma equilibrada e fundamentada, sem especulação.
7. CONCLUSÃO: síntese equilibrada, sem recomendação explícita de compra ou venda, deixando claro que investimentos exigem análise individual.
8. ESTILO: linguagem profissional, tom neutro, parágrafos curtos e números precisos.
9. FORMATO: use HTML com <h2> para subtítulos, <p> para parágrafos, <strong> para dados importantes e <ul>/<li> para listas.

NÃO INCLUA O AVISO LEGAL NO CONTEÚDO. Ele será adicionado automaticamente.

FORMATO DE SAÍDA:
Retorne APENAS um JSON válido com a seguinte estrutura:
{
  "title": "Título da matéria",
  "content": "Conteúdo completo em HTML"
}
Não inclua texto adicional antes ou depois do JSON.`),
}

// promptView flattens the input for the templates: Sentiment exposes the
// insight fields directly.
type promptView struct {
	CompanyName string
	Symbol      string
	Financial   *models.FinancialRecord
	Sentiment   sentimentView
}

type sentimentView struct {
	models.SentimentRecord
	models.Insights
}

// BuildPrompt renders every present section, separated by blank lines.
func BuildPrompt(in *models.ArticleInput) (string, error) {
	view := promptView{
		CompanyName: in.CompanyName,
		Symbol:      in.Symbol,
		Financial:   &in.Financial,
		Sentiment:   sentimentView{SentimentRecord: in.Sentiment},
	}
	if in.Sentiment.Insights != nil {
		view.Sentiment.Insights = *in.Sentiment.Insights
	}
	view.Sentiment.SentimentRecord.Insights = nil

	var parts []string
	for _, s := range sections {
		if !s.Present(in) {
			continue
		}
		var buf bytes.Buffer
		if err := s.Template.Execute(&buf, view); err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSpace(buf.String()))
	}
	return strings.Join(parts, "\n\n"), nil
}

// nonEmpty reports whether v holds something worth rendering.
func nonEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case map[string]any:
		return len(x) > 0
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	default:
		return true
	}
}

// toJSON renders maps and lists as indented JSON and strings verbatim.
func toJSON(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}

func numOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return utils.FormatDecimal(*v, 2)
}

func brlOrNA(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return utils.FormatBRL(*v)
}

func volumeOrNA(v *int64) string {
	if v == nil {
		return "N/A"
	}
	return utils.FormatVolume(*v)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
