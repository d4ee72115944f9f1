package sentiment

import (
	"strings"
	"text/template"
	"time"

	"github.com/seenimoa/finpress/pkg/models"
	"github.com/seenimoa/finpress/pkg/utils"
)

// maxPromptNews caps the items embedded in the prompt.
const maxPromptNews = 15

const systemPrompt = `Você é um analista especializado em métricas de presença e percepção de marca, análise comportamental do público e geração de insights estratégicos acionáveis.`

var promptTemplate = template.Must(template.New("sentiment").Funcs(template.FuncMap{
	"num":  optNum,
	"int":  optInt,
	"date": func(t time.Time) string { return t.Format(time.RFC3339) },
	"inc":  func(i int) int { return i + 1 },
}).Parse(`Empresa: {{.Company}} (Ticker: {{.Symbol}})

{{with .Financial -}}
Dados Financeiros Atuais:
- Preço: {{num .Price}}
- Variação: {{num .ChangePercent}}%
- Volume: {{int .Volume}}
- Market Cap: {{num .MarketCap}}
- P/L: {{num .PERatio}}
- Dividend Yield: {{num .DividendYield}}%
- Alta 52 semanas: {{num .High52W}}
- Baixa 52 semanas: {{num .Low52W}}
{{- else -}}
Dados financeiros não disponíveis.
{{- end}}

Notícias e Menções ({{.Total}} itens):
{{range $i, $n := .News}}
{{inc $i}}. [{{$n.SourceName}}] {{$n.Title}}
{{- if $n.Description}}
   {{$n.Description}}
{{- end}}
{{- if not $n.PublishedAt.IsZero}}
   Publicado em: {{date $n.PublishedAt}}
{{- end}}
{{end}}
Com base nessas informações, forneça uma análise COMPLETA e ESTRATÉGICA em formato JSON com a seguinte estrutura:

{
  "sentiment": "positive|negative|neutral",
  "sentiment_score": número entre -1 e 1,
  "news_count": {{.Total}},
  "positive_count": número,
  "negative_count": número,
  "neutral_count": número,
  "trending_topics": ["tópico1", "tópico2"],
  "news_sources": ["fonte1", "fonte2"],
  "total_mentions": {{.Total}},
  "mentions_peak": {"value": número, "date": "data do pico", "reason": "o que causou o pico"},
  "mentions_timeline": [{"date": "YYYY-MM-DD", "count": número, "trend": "up|down|stable"}],
  "sentiment_breakdown": {
    "positive_percentage": porcentagem,
    "negative_percentage": porcentagem,
    "neutral_percentage": porcentagem,
    "dominant_emotions": ["emoção1", "emoção2"],
    "sentiment_balance": "o que o equilíbrio entre sentimentos revela sobre a reputação"
  },
  "digital_data": {
    "volume_mentions": {"total": número, "relevance": "alta|média|baixa", "notoriety": "análise"},
    "sentiment_public": {"positive": porcentagem, "negative": porcentagem, "neutral": porcentagem, "interpretation": "análise"},
    "engagement": {"engagement_score": 0-100, "interpretation": "análise"},
    "reach": {"total_reach_estimated": número, "reach_effectiveness": "análise"}
  },
  "behavioral_data": {
    "purchase_intentions": {"level": "alto|médio|baixo", "indicators": ["indicador"], "trend": "crescendo|estável|diminuindo", "interpretation": "análise"},
    "complaints": {"count": número, "main_categories": [{"category": "categoria", "count": número, "severity": "alta|média|baixa"}], "interpretation": "análise"},
    "social_feedback": {"main_topics": ["tópico"], "interpretation": "análise"},
    "product_reviews": {"average_rating_estimated": 0-5, "main_concerns": ["preocupação"], "interpretation": "análise"}
  },
  "main_themes": [{"theme": "tema", "frequency": número, "impact": "alto|médio|baixo", "sentiment": "positive|negative|neutral", "explanation": "por que gera impacto"}],
  "engagement_metrics": {"estimated_reach": número, "engagement_score": 0-100, "relevance_score": 0-100, "trust_score": 0-100, "interpretation": "análise"},
  "investor_confidence": {"financial_confidence": "análise", "overall_confidence_score": 0-100, "interpretation": "análise"},
  "brand_perception": {"overall_perception": "positiva|negativa|neutra|mista", "key_strengths": ["força"], "key_weaknesses": ["fraqueza"], "reputation_status": "excelente|boa|regular|ruim|crítica", "perception_trend": "melhorando|estável|piorando"},
  "strategic_insights": [{"insight": "insight específico e acionável", "category": "preço|concorrência|tendência|satisfação|custos|investimento", "priority": "alta|média|baixa", "evidence": "evidências", "recommendation": "recomendação"}],
  "cost_optimization": {
    "areas_to_cut": [{"area": "área", "potential_savings": "estimativa", "impact": "baixo|médio|alto", "recommendation": "recomendação"}],
    "areas_to_invest": [{"area": "área", "potential_return": "estimativa", "priority": "alta|média|baixa", "recommendation": "recomendação"}],
    "strategic_recommendation": "onde cortar custos ou investir"
  },
  "actionable_insights": [{"insight": "insight", "priority": "alta|média|baixa", "action": "ação recomendada"}],
  "improvement_opportunities": [{"opportunity": "oportunidade", "impact": "alto|médio|baixo", "feasibility": "alta|média|baixa", "recommendation": "recomendação"}],
  "risk_alerts": [{"risk": "risco ou tendência emergente", "severity": "crítica|alta|média|baixa", "trend": "crescendo|estável|diminuindo", "recommendation": "mitigação"}],
  "market_analysis": "leitura do mercado e do setor",
  "macroeconomic_analysis": "contexto macroeconômico relevante",
  "key_insights": ["insight1", "insight2"],
  "strategic_analysis": "causas dos padrões, oportunidades, riscos e recomendações de custos e investimentos"
}

IMPORTANTE:
- Os insights em "strategic_insights" devem ser específicos e acionáveis, como "O público está mais sensível ao preço" ou "A satisfação do cliente está caindo".
- A seção "cost_optimization" deve indicar claramente onde cortar custos ou investir.
- Use dados reais das notícias e do contexto financeiro para fundamentar as análises.

Retorne APENAS o JSON, sem markdown ou texto adicional.`))

type promptData struct {
	Company   string
	Symbol    string
	Financial *models.FinancialRecord
	News      []models.NewsItem
	Total     int
}

// buildPrompt renders the analysis request. Financial context is included
// only when the record carries market data.
func buildPrompt(req Request, news []models.NewsItem) (string, error) {
	data := promptData{
		Company: req.CompanyName,
		Symbol:  req.symbol(),
		News:    news[:min(len(news), maxPromptNews)],
		Total:   len(news),
	}
	if !req.Financial.IsEmpty() {
		data.Financial = req.Financial
	}

	var b strings.Builder
	if err := promptTemplate.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

func optNum(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return utils.FormatDecimal(*v, 2)
}

func optInt(v *int64) string {
	if v == nil {
		return "N/A"
	}
	return utils.FormatVolume(*v)
}
