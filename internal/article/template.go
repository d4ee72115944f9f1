package article

import (
	"fmt"
	"math"
	"strings"

	"github.com/seenimoa/finpress/pkg/models"
	"github.com/seenimoa/finpress/pkg/utils"
)

// TemplateDisclaimer closes every template article.
const TemplateDisclaimer = "*Este conteúdo foi gerado automaticamente com auxílio de IA e requer revisão humana antes da publicação.*"

// LLMDisclaimer is appended to model-written articles.
const LLMDisclaimer = "*Este conteúdo foi gerado automaticamente com auxílio de inteligência artificial e requer revisão humana antes da publicação. As informações apresentadas não constituem recomendação de investimento. Consulte sempre um analista financeiro certificado antes de tomar decisões de investimento.*"

// Title builds "Análise {subject}: Mercado em {trend}", with " - R$ {price}"
// appended when the price is known.
func Title(subject string, fin *models.FinancialRecord) string {
	title := fmt.Sprintf("Análise %s: Mercado em %s", subject, fin.Trend())
	if fin.Price != nil {
		title += " - " + utils.FormatBRL(*fin.Price)
	}
	return title
}

// templateArticle renders the deterministic markdown article.
func templateArticle(in *models.ArticleInput) (title, content string) {
	company := in.CompanyName
	fin := &in.Financial
	sent := &in.Sentiment

	var b strings.Builder
	fmt.Fprintf(&b, "## Análise de %s\n\n", company)

	if !fin.IsEmpty() {
		b.WriteString("### Dados Financeiros\n\n")
		if fin.Price != nil && *fin.Price != 0 {
			fmt.Fprintf(&b, "As ações da %s estão sendo negociadas a %s.\n\n", company, utils.FormatBRL(*fin.Price))
		}
		if change := fin.ChangeValue(); change != 0 {
			direction := "valorização"
			if change < 0 {
				direction = "desvalorização"
			}
			fmt.Fprintf(&b, "A variação do dia foi de %s (%s), representando uma %s.\n\n",
				utils.FormatBRL(math.Abs(change)), utils.FormatPct(math.Abs(fin.ChangePercentValue())), direction)
		}
		if fin.Volume != nil && *fin.Volume != 0 {
			fmt.Fprintf(&b, "O volume negociado foi de %s ações.\n\n", utils.FormatVolume(*fin.Volume))
		}
	}

	b.WriteString("### Análise de Sentimento\n\n")
	fmt.Fprintf(&b, "Com base na análise de %d notícias, o sentimento do mercado é **%s** com score de %s.\n\n",
		sent.NewsCount, sent.Sentiment.Portuguese(), utils.FormatDecimal(sent.Score, 2))
	if len(sent.TrendingTopics) > 0 {
		fmt.Fprintf(&b, "**Tópicos em destaque:** %s\n\n", sent.TrendingTopics)
	}

	b.WriteString("### Recomendação\n\n")
	b.WriteString(recommendation(sent.Sentiment, fin.ChangePercentValue()))
	b.WriteString("\n\n")
	b.WriteString(TemplateDisclaimer)

	return Title(company, fin), b.String()
}

// recommendation crosses the sentiment label with the sign of the day's
// change percent.
func recommendation(label models.Sentiment, changePct float64) string {
	const lead = "Considerando os dados financeiros e a análise de sentimento do mercado, "
	switch {
	case label == models.SentimentPositive && changePct > 0:
		return lead + "há sinais positivos, mas é importante avaliar cuidadosamente antes de investir. " +
			"Recomenda-se análise técnica e fundamentalista adicional."
	case label == models.SentimentNegative && changePct < 0:
		return lead + "há sinais de cautela. Recomenda-se aguardar mais informações ou evitar posições arriscadas. " +
			"Consulte um analista financeiro antes de tomar decisões."
	default:
		return lead + "o mercado mostra sinais mistos. Recomenda-se acompanhar de perto e buscar mais informações antes de investir."
	}
}
