package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Sentiment is the aggregate label of a sentiment analysis.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Portuguese returns the label as used in generated Portuguese text.
func (s Sentiment) Portuguese() string {
	switch s {
	case SentimentPositive:
		return "positivo"
	case SentimentNegative:
		return "negativo"
	default:
		return "neutro"
	}
}

// LabelForScore applies the fixed thresholds: > 0.5 positive, < -0.5 negative.
func LabelForScore(score float64) Sentiment {
	switch {
	case score > 0.5:
		return SentimentPositive
	case score < -0.5:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Analysis paths recorded on a SentimentRecord.
const (
	PathLLM     = "llm"
	PathKeyword = "keyword"
)

// Topics is a list of trending words. It decodes from either a JSON array
// or a comma separated string, and always encodes as an array.
type Topics []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Topics) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// null or an unexpected shape
		*t = nil
		return nil
	}
	*t = nil
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			*t = append(*t, p)
		}
	}
	return nil
}

// String joins the topics with ", ".
func (t Topics) String() string {
	return strings.Join(t, ", ")
}

// SentimentRecord is the output of the sentiment stage.
type SentimentRecord struct {
	Sentiment      Sentiment `json:"sentiment" validate:"oneof=positive negative neutral"`
	Score          float64   `json:"sentiment_score" validate:"gte=-1,lte=1"`
	NewsCount      int       `json:"news_count" validate:"gte=0"`
	PositiveCount  int       `json:"positive_count" validate:"gte=0"`
	NegativeCount  int       `json:"negative_count" validate:"gte=0"`
	NeutralCount   int       `json:"neutral_count" validate:"gte=0"`
	TrendingTopics Topics    `json:"trending_topics"`
	NewsSources    []string  `json:"news_sources"`

	CompanyName string    `json:"company_name,omitempty"`
	Symbol      string    `json:"symbol,omitempty"`
	AnalyzedAt  time.Time `json:"analyzed_at,omitzero"`
	SourcePath  string    `json:"source_path,omitempty"`

	// Structured payload produced by the LLM path.
	*Insights

	RawData *SentimentRawData `json:"raw_data,omitempty"`
}

// Insights holds the structured LLM analysis. Field shapes are whatever the
// model returned, so they stay untyped; presence is what callers rely on.
type Insights struct {
	TotalMentions            any    `json:"total_mentions,omitempty"`
	MentionsPeak             any    `json:"mentions_peak,omitempty"`
	MentionsTimeline         any    `json:"mentions_timeline,omitempty"`
	SentimentBreakdown       any    `json:"sentiment_breakdown,omitempty"`
	DigitalData              any    `json:"digital_data,omitempty"`
	BehavioralData           any    `json:"behavioral_data,omitempty"`
	MainThemes               any    `json:"main_themes,omitempty"`
	EngagementMetrics        any    `json:"engagement_metrics,omitempty"`
	InvestorConfidence       any    `json:"investor_confidence,omitempty"`
	BrandPerception          any    `json:"brand_perception,omitempty"`
	StrategicInsights        any    `json:"strategic_insights,omitempty"`
	CostOptimization         any    `json:"cost_optimization,omitempty"`
	ActionableInsights       any    `json:"actionable_insights,omitempty"`
	ImprovementOpportunities any    `json:"improvement_opportunities,omitempty"`
	RiskAlerts               any    `json:"risk_alerts,omitempty"`
	StrategicAnalysis        string `json:"strategic_analysis,omitempty"`
	MarketAnalysis           any    `json:"market_analysis,omitempty"`
	MacroeconomicAnalysis    any    `json:"macroeconomic_analysis,omitempty"`
	KeyInsights              any    `json:"key_insights,omitempty"`
}

// SentimentRawData keeps the analyzed articles next to the analysis blocks,
// so consumers see the same shape whichever path produced the record.
type SentimentRawData struct {
	Articles []NewsItem    `json:"articles"`
	Analysis AnalysisBlock `json:"_analysis"`
}

// AnalysisBlock is the "_analysis" part of SentimentRawData.
type AnalysisBlock struct {
	DigitalData       any `json:"digital_data"`
	BehavioralData    any `json:"behavioral_data"`
	StrategicInsights any `json:"strategic_insights"`
	CostOptimization  any `json:"cost_optimization"`
}

// EmptyAnalysisBlock returns a block with empty containers in every slot.
func EmptyAnalysisBlock() AnalysisBlock {
	return AnalysisBlock{
		DigitalData:       map[string]any{},
		BehavioralData:    map[string]any{},
		StrategicInsights: []any{},
		CostOptimization:  map[string]any{},
	}
}

// UnmarshalJSON accepts either the wrapper object or a bare article array.
func (r *SentimentRawData) UnmarshalJSON(data []byte) error {
	var articles []NewsItem
	if err := json.Unmarshal(data, &articles); err == nil {
		r.Articles = articles
		r.Analysis = EmptyAnalysisBlock()
		return nil
	}
	type plain SentimentRawData
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = SentimentRawData(p)
	return nil
}

// DefaultSentiment returns the neutral record used when nothing was analyzed.
func DefaultSentiment() SentimentRecord {
	return SentimentRecord{
		Sentiment:      SentimentNeutral,
		TrendingTopics: Topics{},
		NewsSources:    []string{},
	}
}
