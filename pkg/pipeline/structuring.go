package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/iWorld-y/invest_radar/pkg/logger"
	"github.com/iWorld-y/invest_radar/pkg/search/rssnews"
)

// Dimension 固定的分析维度：名称、检索词、关注点
type Dimension struct {
	Name  string
	Query string
	Focus string
}

// buildDimensions 按标的与关联实体生成四个固定维度
func buildDimensions(entityName string, related []string) []Dimension {
	relatedPart := related
	if len(relatedPart) > 3 {
		relatedPart = relatedPart[:3]
	}
	return []Dimension{
		{
			Name:  "公司核心动态",
			Query: fmt.Sprintf("%s 财报 业绩 公告 管理层 重大事项", entityName),
			Focus: "财报发布、重大公告、人事变动、股东变化",
		},
		{
			Name:  "行业与竞争",
			Query: strings.TrimSpace(fmt.Sprintf("%s 竞争对手 行业格局 市场份额 %s", entityName, strings.Join(relatedPart, " "))),
			Focus: "竞争对手动态、行业趋势、市场格局变化",
		},
		{
			Name:  "产品与技术",
			Query: fmt.Sprintf("%s 新产品 技术突破 研发 创新 专利", entityName),
			Focus: "新产品发布、技术进展、研发投入",
		},
		{
			Name:  "宏观与政策",
			Query: fmt.Sprintf("%s 政策 监管 行业政策 法规", entityName),
			Focus: "监管政策变化、行业扶持政策、法规调整",
		},
	}
}

var latinRe = regexp.MustCompile(`[A-Za-z]`)

// isEnglishLike 是否含拉丁字母
func isEnglishLike(text string) bool {
	return latinRe.MatchString(text)
}

// collectEnglishAliases 为跨语种召回收集英文别名：
// 标的名本身（含拉丁字母时）、playbook 里的 ticker、含拉丁字母的关联实体。
// 精确匹配去重，保持首见顺序，最多 3 个。
func collectEnglishAliases(entityName string, related []string, ticker string) []string {
	var aliases []string
	seen := make(map[string]struct{})
	add := func(s string) {
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		aliases = append(aliases, s)
	}

	if isEnglishLike(entityName) {
		add(entityName)
	}
	add(ticker)
	for _, ent := range related {
		if isEnglishLike(ent) {
			add(ent)
		}
	}
	if len(aliases) > 3 {
		aliases = aliases[:3]
	}
	return aliases
}

// dimensionKeywords 每个维度的英文检索关键词
var dimensionKeywords = map[string]string{
	"公司核心动态": "earnings financial results announcement management",
	"行业与竞争":  "competitors industry market share",
	"产品与技术":  "product technology innovation R&D patent",
	"宏观与政策":  "policy regulation macro",
}

// buildEnglishQuery 用别名和维度关键词拼英文查询，无别名时返回空串
func buildEnglishQuery(dimension string, aliases []string) string {
	aliasStr := strings.TrimSpace(strings.Join(aliases, " "))
	if aliasStr == "" {
		return ""
	}
	kw, ok := dimensionKeywords[dimension]
	if !ok {
		kw = "news"
	}
	return strings.TrimSpace(aliasStr + " " + kw)
}

// extractJSONObject 提取文本中最大的花括号区域（首个 '{' 到最后一个 '}'）。
// 没有这样的区域时返回空串。
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

// relevanceUnfiltered LLM 不可用时直接透传原始条目的标记
const relevanceUnfiltered = "unfiltered"

// structuringReply LLM 结构化回复的固定 schema
type structuringReply struct {
	News []NewsItem `json:"news"`
}

// buildStructuringPrompt 组装结构化筛选提示词
func buildStructuringPrompt(entityName string, dim Dimension, items []rssnews.Item) string {
	type compactItem struct {
		Title   string `json:"title"`
		Source  string `json:"source"`
		Date    string `json:"date"`
		Link    string `json:"link"`
		Snippet string `json:"snippet,omitempty"`
	}
	compact := make([]compactItem, 0, len(items))
	for _, x := range items {
		compact = append(compact, compactItem{Title: x.Title, Source: x.Source, Date: x.PubDate, Link: x.Link, Snippet: x.Snippet})
	}
	compactJSON, _ := json.Marshal(compact)

	return fmt.Sprintf(`你在做投资环境跟踪。目标公司/标的：%s

维度：%s
关注点：%s

下面是抓取到的原始条目（可能有噪音/重复/标题党），请你筛出最多 5 条最重要的，并严格输出 JSON（只输出 JSON，不要解释）：

{
  "news": [
    {
      "date": "YYYY-MM-DD",
      "title": "...",
      "summary": "1-2 句摘要",
      "dimension": "%s",
      "relevance": "与投资逻辑的关联说明",
      "importance": "high/medium/low",
      "source": "...",
      "url": "..."
    }
  ]
}

原始条目：
%s`, entityName, dim.Name, dim.Focus, dim.Name, string(compactJSON))
}

// structureItems 调用 LLM 把原始条目筛选成结构化新闻。
// 模型调用失败时降级为 ≤5 条未筛选透传；回复解析失败时按空结果处理。
// 无论模型回显什么，dimension 一律覆写为当前维度名。
func (p *Pipeline) structureItems(ctx context.Context, entityName string, dim Dimension, items []rssnews.Item) []NewsItem {
	if len(items) == 0 {
		return nil
	}
	if len(items) > p.opts.HitsPerDimension {
		items = items[:p.opts.HitsPerDimension]
	}

	prompt := buildStructuringPrompt(entityName, dim, items)
	text, err := p.model.Chat(ctx, prompt, nil)
	if err != nil {
		logger.Log.Errorf("[structureItems] 维度 %s 结构化调用失败: %v", dim.Name, err)
		p.rec.Record(Event{Stage: EventStructuringDegraded, Dimension: dim.Name, Detail: err.Error()})
		return p.passthroughItems(dim, items)
	}

	span := extractJSONObject(text)
	if span == "" {
		logger.Log.Warnf("[structureItems] 维度 %s 回复中没有 JSON 区域", dim.Name)
		return nil
	}
	var reply structuringReply
	if err := json.Unmarshal([]byte(span), &reply); err != nil {
		logger.Log.Warnf("[structureItems] 维度 %s JSON 解析失败: %v", dim.Name, err)
		return nil
	}

	out := reply.News
	if len(out) > p.opts.ItemsPerDimension {
		out = out[:p.opts.ItemsPerDimension]
	}
	for i := range out {
		out[i].Dimension = dim.Name
	}
	return out
}

// passthroughItems LLM 不可用时的降级：原始条目直接成为新闻条目
func (p *Pipeline) passthroughItems(dim Dimension, items []rssnews.Item) []NewsItem {
	limit := p.opts.ItemsPerDimension
	if len(items) < limit {
		limit = len(items)
	}
	out := make([]NewsItem, 0, limit)
	for _, x := range items[:limit] {
		out = append(out, NewsItem{
			Date:       x.PubDate,
			Title:      x.Title,
			Summary:    x.Title,
			Dimension:  dim.Name,
			Relevance:  relevanceUnfiltered,
			Importance: "medium",
			Source:     x.Source,
			URL:        x.Link,
		})
	}
	return out
}
