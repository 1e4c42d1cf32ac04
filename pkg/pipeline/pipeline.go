// Package pipeline 实现结构化新闻检索：维度扇出、LLM 结构化与级联降级。
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/iWorld-y/invest_radar/pkg/logger"
	"github.com/iWorld-y/invest_radar/pkg/llm"
	"github.com/iWorld-y/invest_radar/pkg/search"
	"github.com/iWorld-y/invest_radar/pkg/search/rssnews"
)

// 降级原因
const (
	ReasonNoProviders       = "no_providers"
	ReasonLowResults        = "low_results"
	ReasonMissingDimensions = "missing_dimensions"
)

// Searcher 检索入口，由 search.Manager 满足。调用永远不失败。
type Searcher interface {
	Search(ctx context.Context, req *search.Request) []search.Result
}

// RSSFetcher RSS 兜底抓取能力，由 rssnews.Client 满足
type RSSFetcher interface {
	FetchItems(ctx context.Context, query string, timeRangeDays, limit int) ([]rssnews.Item, error)
}

// Playbook 标的档案中与检索相关的上下文
type Playbook struct {
	Ticker string
}

// Options 流水线参数，阈值全部可配。
type Options struct {
	HitsPerDimension   int // 每个维度送入结构化的最大命中数
	ItemsPerDimension  int // 每个维度保留的结构化条目数
	LowResultThreshold int // 去重后低于该数触发全量 RSS 降级
	MaxItems           int // 最终返回的新闻条数上限
	EnrichSnippets     bool
	SnippetMinChars    int
}

func (o *Options) applyDefaults() {
	if o.HitsPerDimension <= 0 {
		o.HitsPerDimension = 8
	}
	if o.ItemsPerDimension <= 0 {
		o.ItemsPerDimension = 5
	}
	if o.LowResultThreshold <= 0 {
		o.LowResultThreshold = 10
	}
	if o.MaxItems <= 0 {
		o.MaxItems = 20
	}
	if o.SnippetMinChars <= 0 {
		o.SnippetMinChars = 200
	}
}

// Pipeline 结构化新闻流水线
type Pipeline struct {
	model         llm.ChatModel
	searcher      Searcher
	providerNames []string
	rss           RSSFetcher
	opts          Options
	rec           Recorder
	now           func() time.Time
	fetchContent  func(url string) (string, error)
}

// New 创建流水线。providerNames 为空表示没有任何键控 Provider。
func New(model llm.ChatModel, searcher Searcher, providerNames []string, rss RSSFetcher, opts Options, rec Recorder) *Pipeline {
	opts.applyDefaults()
	if rec == nil {
		rec = logRecorder{}
	}
	return &Pipeline{
		model:         model,
		searcher:      searcher,
		providerNames: providerNames,
		rss:           rss,
		opts:          opts,
		rec:           rec,
		now:           time.Now,
		fetchContent:  fetchReadableText,
	}
}

// fetchReadableText 抓取正文并提取核心文本，用于补足过短的摘要
func fetchReadableText(url string) (string, error) {
	article, err := readability.FromURL(url, 30*time.Second)
	if err != nil {
		return "", err
	}
	return article.TextContent, nil
}

// SearchNewsStructured 执行一次结构化新闻检索。
// 返回序列的首元素固定为 RunMetadata 哨兵；任何 Provider/LLM 层的失败
// 都被就地恢复并记录在元数据中，这一层不向外抛错。
func (p *Pipeline) SearchNewsStructured(ctx context.Context, entityName string, related []string, timeRangeDays int, pb *Playbook) []Item {
	if timeRangeDays <= 0 {
		timeRangeDays = 7
	}
	logger.Log.Infof("[SearchNewsStructured] 开始检索 %s，时间窗 %dd", entityName, timeRangeDays)

	endDate := p.now()
	startDate := endDate.AddDate(0, 0, -timeRangeDays)
	req := func(query string) *search.Request {
		return &search.Request{
			Query:      query,
			MaxResults: p.opts.HitsPerDimension,
			Topic:      "news",
			Depth:      "basic",
			StartDate:  startDate.Format(time.DateOnly),
			EndDate:    endDate.Format(time.DateOnly),
		}
	}

	dims := buildDimensions(entityName, related)

	ticker := ""
	if pb != nil {
		ticker = pb.Ticker
	}
	aliases := collectEnglishAliases(entityName, related, ticker)
	if len(aliases) > 0 {
		logger.Log.Debugf("[SearchNewsStructured] 英文别名: %v", aliases)
	}

	var (
		allNews           []NewsItem
		failed            []DimensionError
		warnings          []string
		missing           []Dimension
		reasons           []string
		fallbackTriggered bool
		totalRSSItems     int
	)

	fetchViaRSS := func(targets []Dimension) {
		for _, dim := range targets {
			items, err := p.rss.FetchItems(ctx, dim.Query, timeRangeDays, p.opts.HitsPerDimension)
			if err != nil {
				failed = append(failed, DimensionError{Dimension: dim.Name, Error: err.Error()})
				p.rec.Record(Event{Stage: EventDimensionFailed, Dimension: dim.Name, Detail: err.Error()})
				continue
			}
			p.rec.Record(Event{Stage: EventRSSFetch, Dimension: dim.Name, Detail: fmt.Sprintf("%d items", len(items))})
			totalRSSItems += len(items)
			allNews = append(allNews, p.structureItems(ctx, entityName, dim, items)...)
		}
	}

	if len(p.providerNames) == 0 || p.searcher == nil {
		// 无 Provider 分支：直接对所有维度走 RSS
		warnings = append(warnings, "未配置检索 Provider，降级到 Google News RSS。")
		fallbackTriggered = true
		reasons = append(reasons, ReasonNoProviders)
		fetchViaRSS(dims)
	} else {
		warnings = append(warnings, fmt.Sprintf("新闻来源=%s（union）。", strings.Join(p.providerNames, " + ")))
		for _, dim := range dims {
			p.rec.Record(Event{Stage: EventProviderSearch, Dimension: dim.Name})

			cnHits := p.searcher.Search(ctx, req(dim.Query))
			var enHits []search.Result
			if enQuery := buildEnglishQuery(dim.Name, aliases); enQuery != "" {
				enHits = p.searcher.Search(ctx, req(enQuery))
			}

			hits := mergeHits(cnHits, enHits)
			if len(hits) == 0 {
				missing = append(missing, dim)
				p.rec.Record(Event{Stage: EventDimensionMissing, Dimension: dim.Name})
			}

			allNews = append(allNews, p.structureItems(ctx, entityName, dim, p.hitsToItems(hits))...)
		}

		// 降级判定：去重后总量过低 → 全维度补抓；仅个别维度缺失 → 只补缺失维度
		uniqPre := dedupByTitle(allNews)
		if len(uniqPre) < p.opts.LowResultThreshold || len(missing) > 0 {
			fallbackTriggered = true
			targets := missing
			if len(uniqPre) < p.opts.LowResultThreshold {
				reasons = append(reasons, ReasonLowResults)
				targets = dims
			}
			if len(missing) > 0 {
				reasons = append(reasons, ReasonMissingDimensions)
			}
			p.rec.Record(Event{Stage: EventFallbackTriggered, Detail: strings.Join(reasons, ",")})
			logger.Log.Infof("[SearchNewsStructured] RSS 降级: uniq=%d, missing=%d", len(uniqPre), len(missing))
			fetchViaRSS(targets)
		}
	}

	uniq := dedupByTitle(allNews)
	sortItems(uniq)
	if len(uniq) > p.opts.MaxItems {
		uniq = uniq[:p.opts.MaxItems]
	}

	meta := &RunMetadata{
		IsMetadata:           true,
		TotalDimensions:      len(dims),
		SuccessfulDimensions: len(dims) - len(failed),
		FailedDimensions:     failed,
		FallbackTriggered:    fallbackTriggered,
		FallbackReasons:      reasons,
		TotalFallbackItems:   totalRSSItems,
		Warnings: append(warnings,
			fmt.Sprintf("range=%s..%s", startDate.Format(time.DateOnly), endDate.Format(time.DateOnly)),
			fmt.Sprintf("stock=%s", entityName),
		),
	}

	logger.Log.Infof("[SearchNewsStructured] 完成: %d 条新闻, fallback=%v", len(uniq), fallbackTriggered)

	out := make([]Item, 0, len(uniq)+1)
	out = append(out, Item{Meta: meta})
	for i := range uniq {
		out = append(out, Item{News: &uniq[i]})
	}
	return out
}

// mergeHits 按 URL 首见去重合并两组命中
func mergeHits(a, b []search.Result) []search.Result {
	merged := make([]search.Result, 0, len(a)+len(b))
	seen := make(map[string]struct{})
	for _, h := range append(append([]search.Result{}, a...), b...) {
		u := strings.TrimSpace(h.URL)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		merged = append(merged, h)
	}
	return merged
}

// hitsToItems 把检索命中映射成 RSS 形状的条目，过滤无标题/无链接的命中。
// 开启摘要补全时，对过短的摘要尝试抓取正文补足，失败不影响流程。
func (p *Pipeline) hitsToItems(hits []search.Result) []rssnews.Item {
	items := make([]rssnews.Item, 0, len(hits))
	for _, h := range hits {
		if h.Title == "" || h.URL == "" {
			continue
		}
		snippet := h.Snippet
		if p.opts.EnrichSnippets && len(snippet) < p.opts.SnippetMinChars {
			if text, err := p.fetchContent(h.URL); err == nil && len(text) > len(snippet) {
				if len(text) > 500 {
					text = text[:500]
				}
				snippet = text
			}
		}
		items = append(items, rssnews.Item{
			Title:   h.Title,
			Link:    h.URL,
			PubDate: h.Published,
			Source:  h.Provider,
			Snippet: snippet,
		})
	}
	return items
}
