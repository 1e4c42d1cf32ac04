package pipeline

import (
	"sort"
	"strings"
)

// NewsItem 结构化新闻条目，由 LLM 筛选生成；完全降级时直接由原始命中合成
type NewsItem struct {
	Date       string `json:"date"`
	Title      string `json:"title"`
	Summary    string `json:"summary"`
	Dimension  string `json:"dimension"`
	Relevance  string `json:"relevance"`
	Importance string `json:"importance"` // high / medium / low
	Source     string `json:"source"`
	URL        string `json:"url"`
}

// DimensionError 单个维度的失败记录
type DimensionError struct {
	Dimension string `json:"dimension"`
	Error     string `json:"error"`
}

// RunMetadata 一次运行的元数据，固定作为返回序列的首元素
type RunMetadata struct {
	IsMetadata           bool             `json:"is_metadata"`
	TotalDimensions      int              `json:"total_dimensions"`
	SuccessfulDimensions int              `json:"successful_dimensions"`
	FailedDimensions     []DimensionError `json:"failed_dimensions"`
	FallbackTriggered    bool             `json:"fallback_triggered"`
	FallbackReasons      []string         `json:"fallback_reasons"`
	TotalFallbackItems   int              `json:"total_fallback_items"`
	Warnings             []string         `json:"warnings"`
}

// Item 返回序列的元素：首元素携带 Meta，其余携带 News。
// 调用方必须先用 IsMetadata 区分，再当作新闻使用。
type Item struct {
	Meta *RunMetadata `json:"meta,omitempty"`
	News *NewsItem    `json:"news,omitempty"`
}

// IsMetadata 是否为元数据哨兵
func (it Item) IsMetadata() bool { return it.Meta != nil }

// titleKey 标题去重键：小写、去空白、截取前 60 字符
func titleKey(title string) string {
	t := strings.TrimSpace(strings.ToLower(title))
	runes := []rune(t)
	if len(runes) > 60 {
		runes = runes[:60]
	}
	return string(runes)
}

// dedupByTitle 按标题前缀去重，保留首见顺序
func dedupByTitle(items []NewsItem) []NewsItem {
	seen := make(map[string]struct{})
	out := make([]NewsItem, 0, len(items))
	for _, n := range items {
		key := titleKey(n.Title)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}

// importanceRank high=0 / medium=1 / low=2，兼容中文取值
func importanceRank(importance string) int {
	switch strings.TrimSpace(strings.ToLower(importance)) {
	case "high", "高":
		return 0
	case "medium", "中":
		return 1
	default:
		return 2
	}
}

// sortItems 稳定排序：重要性优先，其次按日期字典序升序
func sortItems(items []NewsItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := importanceRank(items[i].Importance), importanceRank(items[j].Importance)
		if ri != rj {
			return ri < rj
		}
		return items[i].Date < items[j].Date
	})
}
