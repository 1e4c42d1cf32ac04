package pipeline

import (
	"reflect"
	"strings"
	"testing"

	"github.com/iWorld-y/invest_radar/pkg/search/rssnews"
)

func TestExtractJSONObject(t *testing.T) {
	cases := []struct{ name, in, want string }{
		{"plain", `{"news": []}`, `{"news": []}`},
		{"wrapped", "前置说明 {\"news\": [{\"a\": 1}]} 后置说明", `{"news": [{"a": 1}]}`},
		{"markdown", "```json\n{\"news\": []}\n```", `{"news": []}`},
		{"greedy", `x {"a": {"b": 1}} y {"c": 2} z`, `{"a": {"b": 1}} y {"c": 2}`},
		{"none", "没有任何花括号", ""},
		{"reversed", "} 只有反向的 {", ""},
	}
	for _, c := range cases {
		if got := extractJSONObject(c.in); got != c.want {
			t.Errorf("%s: extractJSONObject(%q) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestCollectEnglishAliases(t *testing.T) {
	// 中文标的 + ticker + 拉丁字母关联实体
	aliases := collectEnglishAliases("贵州茅台", []string{"五粮液", "Diageo", "Pernod Ricard"}, "600519.SS")
	want := []string{"600519.SS", "Diageo", "Pernod Ricard"}
	if !reflect.DeepEqual(aliases, want) {
		t.Errorf("aliases = %v, want %v", aliases, want)
	}

	// 英文标的本身排第一，精确匹配去重
	aliases = collectEnglishAliases("Tesla", []string{"Tesla", "BYD"}, "TSLA")
	want = []string{"Tesla", "TSLA", "BYD"}
	if !reflect.DeepEqual(aliases, want) {
		t.Errorf("aliases = %v, want %v", aliases, want)
	}

	// 上限 3 个
	aliases = collectEnglishAliases("Apple", []string{"Google", "Meta", "Amazon"}, "AAPL")
	if len(aliases) != 3 {
		t.Errorf("len = %d, want capped at 3", len(aliases))
	}

	// 没有任何拉丁字母来源
	aliases = collectEnglishAliases("贵州茅台", []string{"五粮液"}, "")
	if len(aliases) != 0 {
		t.Errorf("aliases = %v, want empty", aliases)
	}
}

func TestBuildEnglishQuery(t *testing.T) {
	if q := buildEnglishQuery("公司核心动态", nil); q != "" {
		t.Errorf("query without aliases = %q, want empty", q)
	}
	q := buildEnglishQuery("公司核心动态", []string{"Tesla", "TSLA"})
	if !strings.HasPrefix(q, "Tesla TSLA ") || !strings.Contains(q, "earnings") {
		t.Errorf("query = %q", q)
	}
	q = buildEnglishQuery("未知维度", []string{"Tesla"})
	if q != "Tesla news" {
		t.Errorf("unknown dimension query = %q, want generic news keyword", q)
	}
}

func TestBuildDimensions(t *testing.T) {
	dims := buildDimensions("贵州茅台", []string{"五粮液", "泸州老窖", "洋河股份", "第四个被截断"})
	if len(dims) != 4 {
		t.Fatalf("len = %d, want 4", len(dims))
	}
	names := []string{"公司核心动态", "行业与竞争", "产品与技术", "宏观与政策"}
	for i, d := range dims {
		if d.Name != names[i] {
			t.Errorf("dims[%d].Name = %q, want %q", i, d.Name, names[i])
		}
		if !strings.Contains(d.Query, "贵州茅台") {
			t.Errorf("dims[%d].Query missing entity: %q", i, d.Query)
		}
	}
	if strings.Contains(dims[1].Query, "第四个被截断") {
		t.Errorf("related entities should cap at 3: %q", dims[1].Query)
	}
	if !strings.Contains(dims[1].Query, "五粮液") {
		t.Errorf("related entity missing: %q", dims[1].Query)
	}
}

func TestDedupByTitle(t *testing.T) {
	long := strings.Repeat("同一前缀", 20) // 80 字符，前 60 相同
	items := []NewsItem{
		{Title: "标题A"},
		{Title: " 标题a "}, // 小写 + 去空白后重复
		{Title: "标题B"},
		{Title: long + "甲"},
		{Title: long + "乙"}, // 前 60 字符相同，视为重复
		{Title: ""},
	}
	out := dedupByTitle(items)
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3: %+v", len(out), out)
	}
	if out[0].Title != "标题A" || out[1].Title != "标题B" {
		t.Errorf("first-seen order broken: %+v", out)
	}
}

func TestImportanceRankAndSort(t *testing.T) {
	items := []NewsItem{
		{Title: "c", Importance: "low", Date: "2026-08-01"},
		{Title: "a", Importance: "high", Date: "2026-08-03"},
		{Title: "b", Importance: "medium", Date: "2026-08-02"},
		{Title: "a2", Importance: "高", Date: "2026-08-01"},
		{Title: "d", Importance: "没见过的值", Date: "2026-08-01"},
	}
	sortItems(items)

	wantOrder := []string{"a2", "a", "b", "c", "d"}
	for i, w := range wantOrder {
		if items[i].Title != w {
			t.Errorf("items[%d] = %q, want %q (full order %+v)", i, items[i].Title, w, items)
		}
	}
}

func TestPassthroughItems(t *testing.T) {
	p := New(nil, nil, nil, nil, Options{}, &MemoryRecorder{})
	dim := Dimension{Name: "公司核心动态"}
	var raw []rssnews.Item
	for i := 0; i < 8; i++ {
		raw = append(raw, rssnews.Item{Title: strings.Repeat("t", i+1), Link: "https://x.com", PubDate: "2026-08-30", Source: "src"})
	}

	out := p.passthroughItems(dim, raw)
	if len(out) != 5 {
		t.Fatalf("len = %d, want capped at 5", len(out))
	}
	for _, n := range out {
		if n.Relevance != relevanceUnfiltered {
			t.Errorf("Relevance = %q, want %q", n.Relevance, relevanceUnfiltered)
		}
		if n.Dimension != "公司核心动态" {
			t.Errorf("Dimension = %q", n.Dimension)
		}
		if n.Importance != "medium" {
			t.Errorf("Importance = %q, want medium", n.Importance)
		}
	}
}
