package main

import (
	"context"
	"flag"
	"html/template"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/iWorld-y/invest_radar/pkg/cache"
	"github.com/iWorld-y/invest_radar/pkg/config"
	"github.com/iWorld-y/invest_radar/pkg/logger"
	"github.com/iWorld-y/invest_radar/pkg/llm"
	"github.com/iWorld-y/invest_radar/pkg/pipeline"
	"github.com/iWorld-y/invest_radar/pkg/search"
	"github.com/iWorld-y/invest_radar/pkg/search/factory"
	"github.com/iWorld-y/invest_radar/pkg/search/rssnews"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "配置文件路径")
		stock      = flag.String("stock", "", "目标公司/标的名称")
		related    = flag.String("related", "", "关联实体，逗号分隔")
		ticker     = flag.String("ticker", "", "股票代码（英文别名与公司新闻检索用）")
		days       = flag.Int("days", 7, "检索时间窗（天）")
		output     = flag.String("output", "report.html", "输出报告路径")
	)
	flag.Parse()

	// .env 仅作为本地开发便利，缺失不报错
	_ = godotenv.Load()

	if *stock == "" {
		log.Fatal("用法: invest_radar -stock <标的名称> [-ticker TSLA] [-related 实体1,实体2]")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动投资新闻雷达...")

	ctx := context.Background()

	chatModel, err := llm.NewEinoModel(ctx, &cfg.LLM, &cfg.Concurrency)
	if err != nil {
		logger.Log.Fatalf("LLM 初始化失败: %v", err)
	}

	store := buildStore(cfg)
	providers := factory.BuildProviders(&cfg.Search, *ticker)
	manager := search.NewManager(providers, store, time.Duration(cfg.Pipeline.HardTimeoutSeconds)*time.Second)
	rssClient := rssnews.NewClient(*days)

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}

	pipe := pipeline.New(chatModel, manager, names, rssClient, pipeline.Options{
		HitsPerDimension:   cfg.Pipeline.HitsPerDimension,
		ItemsPerDimension:  cfg.Pipeline.ItemsPerDimension,
		LowResultThreshold: cfg.Pipeline.LowResultThreshold,
		MaxItems:           cfg.Pipeline.MaxItems,
		EnrichSnippets:     cfg.Pipeline.EnrichSnippets,
		SnippetMinChars:    cfg.Pipeline.SnippetMinChars,
	}, nil)

	var relatedEntities []string
	for _, s := range strings.Split(*related, ",") {
		if s = strings.TrimSpace(s); s != "" {
			relatedEntities = append(relatedEntities, s)
		}
	}

	items := pipe.SearchNewsStructured(ctx, *stock, relatedEntities, *days, &pipeline.Playbook{Ticker: *ticker})

	if err := renderHTML(*output, *stock, items); err != nil {
		logger.Log.Fatalf("生成报告失败: %v", err)
	}
	logger.Log.Infof("✅ 报告生成完毕: %s", *output)
}

// buildStore 按配置选择缓存后端，Redis 连接失败时回退到文件缓存
func buildStore(cfg *config.Config) cache.Store {
	ttl := time.Duration(cfg.Cache.TTLSeconds) * time.Second
	if cfg.Cache.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			logger.Log.Warnf("Redis 不可达 (%v)，回退到文件缓存", err)
		} else {
			return cache.NewRedisStore(client, ttl)
		}
	}
	return cache.NewFileStore(cfg.Cache.Dir, ttl)
}

const htmlTpl = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>投资新闻雷达</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; line-height: 1.6; color: #333; }
        .item { border-bottom: 1px solid #eee; padding-bottom: 20px; margin-bottom: 20px; }
        .title { font-size: 1.2em; font-weight: bold; color: #2c3e50; text-decoration: none; }
        .meta { font-size: 0.9em; color: #7f8c8d; margin-bottom: 10px; }
        .summary { background-color: #f9f9f9; padding: 15px; border-radius: 5px; border-left: 4px solid #3498db; }
        .tag { display: inline-block; padding: 2px 8px; border-radius: 12px; font-size: 0.8em; margin-right: 5px; color: white; }
        .tag-dim { background-color: #3498db; }
        .tag-imp { background-color: #e74c3c; }
        .warnings { color: #999; font-size: 0.85em; }
        h1 { text-align: center; color: #2c3e50; }
    </style>
</head>
<body>
    <h1>📈 投资新闻雷达 · {{ .Stock }}</h1>
    <p style="text-align:center; color:#666;">{{ .Date }} • 共 {{ .Count }} 条新闻</p>
    {{if .Warnings}}<p class="warnings">{{range .Warnings}}{{.}} {{end}}</p>{{end}}

    {{range .Items}}
    <div class="item">
        <a href="{{.URL}}" class="title" target="_blank">{{.Title}}</a>
        <div class="meta">
            <span class="tag tag-dim">{{.Dimension}}</span>
            <span class="tag tag-imp">{{.Importance}}</span>
            来源: {{.Source}} | 时间: {{.Date}}
        </div>
        <div class="summary">{{.Summary}}<br><em>{{.Relevance}}</em></div>
    </div>
    {{end}}
</body>
</html>`

// renderHTML 渲染结构化新闻为 HTML 报告
func renderHTML(path, stock string, items []pipeline.Item) error {
	t, err := template.New("report").Parse(htmlTpl)
	if err != nil {
		return err
	}

	var warnings []string
	var news []pipeline.NewsItem
	for _, it := range items {
		if it.IsMetadata() {
			warnings = it.Meta.Warnings
			continue
		}
		news = append(news, *it.News)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := struct {
		Stock    string
		Date     string
		Count    int
		Warnings []string
		Items    []pipeline.NewsItem
	}{
		Stock:    stock,
		Date:     time.Now().Format(time.DateOnly),
		Count:    len(news),
		Warnings: warnings,
		Items:    news,
	}
	return t.Execute(f, data)
}
