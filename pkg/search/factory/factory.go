// Package factory 根据配置装配检索 Provider 列表，顺序即优先级。
package factory

import (
	"github.com/iWorld-y/invest_radar/pkg/config"
	"github.com/iWorld-y/invest_radar/pkg/logger"
	"github.com/iWorld-y/invest_radar/pkg/search"
	"github.com/iWorld-y/invest_radar/pkg/search/finnhub"
	"github.com/iWorld-y/invest_radar/pkg/search/gateway"
	"github.com/iWorld-y/invest_radar/pkg/search/tavily"
)

// BuildProviders 装配键控 Provider：Tavily > 网关 web_search > Finnhub。
// 单个 Provider 凭证缺失只会被跳过，不影响其它 Provider。
// RSS 兜底不在此列，由流水线直接持有。
func BuildProviders(cfg *config.SearchConfig, ticker string) []search.Provider {
	var providers []search.Provider

	if cfg.Tavily.APIKey != "" {
		providers = append(providers, tavily.NewClient(cfg.Tavily.APIKey))
	}

	gw := gateway.NewClient(gateway.Options{
		URL:        cfg.Gateway.URL,
		Token:      cfg.Gateway.Token,
		ConfigPath: cfg.Gateway.ConfigPath,
		SessionKey: cfg.Gateway.SessionKey,
	})
	if gw.IsAvailable() {
		providers = append(providers, gw)
	} else {
		logger.Log.Debugf("[factory] 网关凭证不全，跳过 gateway_web_search")
	}

	if cfg.Finnhub.APIKey != "" && ticker != "" {
		providers = append(providers, finnhub.NewClient(cfg.Finnhub.APIKey, ticker))
	}

	for _, p := range providers {
		logger.Log.Infof("[factory] 已启用 Provider: %s", p.Name())
	}
	return providers
}
