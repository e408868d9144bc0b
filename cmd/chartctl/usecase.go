package main

import (
	"FinChart/internal/di"
	internalrepo "FinChart/internal/repository"
	"FinChart/internal/usecase"
	"FinChart/pkg/config"
	applogger "FinChart/pkg/logger"
	"FinChart/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.LoadWithEnv(path)
}

// newUseCase builds an uncached use case that draws from the market data service.
func newUseCase(cfg *config.Config) *usecase.ChartUseCase {
	l := applogger.Nop()
	market := di.ProvideMarketClient(cfg, l)
	return di.ProvideChartUseCase(cfg,
		di.ProvideCandleSource(cfg, nil, market, l),
		di.ProvideAnalysisSource(cfg, market),
		nil,
		internalrepo.NopEventPublisher{},
		di.ProvidePairs(cfg),
		di.ProvideRenderOptions(cfg),
		metrics.New(prometheus.NewRegistry()),
		l,
	)
}
