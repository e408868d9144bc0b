package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"FinChart/internal/domain/models"

	"github.com/spf13/cobra"
)

func init() {
	renderCmd.Flags().String("candles", "", "JSON file with an array of candles; draws offline when set")
	renderCmd.Flags().String("analysis", "", "JSON file with the analysis overlays (offline only)")
	renderCmd.Flags().String("symbol", "", "pair code fetched from the market data service")
	renderCmd.Flags().String("timeframe", "", "timeframe of the fetched candles (default chart.default_timeframe)")
	renderCmd.Flags().Int("limit", 0, "number of fetched candles (default chart.default_limit)")
	renderCmd.Flags().String("format", "png", "png, svg or json")
	renderCmd.Flags().Int("width", 1200, "image width")
	renderCmd.Flags().Int("height", 600, "image height")
	renderCmd.Flags().StringP("out", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "render one chart to a file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		candlesPath, _ := flags.GetString("candles")
		analysisPath, _ := flags.GetString("analysis")
		symbol, _ := flags.GetString("symbol")
		timeframe, _ := flags.GetString("timeframe")
		limit, _ := flags.GetInt("limit")
		format, _ := flags.GetString("format")
		width, _ := flags.GetInt("width")
		height, _ := flags.GetInt("height")
		out, _ := flags.GetString("out")

		uc := newUseCase(cfg)

		var img *models.ChartImage
		switch {
		case candlesPath != "":
			req := models.RenderRequest{Width: width, Height: height, Format: format}
			if err := readJSON(candlesPath, &req.Candles); err != nil {
				return err
			}
			if analysisPath != "" {
				req.Analysis = &models.Analysis{}
				if err := readJSON(analysisPath, req.Analysis); err != nil {
					return err
				}
			}
			img, err = uc.RenderData(ctx, req)
		case symbol != "":
			img, err = uc.Render(ctx, models.ChartRequest{
				Symbol:    symbol,
				Timeframe: timeframe,
				Width:     width,
				Height:    height,
				Format:    format,
				Limit:     limit,
				Analysis:  "on",
			})
		default:
			return fmt.Errorf("one of --candles or --symbol is required")
		}
		if err != nil {
			return err
		}

		return writeOutput(cmd.OutOrStdout(), out, img.Data)
	},
}

func readJSON(path string, dest interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeOutput(stdout io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
