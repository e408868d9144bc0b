package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"FinChart/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestRenderFromFile(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 10; i++ {
		p := 150 + float64(i)*0.1
		candles = append(candles, models.Candle{OpenTime: start.Add(time.Duration(i) * time.Hour), Open: p, High: p + 0.2, Low: p - 0.1, Close: p + 0.1})
	}
	b, err := json.Marshal(candles)
	require.NoError(t, err)
	in := filepath.Join(dir, "candles.json")
	require.NoError(t, os.WriteFile(in, b, 0o644))

	out := filepath.Join(dir, "chart.svg")
	run(t, "render", "--candles", in, "--format", "svg", "--width", "400", "--height", "300", "-o", out)

	svg, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(svg), "<svg")
}

func TestPairsCommand(t *testing.T) {
	out := run(t, "pairs")
	assert.Contains(t, out, "CODE")
	assert.Contains(t, out, "EURUSD=X")
	assert.Contains(t, out, "XAUUSD")
}
