package collector

import (
	"testing"
	"time"

	"github.com/johnayoung/solana-candle-scraper/internal/models"
)

// generateBenchCandles returns n hourly candles ending at a fixed time, newest first.
func generateBenchCandles(n int, offset int64) []models.Candle {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC).Unix() + offset
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.NewCandle(end-int64(i)*3600, 1, 2, 0.5, 1.5, 100, time.UTC)
	}
	return out
}

func BenchmarkMergeCandles(b *testing.B) {
	if testing.Short() {
		b.Skip("skipping benchmark in short mode")
	}

	existing := generateBenchCandles(50000, 0)
	future := generateBenchCandles(1000, 500*3600)
	history := generateBenchCandles(1000, -50000*3600)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		res := MergeCandles(existing, future, history)
		if len(res.Candles) == 0 {
			b.Fatal("empty merge")
		}
	}

	throughput := float64(int64(b.N)*int64(len(existing)+len(future)+len(history))) / b.Elapsed().Seconds()
	b.ReportMetric(throughput, "candles/sec")
}
