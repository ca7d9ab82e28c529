package pathutil

import (
	"fmt"
	"testing"
)

// BenchmarkNormalizePath benchmarks the path normalization function.
// Target: <1μs per operation
func BenchmarkNormalizePath(b *testing.B) {
	paths := []string{
		"/admin/tenants/550e8400-e29b-41d4-a716-446655440000/keys",
		"/admin/tenants/550e8400-e29b-41d4-a716-446655440000/usage/summary",
		"/admin/keys/6f1c2a9e-8d34-4f7b-9c01-2e5a7b3d4c6f/revoke",
		"/admin/abuse/blocked/203.0.113.9",
		"/admin/usage/events",
		"/protected",
		"/health",
		"/metrics",
		"/unknown/path/123",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := paths[i%len(paths)]
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_Match benchmarks paths that match patterns (common case).
func BenchmarkNormalizePath_Match(b *testing.B) {
	path := "/admin/keys/6f1c2a9e-8d34-4f7b-9c01-2e5a7b3d4c6f/revoke"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_NoMatch benchmarks paths that don't match (static endpoints).
func BenchmarkNormalizePath_NoMatch(b *testing.B) {
	path := "/health"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_WithQueryParams benchmarks paths with query parameters.
func BenchmarkNormalizePath_WithQueryParams(b *testing.B) {
	path := "/admin/usage/events?limit=10&offset=0"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_WorstCase benchmarks the worst-case scenario (no match, all patterns checked).
func BenchmarkNormalizePath_WorstCase(b *testing.B) {
	path := "/unknown/very/long/path/that/does/not/match/any/pattern/123"
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = NormalizePath(path)
	}
}

// BenchmarkNormalizePath_Parallel benchmarks concurrent normalization (simulates real load).
func BenchmarkNormalizePath_Parallel(b *testing.B) {
	paths := []string{
		"/admin/keys/6f1c2a9e-8d34-4f7b-9c01-2e5a7b3d4c6f/limits",
		"/admin/abuse/blocked/203.0.113.9",
		"/protected",
		"/health",
	}

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			path := paths[i%len(paths)]
			_ = NormalizePath(path)
			i++
		}
	})
}

// BenchmarkNormalizePath_CardinalityReduction demonstrates the memory savings.
// This shows why normalization is important for Prometheus metrics.
func BenchmarkNormalizePath_CardinalityReduction(b *testing.B) {
	// Simulate 10,000 unique key IDs
	paths := make([]string, 10000)
	for i := 0; i < 10000; i++ {
		paths[i] = fmt.Sprintf("/admin/keys/%08x-0000-4000-8000-000000000000/revoke", i)
	}

	b.Run("raw_paths", func(b *testing.B) {
		uniquePaths := make(map[string]bool)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			path := paths[i%len(paths)]
			uniquePaths[path] = true
		}
		b.StopTimer()
		b.Logf("Raw paths: %d unique paths", len(uniquePaths))
	})

	b.Run("normalized_paths", func(b *testing.B) {
		uniquePaths := make(map[string]bool)
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			path := paths[i%len(paths)]
			normalized := NormalizePath(path)
			uniquePaths[normalized] = true
		}
		b.StopTimer()
		b.Logf("Normalized paths: %d unique paths", len(uniquePaths))
	})
}
