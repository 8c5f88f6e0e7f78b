// Command loadtest drives the search service with a fixed mix of structured
// queries, sending a share of them through the diversify endpoint, and
// prints throughput, latency percentiles and status codes.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL        string
	Concurrency    int
	Duration       time.Duration
	DiversifyRatio float64
	Queries        []Query
}

// Query is a search query plus the intents used when it is diversified.
type Query struct {
	Text    string
	Intents []string
}

type diversifyRequest struct {
	Query   string   `json:"query"`
	Intents []string `json:"intents"`
	Limit   int      `json:"limit"`
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	latenciesMu   sync.Mutex
	latencies     map[string][]time.Duration
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make(map[string][]time.Duration),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

// RecordRequest counts one request against endpoint ("search" or
// "diversify"). Latencies are only kept for requests that got a response.
func (s *Stats) RecordRequest(endpoint string, duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies[endpoint] = append(s.latencies[endpoint], duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	diversifyRatio := flag.Float64("diversify-ratio", 0.2, "share of requests sent to the diversify endpoint")
	flag.Parse()

	queries := []Query{
		{"obama family tree", []string{"obama kenya", "family tree project"}},
		{"#near/1(black box)", []string{"flight recorder crash", "black box testing software", "black box theatre"}},
		{"#and(#or(kenya safari) travel)", []string{"kenya safari", "kenya coast"}},
		{"#window/4(black tree)", []string{"family tree", "source tree"}},
		{"flight recorder", []string{"cockpit audio", "crash investigation"}},
		{"#wsum(0.7 black.body 0.3 box.title)", []string{"black box testing", "shipping box"}},
		{"shipping boxes", []string{"box sizes", "moving"}},
		{"theatre performance space", []string{"black box theatre", "stage design"}},
	}

	cfg := Config{
		BaseURL:        *baseURL,
		Concurrency:    *concurrency,
		Duration:       *duration,
		DiversifyRatio: *diversifyRatio,
		Queries:        queries,
	}

	fmt.Println("=== Query Engine Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Printf("Diversified: %.0f%%\n", cfg.DiversifyRatio*100)
	fmt.Println()

	stats := runLoadTest(cfg)
	printReport(stats, cfg.Duration)
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			queryIdx := workerID
			rng := rand.New(rand.NewPCG(uint64(workerID), uint64(time.Now().UnixNano())))

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				query := cfg.Queries[queryIdx%len(cfg.Queries)]
				queryIdx++

				var req *http.Request
				endpoint := "search"
				if rng.Float64() < cfg.DiversifyRatio {
					endpoint = "diversify"
					req = diversifyRequestFor(ctx, cfg.BaseURL, query)
				} else {
					req = mustNewRequest(ctx, http.MethodGet,
						fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", cfg.BaseURL, url.QueryEscape(query.Text)), nil)
				}

				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)

				if err != nil {
					stats.RecordRequest(endpoint, duration, 0, err)
					continue
				}
				if resp.Header.Get("X-Cache") == "HIT" {
					stats.cacheHits.Add(1)
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.RecordRequest(endpoint, duration, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func diversifyRequestFor(ctx context.Context, baseURL string, q Query) *http.Request {
	body, err := json.Marshal(diversifyRequest{Query: q.Text, Intents: q.Intents, Limit: 10})
	if err != nil {
		panic(fmt.Sprintf("encoding request: %v", err))
	}
	req := mustNewRequest(ctx, http.MethodPost, baseURL+"/api/v1/diversify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func mustNewRequest(ctx context.Context, method, rawURL string, body io.Reader) *http.Request {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		panic(fmt.Sprintf("creating request: %v", err))
	}
	return req
}

func printReport(stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Println("=== Results ===")
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)
	fmt.Printf("Cache Hits:      %d\n", stats.cacheHits.Load())

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	endpoints := make([]string, 0, len(stats.latencies))
	byEndpoint := make(map[string][]time.Duration, len(stats.latencies))
	var all []time.Duration
	for ep, l := range stats.latencies {
		endpoints = append(endpoints, ep)
		byEndpoint[ep] = append([]time.Duration(nil), l...)
		all = append(all, l...)
	}
	stats.latenciesMu.Unlock()
	sort.Strings(endpoints)

	printLatency("all", all)
	if len(endpoints) > 1 {
		for _, ep := range endpoints {
			printLatency(ep, byEndpoint[ep])
		}
	}

	fmt.Println()
	fmt.Println("=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		count := stats.statusCodes[code].Load()
		fmt.Printf("  %d: %d\n", code, count)
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func printLatency(label string, latencies []time.Duration) {
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg := sum / time.Duration(len(latencies))

	var sumSquared float64
	for _, l := range latencies {
		diff := float64(l) - float64(avg)
		sumSquared += diff * diff
	}
	stddev := time.Duration(math.Sqrt(sumSquared / float64(len(latencies))))

	fmt.Println()
	fmt.Printf("=== Latency (%s, n=%d) ===\n", label, len(latencies))
	fmt.Printf("Min:    %s\n", latencies[0])
	fmt.Printf("Avg:    %s\n", avg)
	fmt.Printf("P50:    %s\n", percentile(latencies, 50))
	fmt.Printf("P95:    %s\n", percentile(latencies, 95))
	fmt.Printf("P99:    %s\n", percentile(latencies, 99))
	fmt.Printf("Max:    %s\n", latencies[len(latencies)-1])
	fmt.Printf("StdDev: %s\n", stddev)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
