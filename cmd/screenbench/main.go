// Benchmark tool for testing Harrier against labeled watchlist data.
//
// Usage:
//   go run cmd/screenbench/main.go -csv /path/to/labeled_names.csv -url http://localhost:8080
//
// This tool:
//   1. Reads labeled entity data (name, type, country, is_listed)
//   2. Sends each entity to Harrier for screening
//   3. Compares Harrier's verdict (match / no match) with the labels
//   4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LabeledEntity represents a row from the benchmark dataset
type LabeledEntity struct {
	Name     string
	Type     string
	Country  string
	IsListed bool
}

// ScreenRequest is the Harrier API request format
type ScreenRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Country string `json:"country,omitempty"`
}

// ScreenResponse is the Harrier API response format
type ScreenResponse struct {
	RequestID    string `json:"requestId"`
	MatchesFound bool   `json:"matchesFound"`
	RiskLevel    string `json:"riskLevel"`
	Findings     []struct {
		BestScore          float64 `json:"bestScore"`
		RepresentativeName string  `json:"representativeName"`
	} `json:"findings"`
}

// Metrics tracks benchmark results
type Metrics struct {
	TruePositives  int64 // Listed entity matched
	FalsePositives int64 // Clean entity matched
	TrueNegatives  int64 // Clean entity cleared
	FalseNegatives int64 // Listed entity cleared (missed hit!)

	TotalProcessed int64
	TotalListed    int64
	TotalClean     int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	// Parse flags
	csvPath := flag.String("csv", "", "Path to labeled entity CSV file (name,type,country,is_listed)")
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum entities to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	listedOnly := flag.Bool("listed-only", false, "Only test listed entities")
	verbose := flag.Bool("verbose", false, "Print each screening result")
	flag.Parse()

	if *csvPath == "" {
		fmt.Println("Usage: screenbench -csv /path/to/labeled_names.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         HARRIER BENCHMARK - Watchlist Screening               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", *csvPath)
	fmt.Printf("Harrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Listed Only: %v\n", *listedOnly)
	fmt.Println()

	// Check Harrier is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  cd harrier && go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	// Read labeled data
	fmt.Printf("\nReading labeled entities from %s...\n", *csvPath)
	entities, err := readLabeledCSV(*csvPath, *limit, *listedOnly)
	if err != nil {
		fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Loaded %d entities\n", len(entities))

	// Count listed vs clean
	listedCount := 0
	for _, e := range entities {
		if e.IsListed {
			listedCount++
		}
	}
	fmt.Printf("  - Listed:  %d (%.2f%%)\n", listedCount, 100*float64(listedCount)/float64(len(entities)))
	fmt.Printf("  - Clean:   %d (%.2f%%)\n", len(entities)-listedCount, 100*float64(len(entities)-listedCount)/float64(len(entities)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(entities, *baseURL, *tenantID, *workers, *verbose)
	duration := time.Since(startTime)

	// Print results
	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func readLabeledCSV(path string, limit int, listedOnly bool) ([]LabeledEntity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map column indices
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"name", "is_listed"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var entities []LabeledEntity

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		isListed := record[colIndex["is_listed"]] == "1"

		// Apply filters
		if listedOnly && !isListed {
			continue
		}

		e := LabeledEntity{
			Name:     record[colIndex["name"]],
			IsListed: isListed,
		}
		if idx, ok := colIndex["type"]; ok {
			e.Type = record[idx]
		}
		if idx, ok := colIndex["country"]; ok {
			e.Country = record[idx]
		}

		entities = append(entities, e)

		if limit > 0 && len(entities) >= limit {
			break
		}
	}

	return entities, nil
}

func runBenchmark(entities []LabeledEntity, baseURL, tenantID string, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	// Create work channel
	work := make(chan LabeledEntity, 100)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for e := range work {
				start := time.Now()
				result, err := screenEntity(client, baseURL, tenantID, e)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", e.Name, err)
					}
					continue
				}

				// Track actual labels
				if e.IsListed {
					atomic.AddInt64(&metrics.TotalListed, 1)
				} else {
					atomic.AddInt64(&metrics.TotalClean, 1)
				}

				// Calculate confusion matrix
				predicted := result.MatchesFound
				actual := e.IsListed

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if (predicted && !actual) || (!predicted && actual) {
						status = "✗"
					}
					best := 0.0
					if len(result.Findings) > 0 {
						best = result.Findings[0].BestScore
					}
					name := e.Name
					if len(name) > 24 {
						name = name[:24]
					}
					fmt.Printf("%s %-24s | Listed: %-5v | Harrier: %-8s (%.2f)\n",
						status,
						name,
						e.IsListed,
						result.RiskLevel,
						best,
					)
				}
			}
		}()
	}

	// Send work
	for _, e := range entities {
		work <- e
	}
	close(work)

	// Wait for completion
	wg.Wait()

	return metrics
}

func screenEntity(client *http.Client, baseURL, tenantID string, e LabeledEntity) (*ScreenResponse, error) {
	req := ScreenRequest{
		Name:    e.Name,
		Type:    e.Type,
		Country: e.Country,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/screen", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result ScreenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total Listed:     %d\n", m.TotalListed)
	fmt.Printf("   Total Clean:      %d\n", m.TotalClean)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                   MATCH       CLEAR")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  L  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           C  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	// Calculate metrics
	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of matches, how many were actual listings)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of listings, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	// Detection rate analysis
	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalListed > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalListed) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalListed) * 100
		fmt.Printf("   Listings Caught:   %d / %d (%.2f%%)\n", m.TruePositives, m.TotalListed, detectionRate)
		fmt.Printf("   Listings Missed:   %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalListed, missRate)
	}
	if m.TotalClean > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalClean) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalClean, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		qps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f screens/sec\n", qps)
	}

	// Interpretation
	fmt.Printf("\n💡 INTERPRETATION\n")
	if recall >= 0.9 {
		fmt.Println("   ✅ Excellent recall - catching most listings")
	} else if recall >= 0.7 {
		fmt.Println("   ⚠️  Good recall - but missing some listings")
	} else if recall >= 0.5 {
		fmt.Println("   ⚠️  Moderate recall - significant listings being missed")
	} else {
		fmt.Println("   ❌ Poor recall - most listings are being missed!")
	}

	if precision >= 0.5 {
		fmt.Println("   ✅ Good precision - matches are meaningful")
	} else if precision >= 0.2 {
		fmt.Println("   ⚠️  Low precision - many false alarms")
	} else {
		fmt.Println("   ❌ Very low precision - mostly false alarms")
	}

	fmt.Println()
}
