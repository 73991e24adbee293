package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collector accumulates command and HTTP request metrics in process
type Collector struct {
	mu sync.Mutex

	commandCount   map[string]int64
	commandLatency map[string][]float64
	httpCount      map[string]int64
	startTime      time.Time
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{
		commandCount:   make(map[string]int64),
		commandLatency: make(map[string][]float64),
		httpCount:      make(map[string]int64),
		startTime:      time.Now(),
	}
}

// RecordCommand counts one executed command by kind and outcome and
// records its latency in seconds
func (c *Collector) RecordCommand(kind, outcome string, seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := kind + "|" + outcome
	c.commandCount[key]++
	c.commandLatency[kind] = append(c.commandLatency[kind], seconds)
}

// RecordHTTPRequest counts one HTTP request by method, path and status
func (c *Collector) RecordHTTPRequest(method, path string, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.httpCount[fmt.Sprintf("%s|%s|%d", method, path, status)]++
}

// CommandCount returns the count for a kind/outcome pair
func (c *Collector) CommandCount(kind, outcome string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.commandCount[kind+"|"+outcome]
}

// Uptime returns time elapsed since the collector was created
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Export renders all metrics in a plain text exposition format
func (c *Collector) Export() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder

	fmt.Fprintf(&b, "tradebot_uptime_seconds %.0f\n", time.Since(c.startTime).Seconds())

	for _, key := range sortedKeys(c.commandCount) {
		parts := strings.SplitN(key, "|", 2)
		fmt.Fprintf(&b, "tradebot_commands_total{kind=%q,outcome=%q} %d\n", parts[0], parts[1], c.commandCount[key])
	}

	for _, kind := range sortedLatencyKeys(c.commandLatency) {
		samples := c.commandLatency[kind]
		var sum float64
		for _, s := range samples {
			sum += s
		}
		fmt.Fprintf(&b, "tradebot_command_latency_seconds_sum{kind=%q} %.6f\n", kind, sum)
		fmt.Fprintf(&b, "tradebot_command_latency_seconds_count{kind=%q} %d\n", kind, len(samples))
	}

	for _, key := range sortedKeys(c.httpCount) {
		parts := strings.SplitN(key, "|", 3)
		fmt.Fprintf(&b, "tradebot_http_requests_total{method=%q,path=%q,status=%q} %d\n",
			parts[0], parts[1], parts[2], c.httpCount[key])
	}

	return b.String()
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedLatencyKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
