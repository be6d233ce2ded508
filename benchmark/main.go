// Benchmark suite for imq: measures send throughput and end-to-end
// delivery throughput against a local Redis instance.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hemant/imq"
	"github.com/redis/go-redis/v9"
)

const redisAddr = "localhost:6379"

type benchmarkResult struct {
	Name     string
	Messages int
	Workers  int
	Duration time.Duration
	Rate     float64
	RateK    float64
	Success  int64
	Failed   int64
}

var allResults []benchmarkResult

func clearRedis() {
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()
	client.FlushAll(context.Background())
}

// benchmarkSend measures raw Send throughput against a single queue name.
func benchmarkSend(numMessages, concurrency int) benchmarkResult {
	log.Printf("\n=== SEND BENCHMARK ===")
	log.Printf("Messages: %d, Concurrency: %d goroutines", numMessages, concurrency)

	q, err := imq.New("bench-send", imq.Config{Host: "localhost", Port: 6379})
	if err != nil {
		log.Fatalf("could not create queue: %v", err)
	}
	defer q.Destroy(context.Background())

	payload, _ := json.Marshal(map[string]interface{}{
		"data":      "benchmark payload data for testing throughput",
		"timestamp": time.Now().Unix(),
	})

	var wg sync.WaitGroup
	var successCount, failCount int64
	perWorker := numMessages / concurrency
	start := time.Now()

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := q.Send("bench-send", json.RawMessage(payload), 0, nil); err != nil {
					atomic.AddInt64(&failCount, 1)
				} else {
					atomic.AddInt64(&successCount, 1)
				}
			}
		}()
	}
	wg.Wait()
	duration := time.Since(start)
	rate := float64(successCount) / duration.Seconds()

	result := benchmarkResult{
		Name:     fmt.Sprintf("Send (concurrency=%d)", concurrency),
		Messages: numMessages,
		Workers:  concurrency,
		Duration: duration,
		Rate:     rate,
		RateK:    rate / 1000,
		Success:  successCount,
		Failed:   failCount,
	}
	log.Printf("Results: duration=%v success=%d failed=%d rate=%.2f msg/sec (%.2fK)",
		duration, successCount, failCount, rate, rate/1000)
	return result
}

// benchmarkDelivery measures end-to-end delivery throughput: pre-fill a
// queue's ready list, then start a consuming Queue and time how long it
// takes to drain it.
func benchmarkDelivery(numMessages int) benchmarkResult {
	log.Printf("\n=== DELIVERY BENCHMARK ===")
	log.Printf("Messages: %d", numMessages)

	producer, err := imq.New("bench-delivery-producer", imq.Config{Host: "localhost", Port: 6379})
	if err != nil {
		log.Fatalf("could not create producer queue: %v", err)
	}

	payload, _ := json.Marshal(map[string]interface{}{"data": "benchmark"})
	var wg sync.WaitGroup
	enqueueWorkers := 100
	perWorker := numMessages / enqueueWorkers
	for w := 0; w < enqueueWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				producer.Send("bench-delivery", json.RawMessage(payload), 0, nil)
			}
		}()
	}
	wg.Wait()
	time.Sleep(200 * time.Millisecond) // let fire-and-forget sends land
	producer.Destroy(context.Background())
	log.Printf("pre-filled %d messages", numMessages)

	var delivered int64
	var startTime time.Time
	var started bool
	var mu sync.Mutex

	consumer, err := imq.New("bench-delivery", imq.Config{Host: "localhost", Port: 6379})
	if err != nil {
		log.Fatalf("could not create consumer queue: %v", err)
	}
	consumer.OnMessage(func(_ json.RawMessage, _, _ string) {
		mu.Lock()
		if !started {
			startTime = time.Now()
			started = true
		}
		mu.Unlock()
		atomic.AddInt64(&delivered, 1)
	})
	if err := consumer.Start(context.Background()); err != nil {
		log.Fatalf("could not start consumer: %v", err)
	}
	defer consumer.Destroy(context.Background())

	timeout := time.After(120 * time.Second)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count := atomic.LoadInt64(&delivered)
			if count >= int64(numMessages) {
				duration := time.Since(startTime)
				rate := float64(count) / duration.Seconds()
				log.Printf("Results: duration=%v delivered=%d rate=%.2f msg/sec (%.2fK)",
					duration, count, rate, rate/1000)
				return benchmarkResult{
					Name:     "Delivery",
					Messages: numMessages,
					Duration: duration,
					Rate:     rate,
					RateK:    rate / 1000,
					Success:  count,
				}
			}
		case <-timeout:
			count := atomic.LoadInt64(&delivered)
			duration := time.Since(startTime)
			log.Printf("TIMEOUT: delivered only %d/%d in %v", count, numMessages, duration)
			return benchmarkResult{
				Name:     "Delivery (timeout)",
				Messages: numMessages,
				Duration: duration,
				Success:  count,
				Failed:   int64(numMessages) - count,
			}
		}
	}
}

func printSummaryTable() {
	fmt.Println("\n=== BENCHMARK RESULTS SUMMARY ===")
	for _, r := range allResults {
		fmt.Printf("%-30s messages=%-8d workers=%-4d rate=%.2fK/s\n", r.Name, r.Messages, r.Workers, r.RateK)
	}
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	log.Printf("CPU cores: %d, GOMAXPROCS: %d", runtime.NumCPU(), runtime.GOMAXPROCS(0))

	for _, concurrency := range []int{10, 50, 100} {
		clearRedis()
		allResults = append(allResults, benchmarkSend(50000, concurrency))
	}

	clearRedis()
	allResults = append(allResults, benchmarkDelivery(50000))

	printSummaryTable()
}
