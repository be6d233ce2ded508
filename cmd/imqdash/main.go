// Command imqdash serves a minimal read-only web dashboard over a set of
// imq queue names, reporting ready/delayed/in-flight depth and whether the
// watcher lock for the configured prefix is currently held.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hemant/imq"
	"github.com/redis/go-redis/v9"
)

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "Redis server address")
	prefix := flag.String("prefix", "imq", "key namespace prefix")
	queues := flag.String("queues", "", "comma-separated queue names to monitor")
	port := flag.Int("port", 8080, "HTTP server port")
	flag.Parse()

	names := splitNonEmpty(*queues)
	if len(names) == 0 {
		log.Fatal("imqdash: -queues is required, e.g. -queues=orders,emails")
	}

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("imqdash: failed to connect to redis at %s: %v", *redisAddr, err)
	}
	log.Printf("imqdash: connected to redis at %s", *redisAddr)

	inspector := imq.NewInspector(client, *prefix)
	handler := newDashboardHandler(inspector, names)

	mux := http.NewServeMux()
	mux.HandleFunc("/", handler.handleIndex)
	mux.HandleFunc("/api/queues", handler.handleAPIQueues)

	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("imqdash: shutting down")
		server.Close()
	}()

	log.Printf("imqdash: listening on http://localhost%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("imqdash: server error: %v", err)
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
