// Command imqctl is a small operator CLI for imq: send a message, peek at a
// queue's ready list, or watch a queue's traffic live.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"

	"github.com/hemant/imq"
	"github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "send":
		runSend(os.Args[2:])
	case "peek":
		runPeek(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: imqctl <send|peek|watch> [flags]")
}

func runSend(args []string) {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	redisAddr := fs.String("redis", "localhost:6379", "Redis server address")
	queue := fs.String("queue", "", "target queue name")
	message := fs.String("message", "{}", "JSON message body")
	delay := fs.Duration("delay", 0, "delay before the message becomes visible")
	fs.Parse(args)

	if *queue == "" {
		log.Fatal("imqctl send: -queue is required")
	}

	q, err := imq.New("imqctl-send", imq.Config{Host: hostOf(*redisAddr), Port: portOf(*redisAddr)})
	if err != nil {
		log.Fatalf("imqctl send: %v", err)
	}
	defer q.Destroy(context.Background())

	id, err := q.Send(*queue, json.RawMessage(*message), *delay, nil)
	if err != nil {
		log.Fatalf("imqctl send: %v", err)
	}
	fmt.Println(id)
}

func runPeek(args []string) {
	fs := flag.NewFlagSet("peek", flag.ExitOnError)
	redisAddr := fs.String("redis", "localhost:6379", "Redis server address")
	prefix := fs.String("prefix", "imq", "key namespace prefix")
	queue := fs.String("queue", "", "queue name to peek at")
	limit := fs.Int64("limit", 10, "maximum number of envelopes to show")
	fs.Parse(args)

	if *queue == "" {
		log.Fatal("imqctl peek: -queue is required")
	}

	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer client.Close()

	inspector := imq.NewInspector(client, *prefix)
	items, err := inspector.Peek(context.Background(), *queue, *limit)
	if err != nil {
		log.Fatalf("imqctl peek: %v", err)
	}
	for _, item := range items {
		fmt.Println(item)
	}
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	redisAddr := fs.String("redis", "localhost:6379", "Redis server address")
	queue := fs.String("queue", "", "queue name to watch")
	fs.Parse(args)

	if *queue == "" {
		log.Fatal("imqctl watch: -queue is required")
	}

	q, err := imq.New(*queue, imq.Config{Host: hostOf(*redisAddr), Port: portOf(*redisAddr)})
	if err != nil {
		log.Fatalf("imqctl watch: %v", err)
	}
	q.OnMessage(func(payload json.RawMessage, id, from string) {
		fmt.Printf("id=%s from=%s payload=%s\n", id, from, string(payload))
	})
	q.OnError(func(err error, source string) {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", source, err)
	})
	if err := q.Start(context.Background()); err != nil {
		log.Fatalf("imqctl watch: %v", err)
	}
	select {}
}

func hostOf(addr string) string {
	host, _ := splitHostPort(addr)
	return host
}

func portOf(addr string) int {
	_, port := splitHostPort(addr)
	return port
}

func splitHostPort(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6379
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6379
	}
	return host, port
}
