// Command remindctl triggers a reminder sweep over the ops gRPC API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"booking-api/internal/opsrpc"
)

func main() {
	_ = godotenv.Load()
	addr := flag.String("addr", "localhost:"+env("GRPC_PORT", "50051"), "ops server address")
	secret := flag.String("secret", os.Getenv("CRON_SECRET"), "shared secret (defaults to CRON_SECRET)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "remindctl: a secret is required (-secret or CRON_SECRET)")
		os.Exit(2)
	}

	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "remindctl: dial %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sent, failed, err := opsrpc.SendDueReminders(ctx, conn, *secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "remindctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("sent=%d failed=%d\n", sent, failed)
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
