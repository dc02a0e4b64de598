// Command authctl is an interactive client for the auth API. The session lives
// in memory for the lifetime of the process and is revalidated transparently.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-auth-sessions/internal/client"
	"github.com/go-auth-sessions/internal/config"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	baseURL := flag.String("url", "http://localhost:"+cfg.AppPort, "API base URL")
	namespace := flag.String("app", cfg.CookieNamespace(), "cookie namespace (lower-cased APP_NAME)")
	flag.Parse()

	c, err := client.New(*baseURL, *namespace)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sh := &shell{
		api:     c,
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		readPwd: readPassword,
	}
	sh.run(ctx)
}
