// token prints an admin bearer token signed with AUTH_KEY.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"cronchat/internal/auth"

	"github.com/joho/godotenv"
)

func main() {
	subject := flag.String("sub", "operator", "token subject")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	_ = godotenv.Load()

	key := os.Getenv("AUTH_KEY")
	if key == "" {
		fmt.Fprintln(os.Stderr, "AUTH_KEY is not set")
		os.Exit(1)
	}

	token, err := auth.GenerateToken([]byte(key), *subject, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(token)
}
