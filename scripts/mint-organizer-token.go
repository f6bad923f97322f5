package main

import (
	"fmt"
	"os"

	"github.com/doorcrew/scanner-server-go/internal/middleware"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: go run scripts/mint-organizer-token.go <secret> <organizerID>\n")
		os.Exit(1)
	}

	fmt.Println(middleware.OrganizerToken(os.Args[1], os.Args[2]))
}
