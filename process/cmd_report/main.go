package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rodneymondela/slip-management/process/report"

	"github.com/joho/godotenv"
)

func main() {
	username := flag.String("username", "", "username to report for")
	month := flag.String("month", "", "month to report (YYYY-MM)")
	list := flag.Bool("list", false, "list matching journal entries")
	flag.Parse()

	_ = godotenv.Load()
	if *username == "" || *month == "" {
		fmt.Fprintln(os.Stderr, "-username and -month are required")
		os.Exit(2)
	}
	if os.Getenv("DB_DSN") == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}

	report.RunReport(*username, *month, *list)
}
