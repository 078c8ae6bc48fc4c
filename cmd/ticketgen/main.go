// Command ticketgen mints identity tickets for local development and load
// tests. It signs with auth.ticket_secret from the server config.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/udisondev/zombiearena/internal/auth"
	"github.com/udisondev/zombiearena/internal/config"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file")
	account := flag.String("account", "", "account (wallet address) to issue the ticket for")
	ttl := flag.Duration("ttl", 0, "ticket lifetime (default: auth.ticket_ttl)")
	flag.Parse()

	if *account == "" {
		fmt.Fprintln(os.Stderr, "usage: ticketgen -account <wallet> [-config path] [-ttl 1h]")
		os.Exit(2)
	}

	cfg, err := config.LoadServer(config.ResolvePath(*cfgPath))
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	lifetime := cfg.Auth.TicketTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	issuer, err := auth.NewIssuer(cfg.Auth.TicketSecret, lifetime)
	if err != nil {
		log.Fatalf("creating issuer: %v", err)
	}

	ticket, expires, err := issuer.Issue(*account)
	if err != nil {
		log.Fatalf("issuing ticket: %v", err)
	}

	fmt.Println(ticket)
	fmt.Fprintf(os.Stderr, "expires %s\n", expires.UTC().Format(time.RFC3339))
}
