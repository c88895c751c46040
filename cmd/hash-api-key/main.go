// Package main provides a standalone CLI tool for provisioning the admin
// API key: it prints the bcrypt hash to store under admin.api_key_hash in
// the configuration.
//
// Usage:
//
//	hash-api-key --key "the-admin-key"
//	hash-api-key < key-file
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mbellec/diocese-newsletter/internal/auth"
)

func main() {
	key := flag.String("key", "", "admin API key to hash (read from stdin when omitted)")
	flag.Parse()

	value := *key
	if value == "" {
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			value = strings.TrimSpace(scanner.Text())
		}
	}
	if value == "" {
		fmt.Fprintln(os.Stderr, "no API key given: pass --key or pipe it on stdin")
		os.Exit(1)
	}

	hash, err := auth.HashAPIKey(value)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(hash)
}
