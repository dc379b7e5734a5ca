// Package main provides the entry point for the tokentrail CLI.
//
// tokentrail crawls token transfers around a blockchain address, persists
// them, and reports where the funds went.
//
// Usage:
//
//	tokentrail track -t <token> -a <address>
//	tokentrail report -t <token> -a <address> --level 3
//	tokentrail mark -t <token> -a <address>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
