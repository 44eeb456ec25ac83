// ABOUTME: Entry point for ledger-admin, the command line client for ledger-gateway
// ABOUTME: All commands live in the cmd package

package main

import "github.com/2389/ledger-gateway/cmd/ledger-admin/cmd"

func main() {
	cmd.Execute()
}
