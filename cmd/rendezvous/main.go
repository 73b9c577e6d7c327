// Command rendezvous records appointments and schedules when to start sharing
// the user's location before each one.
package main

import "github.com/mesh-intelligence/rendezvous/internal/cli"

func main() {
	cli.Execute()
}
