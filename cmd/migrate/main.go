// Command migrate applies pending PostgreSQL migrations, or with --wait
// blocks until another process has applied them.
package main

import "github.com/aqasim81/migrate-gate/internal/cli"

func main() {
	cli.Execute()
}
