package main

import (
	"context"

	"loginscraper/cmd/loginscrape/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
