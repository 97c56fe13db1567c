package main

import (
	"context"
	"fmt"
	"os"

	"photo-studio/internal/presentation/cli"
)

// Метаданные сборки, задаются через -ldflags
var (
	version   = "dev"
	commitSHA = "unknown"
	buildDate = "unknown"
)

func main() {
	app := cli.NewCLI(cli.BuildInfo{
		Version:   version,
		CommitSHA: commitSHA,
		BuildDate: buildDate,
	})

	if err := app.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}
