package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/lexisync/internal/buildinfo"
	"github.com/dmitrijs2005/lexisync/internal/cli"
	"github.com/dmitrijs2005/lexisync/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}
