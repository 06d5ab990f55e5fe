package main

import (
	"context"
	"log"
	"os"
	"time"

	google_datastore "cloud.google.com/go/datastore"
	"github.com/alecthomas/kong"
	"github.com/contactgate/contactgate/pkg/cli"
	sessionstore "github.com/contactgate/contactgate/pkg/session/datastore"
)

const sessionTTL = 30 * time.Minute

func main() {
	ctx := context.Background()
	dsClient, err := google_datastore.NewClient(ctx, os.Getenv("PROJECT_ID"))
	if err != nil {
		log.Fatalf("error initializing datastore client: %s", err)
	}

	kc := kong.Parse(&cli.CLI)
	kc.FatalIfErrorf(kc.Run(&cli.Config{Sessions: sessionstore.New(dsClient, sessionTTL)}))
}
