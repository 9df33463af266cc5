package main

import (
	"errors"
	"flag"
	"log"

	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/pkg/database"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	source := flag.String("source", "file://migrations", "migration files")
	down := flag.Bool("down", false, "roll back one version")
	force := flag.Int("force", -1, "force the schema version after a failed migration")
	flag.Parse()

	config.LoadConfig()
	m, err := migrate.New(*source, database.URL(config.GlobalConfig.Database))
	if err != nil {
		log.Fatal(err)
	}
	defer m.Close()

	if *force >= 0 {
		if err := m.Force(*force); err != nil {
			log.Fatal("Failed to force version:", err)
		}
		log.Printf("Forced schema version %d", *force)
	}

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			log.Fatalf("Database is dirty at version %d, fix it and rerun with -force %d", dirty.Version, dirty.Version-1)
		}
		log.Fatal(err)
	}

	version, isDirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		log.Fatal(verr)
	}
	log.Printf("Migration successful, version=%d dirty=%v", version, isDirty)
}
