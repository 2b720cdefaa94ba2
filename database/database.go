package database

import (
	"github.com/golang-migrate/migrate/v4"
	"github.com/jinzhu/gorm"
	"github.com/pkg/errors"

	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jinzhu/gorm/dialects/mysql"

	"github.com/JasonDocton/rad-crowdfunding/config"
)

// db is the payment database
var db *gorm.DB

// Connect connects to the database mentioned in the config variable, applying
// any pending migrations first.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	connectionString := buildConnectionString(cfg)

	if cfg.MigrationsPath != "" {
		err := applyMigrations(cfg.MigrationsPath, connectionString)
		if err != nil {
			return nil, err
		}
	}

	gormDB, err := gorm.Open("mysql", connectionString)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't connect to database")
	}
	gormDB.DB().SetMaxOpenConns(32)

	db = gormDB
	return db, nil
}

// Close closes the connection to the database
func Close() error {
	if db == nil {
		return nil
	}
	err := db.Close()
	db = nil
	return err
}

func buildConnectionString(cfg *config.Config) string {
	return cfg.DBAddress + "?parseTime=true&multiStatements=true"
}

func applyMigrations(migrationsPath, connectionString string) error {
	migrator, err := migrate.New("file://"+migrationsPath, "mysql://"+connectionString)
	if err != nil {
		return errors.Wrap(err, "couldn't initialize migrations")
	}
	defer migrator.Close()

	version, isDirty, err := migrator.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return errors.Wrap(err, "couldn't read migration version")
	}
	if isDirty {
		return errors.Errorf("database is dirty at migration version %d, resolve manually", version)
	}

	err = migrator.Up()
	if err != nil && err != migrate.ErrNoChange {
		return errors.Wrap(err, "couldn't apply migrations")
	}
	log.Infof("Database is at migration version %d", currentVersion(migrator))
	return nil
}

func currentVersion(migrator *migrate.Migrate) uint {
	version, _, err := migrator.Version()
	if err != nil {
		return 0
	}
	return version
}
