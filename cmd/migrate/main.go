// Command migrate manages the PostgreSQL schema of the jwtauth service.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/example/jwtauth/internal/config"
	"github.com/example/jwtauth/internal/dbmigrate"
	"github.com/example/jwtauth/internal/logging"
)

type options struct {
	command string
	steps   int
	version uint
	dir     string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.command, "command", "up", "Migration command: up, down, version, force")
	fs.IntVar(&o.steps, "steps", 0, "Number of migration steps (for up/down)")
	fs.UintVar(&o.version, "version", 0, "Target version (for force command)")
	fs.StringVar(&o.dir, "dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}

	switch o.command {
	case "up", "down", "version":
	case "force":
		if o.version == 0 {
			return o, errors.New("force requires -version")
		}
	default:
		return o, fmt.Errorf("unknown command %q (supported: up, down, version, force)", o.command)
	}
	if o.steps < 0 {
		return o, errors.New("-steps must not be negative")
	}
	return o, nil
}

func run(o options, c *config.Config, out io.Writer) error {
	if c.DBAdapter != "postgres" {
		return fmt.Errorf("migrations only work with PostgreSQL, current adapter: %s", c.DBAdapter)
	}
	dsn, err := c.BuildPostgresDSN()
	if err != nil {
		return fmt.Errorf("postgres config: %w", err)
	}
	dir := c.MigrationsDir
	if o.dir != "" {
		dir = o.dir
	}

	m, err := dbmigrate.Open(dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	switch o.command {
	case "up":
		if err := m.Up(o.steps); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations applied")
	case "down":
		if err := m.Down(o.steps); err != nil {
			return err
		}
		fmt.Fprintln(out, "migrations rolled back")
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if dirty {
			return fmt.Errorf("database is dirty at version %d", v)
		}
		fmt.Fprintf(out, "current version: %d\n", v)
	case "force":
		if err := m.Force(int(o.version)); err != nil {
			return err
		}
		fmt.Fprintf(out, "forced version %d\n", o.version)
	}
	return nil
}

func main() {
	logger := logging.New(os.Stderr, "info", "text")

	o, err := parseFlags(os.Args[1:])
	if err != nil {
		logger.Error("invalid arguments", "err", err)
		os.Exit(2)
	}

	c, err := config.New()
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	if err := run(o, c, os.Stdout); err != nil {
		logger.Error("migration failed", "command", o.command, "err", err)
		os.Exit(1)
	}
}
