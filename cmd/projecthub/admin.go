package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aliuyar1234/projecthub/internal/app"
	"github.com/aliuyar1234/projecthub/internal/config"
	"github.com/aliuyar1234/projecthub/internal/db"
	"github.com/aliuyar1234/projecthub/internal/roles"
	"github.com/aliuyar1234/projecthub/internal/store"
	"github.com/aliuyar1234/projecthub/internal/store/postgres"
	"github.com/aliuyar1234/projecthub/internal/users"
	"github.com/joho/godotenv"
)

func runAdmin(args []string) int {
	if len(args) == 0 {
		printAdminUsage()
		return 2
	}

	_ = godotenv.Load()
	app.SetupLogger(strings.TrimSpace(os.Getenv("PH_LOG_LEVEL")))

	switch args[0] {
	case "reset-password":
		return runResetPassword(args[1:])
	case "create-user":
		return runCreateUser(args[1:])
	case "seed-roles":
		return runSeedRoles(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown admin command: %s\n", args[0])
		printAdminUsage()
		return 2
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  projecthub admin reset-password --email user@example.com [--password <new>] [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  projecthub admin create-user --email user@example.com [--password <pw>] [--admin] [--locale en] [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "  projecthub admin seed-roles [--file roles.yaml] [--db-dsn <dsn>]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Notes:")
	fmt.Fprintln(os.Stderr, "  - If --password is omitted, a random password is generated and printed.")
	fmt.Fprintln(os.Stderr, "  - --db-dsn defaults to PH_DB_DSN.")
	fmt.Fprintln(os.Stderr, "  - seed-roles applies the built-in definitions unless --file is given.")
}

// openAdminStore connects to PostgreSQL. The in-memory store is rejected
// because nothing would outlive the command.
func openAdminStore(ctx context.Context, dsn string) (store.Store, error) {
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("PH_DB_DSN"))
	}
	if dsn == "" {
		return nil, errors.New("--db-dsn is required (or set PH_DB_DSN)")
	}
	if dsn == config.MemoryDSN {
		return nil, fmt.Errorf("admin commands need a database, not %s", config.MemoryDSN)
	}

	pool, err := db.Connect(ctx, dsn, db.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, err
	}
	return postgres.New(pool), nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0, false
		}
		return 2, false
	}
	return 0, true
}

func runResetPassword(args []string) int {
	fs := newFlagSet("reset-password")

	var email, password, dbDSN string
	fs.StringVar(&email, "email", "", "User email")
	fs.StringVar(&password, "password", "", "New password (if empty, generates one)")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to PH_DB_DSN)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	email = strings.TrimSpace(email)
	if email == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	password, generated, err := passwordOrGenerated(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate password: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := openAdminStore(ctx, dbDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer st.Close()

	if _, err := users.NewDirectory().ResetPassword(ctx, st, email, password); err != nil {
		switch {
		case errors.Is(err, users.ErrUserNotFound):
			fmt.Fprintf(os.Stderr, "No user found with email %q\n", email)
		case errors.Is(err, users.ErrWeakPassword):
			fmt.Fprintln(os.Stderr, "Password must be at least 8 characters")
			return 2
		default:
			fmt.Fprintf(os.Stderr, "Failed to update password: %v\n", err)
		}
		return 1
	}

	fmt.Fprintln(os.Stdout, "Password updated.")
	if generated {
		fmt.Fprintln(os.Stdout, password)
	}
	return 0
}

func runCreateUser(args []string) int {
	fs := newFlagSet("create-user")

	var email, password, locale, displayName, dbDSN string
	var admin bool
	fs.StringVar(&email, "email", "", "User email")
	fs.StringVar(&password, "password", "", "Password (if empty, generates one)")
	fs.StringVar(&displayName, "name", "", "Display name (defaults to the email)")
	fs.StringVar(&locale, "locale", "", "Preferred locale")
	fs.BoolVar(&admin, "admin", false, "Grant the platform ADMIN role")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to PH_DB_DSN)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	if strings.TrimSpace(email) == "" {
		fmt.Fprintln(os.Stderr, "--email is required")
		return 2
	}

	password, generated, err := passwordOrGenerated(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to generate password: %v\n", err)
		return 1
	}

	role := store.PlatformUser
	if admin {
		role = store.PlatformAdmin
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	st, err := openAdminStore(ctx, dbDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer st.Close()

	var u *store.User
	err = st.InTx(ctx, func(ctx context.Context, q store.Queries) error {
		var err error
		u, err = users.NewDirectory().Create(ctx, q, users.CreateParams{
			Email:        email,
			DisplayName:  strings.TrimSpace(displayName),
			Password:     password,
			PlatformRole: role,
			Locale:       strings.ToLower(strings.TrimSpace(locale)),
		})
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create user: %v\n", err)
		return 1
	}

	fmt.Fprintf(os.Stdout, "User %s created with role %s.\n", u.ID, u.PlatformRole)
	if generated {
		fmt.Fprintln(os.Stdout, password)
	}
	return 0
}

func runSeedRoles(args []string) int {
	fs := newFlagSet("seed-roles")

	var file, dbDSN string
	fs.StringVar(&file, "file", "", "YAML role definitions (defaults to the built-in set)")
	fs.StringVar(&dbDSN, "db-dsn", "", "Postgres DSN (defaults to PH_DB_DSN)")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}

	defs, err := roles.DefaultDefinitions()
	if file != "" {
		data, readErr := os.ReadFile(file)
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", file, readErr)
			return 1
		}
		defs, err = roles.ParseDefinitions(data)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid role definitions: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st, err := openAdminStore(ctx, dbDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer st.Close()

	if err := roles.NewCatalog(1, time.Second, nil).Sync(ctx, st, defs); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to seed roles: %v\n", err)
		return 1
	}

	fmt.Fprintln(os.Stdout, "Role catalog synchronized.")
	return 0
}

func passwordOrGenerated(password string) (string, bool, error) {
	if password != "" {
		return password, false, nil
	}
	pw, err := generatePassword(24)
	if err != nil {
		return "", false, err
	}
	return pw, true, nil
}

func generatePassword(bytesLen int) (string, error) {
	if bytesLen < 8 {
		bytesLen = 8
	}

	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	// URL-safe, printable, without padding.
	return base64.RawURLEncoding.EncodeToString(b), nil
}
