package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"spendlog/internal/cli"
	"spendlog/internal/config"
	"spendlog/internal/core"
	applog "spendlog/internal/log"
	"spendlog/internal/services"
	"spendlog/internal/store"
)

func main() {
	cli.LoadEnvFile()
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("spendlog-adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	email := fs.String("email", "", "Email address used to log in")
	first := fs.String("first", "", "First name")
	last := fs.String("last", "", "Last name")
	country := fs.String("country", "US", "Country")
	currency := fs.String("currency", "USD", "ISO 4217 currency code")
	timezone := fs.String("timezone", "", "IANA timezone (defaults to DEFAULT_TIMEZONE)")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	dbPath := fs.String("db", "", "SQLite database path (overrides SQLITE_DB_PATH)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	var missing []string
	for _, f := range []struct{ name, value string }{{"email", *email}, {"first", *first}, {"last", *last}} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		fmt.Fprintln(stdout, "Usage: spendlog-adduser -email <email> -first <name> -last <name> [-password <password>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.DataBackend = "sqlite"
		cfg.SQLiteDBPath = *dbPath
	}
	if err := cli.ValidateBackend(cfg); err != nil {
		return err
	}
	if *timezone == "" {
		*timezone = cfg.DefaultTimezone
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout) // Print newline after password input
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password cannot be empty")
	}

	ctx := context.Background()
	logger := applog.New(applog.Config{Component: "adduser", Handler: slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn})})
	result, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	accounts := services.NewAccountService(result.Store, nil, nil)
	user, err := accounts.Register(ctx, services.RegisterRequest{
		FirstName: *first,
		LastName:  *last,
		Email:     *email,
		Password:  password,
		Country:   *country,
		Currency:  *currency,
		Timezone:  *timezone,
	})
	switch {
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("user %s already exists", core.NormalizeEmail(*email))
	case err != nil:
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s\n", user.Email, user.ID)
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
