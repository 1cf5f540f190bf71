package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/app"
	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
)

const usage = `usage:
  gatekeeper [serve]
  gatekeeper init-superadmin -email EMAIL -password PASSWORD [-name NAME] [-force]
`

func main() {
	cmd := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	cfg, err := app.LoadConfig(".env")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()
	switch cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "init-superadmin":
		err = initSuperAdmin(ctx, cfg, args)
	case "-h", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func serve(ctx context.Context, cfg app.Config) error {
	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return application.Run(ctx)
}

func initSuperAdmin(ctx context.Context, cfg app.Config, args []string) error {
	fs := flag.NewFlagSet("init-superadmin", flag.ExitOnError)
	email := fs.String("email", "", "SuperAdmin email (required)")
	name := fs.String("name", "", "display name, defaults to the email local part")
	password := fs.String("password", "", "SuperAdmin password (required)")
	force := fs.Bool("force", false, "replace an existing SuperAdmin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		fs.Usage()
		return fmt.Errorf("-email and -password are required")
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() { _ = application.Close() }()

	user, err := application.SuperAdmin().Initialize(ctx, cfg.BootstrapToken, domain.SuperAdminInit{
		Email:    *email,
		Name:     *name,
		Password: *password,
		Force:    *force,
	})
	if err != nil {
		return err
	}

	fmt.Printf("SuperAdmin created: id=%s email=%s\n", user.ID, user.Email)
	return nil
}
