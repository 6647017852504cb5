package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"onboarding/config"
	"onboarding/internal/domain/entity"
	"onboarding/internal/infra/auth"

	"github.com/pkg/errors"
)

// Prints a signed access token for calling the admin or merchant API.
//
//	admintoken -subject ops@example.com
//	admintoken -role merchant -subject <merchant-uuid> -ttl 1h

func main() {
	cfg, err := config.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := run(os.Args[1:], cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, cfg *config.Config, out io.Writer) error {
	fs := flag.NewFlagSet("admintoken", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	subject := fs.String("subject", "admin-cli", "Token subject (merchant UUID for the merchant role)")
	role := fs.String("role", entity.RoleAdmin.String(), "Role claim: admin or merchant")
	ttl := fs.Duration("ttl", 0, "Token lifetime, defaults to auth.accessTokenTTL")

	if err := fs.Parse(args); err != nil {
		return errors.WithStack(err)
	}

	r, err := entity.ParseRole(*role)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := r.CheckSubject(*subject); err != nil {
		return errors.WithStack(err)
	}

	if *ttl > 0 {
		authCfg := config.AuthConfig{}
		if cfg.Auth != nil {
			authCfg = *cfg.Auth
		}
		authCfg.AccessTokenTTL = *ttl
		cfg.Auth = &authCfg
	}

	tokens, err := auth.NewJWTService(cfg)
	if err != nil {
		return err
	}

	token, err := tokens.GenerateAccessToken(*subject, []string{r.String()})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, token)

	return errors.WithStack(err)
}
