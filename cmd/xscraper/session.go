package main

import (
	"context"
	"fmt"

	"xscraper/pkg/auth"
	"xscraper/pkg/config"
	errs "xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/twitter"
	"xscraper/pkg/ui"
)

// accountSource is the part of auth.Manager used to pick browser cookies
type accountSource interface {
	Retrieve(username string) (*auth.Account, error)
	RetrieveDefault() (*auth.Account, error)
}

// resolveSession picks the session cookies in order: the named stored
// account, the configuration (file or environment), the default stored account.
func resolveSession(cfg *config.Config, accounts accountSource, accountName string) (twitter.Session, string, error) {
	if accountName != "" {
		account, err := accounts.Retrieve(accountName)
		if err != nil {
			return twitter.Session{}, "", errs.Wrap(errs.ErrorTypeAuth, fmt.Sprintf("account %q not found, see 'xscraper auth list'", accountName), err)
		}
		applyAccount(cfg, account)
		return sessionOf(cfg), account.Username, nil
	}

	if cfg.HasCredentials() {
		return sessionOf(cfg), cfg.Account.Username, nil
	}

	account, err := accounts.RetrieveDefault()
	if err != nil {
		return twitter.Session{}, "", errs.Wrap(errs.ErrorTypeAuth,
			"no X session found, run 'xscraper auth login' or set XSCRAPER_AUTH_TOKEN and XSCRAPER_CSRF_TOKEN", err)
	}
	applyAccount(cfg, account)
	return sessionOf(cfg), account.Username, nil
}

func applyAccount(cfg *config.Config, account *auth.Account) {
	cfg.Account.Username = account.Username
	cfg.Account.AuthToken = account.AuthToken
	cfg.Account.CSRFToken = account.CSRFToken
	if account.UserAgent != "" {
		cfg.Account.UserAgent = account.UserAgent
	}
}

func sessionOf(cfg *config.Config) twitter.Session {
	return twitter.Session{AuthToken: cfg.Account.AuthToken, CSRFToken: cfg.Account.CSRFToken}
}

// openBrowser resolves credentials and starts Chrome
func openBrowser(ctx context.Context, cfg *config.Config, accountName string, log logger.Logger) (*twitter.Browser, error) {
	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise credential manager: %w", err)
	}

	session, username, err := resolveSession(cfg, manager, accountName)
	if err != nil {
		return nil, err
	}
	if username != "" {
		ui.PrintInfo("Using account", username)
		log.WithField("account", username).Info("Using stored credentials")
	}

	browser, err := twitter.NewBrowser(ctx, twitter.BrowserOptionsFromConfig(cfg, session, log))
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return browser, nil
}
