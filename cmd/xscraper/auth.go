package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xscraper/pkg/auth"
	"xscraper/pkg/record"
	"xscraper/pkg/ui"
)

var (
	authTokenPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)
	csrfTokenPattern = regexp.MustCompile(`^[0-9a-zA-Z]{32,160}$`)
)

var (
	loginUserAgent string
	loginNoGuide   bool
	logoutAll      bool
	logoutYes      bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage X session cookies",
	Long: `xscraper reads lists through a logged in browser session. The session is
two cookies copied from your browser: auth_token and ct0.

They are kept in the system keychain when one is available, otherwise in an
encrypted file under the xscraper config directory. XSCRAPER_AUTH_TOKEN and
XSCRAPER_CSRF_TOKEN are read as a last resort.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [handle]",
	Short: "Save the session cookies of an X account",
	Long: `Prompt for the auth_token and ct0 cookies of a logged in X account and
save them. Values are read without echo when stdin is a terminal, so they can
also be piped in, one per line.`,
	Example: `  xscraper auth login
  xscraper auth login @myaccount --user-agent "Mozilla/5.0 ..."
  printf '%s\n%s\n' "$AUTH_TOKEN" "$CT0" | xscraper auth login myaccount --no-guide`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout [handle]",
	Short: "Forget saved session cookies",
	Long: `Remove the cookies saved for handle. Without a handle you pick one of the
saved accounts; --all removes every account.`,
	Example: `  xscraper auth logout myaccount
  xscraper auth logout --all --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogout,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show saved accounts with masked cookies",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authLogoutCmd, authListCmd)

	authLoginCmd.Flags().StringVar(&loginUserAgent, "user-agent", "", "user agent of the browser the cookies came from")
	authLoginCmd.Flags().BoolVar(&loginNoGuide, "no-guide", false, "skip the cookie extraction guide")
	authLogoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove every saved account")
	authLogoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "do not ask for confirmation")
}

// prompter reads answers from stdin and writes prompts to out
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
}

func (p *prompter) line(question string) string {
	fmt.Fprint(p.out, question)
	input, _ := p.in.ReadString('\n')
	return strings.TrimSpace(input)
}

// confirm treats an empty answer as def
func (p *prompter) confirm(question string, def bool) bool {
	answer := strings.ToLower(p.line(question))
	if answer == "" {
		return def
	}
	return strings.HasPrefix(answer, "y")
}

// secret reads a value without echo when stdin is a terminal and asks again
// until it matches valid
func (p *prompter) secret(label string, valid *regexp.Regexp, hint string) (string, error) {
	for {
		fmt.Fprintf(p.out, "%s: ", label)
		value, err := p.readHidden()
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", label, err)
		}
		if valid.MatchString(value) {
			return value, nil
		}
		ui.PrintWarning(hint)
		if !p.confirm("Try again? (Y/n): ", true) {
			return "", errors.New("login cancelled")
		}
	}
}

func (p *prompter) readHidden() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		value, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(p.out)
		if err == nil {
			return strings.TrimSpace(string(value)), nil
		}
	}
	input, err := p.in.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential stores: %w", err)
	}
	p := newPrompter(cmd)

	if !loginNoGuide {
		auth.WriteCookieExtractionGuide(p.out)
	}

	var handle string
	if len(args) > 0 {
		handle = args[0]
	} else {
		handle = p.line("X handle: ")
	}
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return errors.New("a handle is required")
	}

	if existing, _ := manager.Retrieve(handle); existing != nil &&
		!p.confirm(fmt.Sprintf("Cookies for @%s are already saved. Replace them? (y/N): ", existing.Username), false) {
		return nil
	}

	authToken, err := p.secret("auth_token", authTokenPattern,
		"auth_token is 40 lowercase hex characters")
	if err != nil {
		return err
	}
	csrfToken, err := p.secret("ct0", csrfTokenPattern,
		"ct0 is 32 to 160 letters and digits")
	if err != nil {
		return err
	}

	account := &auth.Account{
		Username:     handle,
		AuthToken:    authToken,
		CSRFToken:    csrfToken,
		UserAgent:    loginUserAgent,
		LastModified: time.Now(),
	}
	if err := manager.Store(account); err != nil {
		return fmt.Errorf("failed to save cookies: %w", err)
	}

	where := "encrypted file"
	if auth.IsKeyringAvailable() {
		where = "system keychain and encrypted file"
	}
	ui.PrintSuccess(fmt.Sprintf("Saved @%s (%s)", handle, where))
	ui.PrintInfo("Next", fmt.Sprintf("xscraper scrape <handle> --account %s", handle))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential stores: %w", err)
	}
	p := newPrompter(cmd)

	if logoutAll {
		if !logoutYes && p.line("Remove ALL saved accounts? Type 'yes' to confirm: ") != "yes" {
			return nil
		}
		if err := manager.DeleteAll(); err != nil {
			return fmt.Errorf("failed to remove accounts: %w", err)
		}
		ui.PrintSuccess("All accounts removed")
		return nil
	}

	var handle string
	if len(args) > 0 {
		handle = args[0]
	} else {
		accounts, err := manager.List()
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		if len(accounts) == 0 {
			ui.PrintWarning("No saved accounts")
			return nil
		}
		renderAccounts(p.out, accounts)
		account, err := pickAccount(accounts, p.line("Account to remove (number or handle, empty to cancel): "))
		if err != nil || account == nil {
			return err
		}
		handle = account.Username
	}

	if !logoutYes && len(args) == 0 && !p.confirm(fmt.Sprintf("Remove @%s? (y/N): ", handle), false) {
		return nil
	}
	if err := manager.Delete(handle); err != nil {
		return fmt.Errorf("failed to remove @%s: %w", handle, err)
	}
	ui.PrintSuccess("Removed @" + handle)
	return nil
}

// pickAccount resolves a 1-based row number or a handle. Empty input
// returns nil, nil.
func pickAccount(accounts []*auth.Account, input string) (*auth.Account, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	if n, err := strconv.Atoi(input); err == nil {
		if n < 1 || n > len(accounts) {
			return nil, fmt.Errorf("no account number %d", n)
		}
		return accounts[n-1], nil
	}
	for _, a := range accounts {
		if record.Key(a.Username) == record.Key(input) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no saved account %q", input)
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential stores: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintInfo("No saved accounts", "run 'xscraper auth login' to add one")
		return nil
	}
	renderAccounts(cmd.OutOrStdout(), accounts)
	return nil
}

// renderAccounts writes accounts as a table with masked cookies; the first
// row is the account used when --account is not given
func renderAccounts(w io.Writer, accounts []*auth.Account) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Saved accounts")
	t.AppendHeader(table.Row{"#", "Handle", "auth_token", "ct0", "User agent", "Saved"})
	for i, account := range accounts {
		masked := auth.SanitizeAccount(account)
		name := "@" + masked.Username
		if i == 0 {
			name += " (default)"
		}
		t.AppendRow(table.Row{
			i + 1,
			name,
			masked.AuthToken,
			masked.CSRFToken,
			truncate(masked.UserAgent, 32),
			masked.LastModified.Format(time.DateTime),
		})
	}
	t.Render()
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
