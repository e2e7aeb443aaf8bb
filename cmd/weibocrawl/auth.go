package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"weibocrawl/pkg/auth"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/ui"
)

var userAgent string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored session cookies",
	Long: `Store session cookies in the system keychain, falling back to an
encrypted file under ~/.config/weibocrawl when no keychain is available.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [name]",
	Short: "Store a session cookie",
	Long:  auth.CookieGuide,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a stored credential with the cookie masked",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a stored credential",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthDelete,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored credentials",
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authListCmd)

	authSetCmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent sent with this cookie")
}

func credentialName(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return auth.DefaultName
}

func authManager() (*auth.Manager, error) {
	return auth.NewManager(logger.GetLogger())
}

// readCookie prompts without echo on a terminal and reads one line otherwise
func readCookie(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.OutOrStdout(), "Cookie: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read cookie: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read cookie: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	mgr, err := authManager()
	if err != nil {
		return err
	}
	value, err := readCookie(cmd)
	if err != nil {
		return err
	}

	cred := &auth.Credential{
		Name:      credentialName(args),
		Cookie:    value,
		UserAgent: userAgent,
	}
	if err := mgr.Store(cred); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stored credential %q", cred.Name))
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	mgr, err := authManager()
	if err != nil {
		return err
	}
	cred, err := mgr.Retrieve(credentialName(args))
	if err != nil {
		return err
	}

	s := auth.Sanitize(cred)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:       %s\n", s.Name)
	fmt.Fprintf(out, "Cookie:     %s\n", s.Cookie)
	if s.UserAgent != "" {
		fmt.Fprintf(out, "User-Agent: %s\n", s.UserAgent)
	}
	if !s.LastModified.IsZero() {
		fmt.Fprintf(out, "Modified:   %s\n", s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	mgr, err := authManager()
	if err != nil {
		return err
	}
	name := credentialName(args)
	if err := mgr.Delete(name); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Deleted credential %q", name))
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	mgr, err := authManager()
	if err != nil {
		return err
	}
	creds, err := mgr.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintWarning("No stored credentials")
		return nil
	}
	for _, c := range creds {
		fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", c.Name, auth.Mask(c.Cookie))
	}
	return nil
}
