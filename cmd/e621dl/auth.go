package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"e621dl/pkg/auth"
	"e621dl/pkg/ui"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage e621 API credentials",
	Long: `Manage the e621 login and API key used for authenticated requests.

Credentials are stored in:
  - The system keychain (when available)
  - An encrypted file with PBKDF2 key derivation
  - Environment variables E621DL_LOGIN and E621DL_API_KEY (read only)

Without credentials e621dl runs anonymously.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [login]",
	Short: "Store a login and API key",
	Long: `Store an e621 login and API key.

The API key is created on your account page under "Manage API Access".
It is read without echo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout <login>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := credentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential storage: %w", err)
	}
	console := ui.NewConsole(false)
	reader := bufio.NewReader(os.Stdin)

	var login string
	if len(args) > 0 {
		login = args[0]
	} else {
		fmt.Print("e621 login: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read login: %w", err)
		}
		login = strings.TrimSpace(input)
	}
	if login == "" {
		return fmt.Errorf("login is required")
	}

	if existing, _ := manager.Load(login); existing != nil {
		fmt.Printf("Account %s already exists. Replace its API key? (y/N): ", login)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("API key: ")
	apiKey, err := readSecret(reader)
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	if err := manager.Save(&auth.Account{Login: login, APIKey: apiKey}); err != nil {
		return err
	}
	console.Success("Credentials for %s stored.", login)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := credentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential storage: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.NewConsole(quiet).Success("Credentials for %s removed.", args[0])
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	manager, err := credentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential storage: %w", err)
	}
	accounts, err := manager.List()
	if err != nil {
		return err
	}

	console := ui.NewConsole(false)
	if len(accounts) == 0 {
		console.Info("No stored accounts. Run 'e621dl auth login' to add one.")
		return nil
	}
	for i, a := range accounts {
		masked := auth.Masked(a)
		label := masked.Login
		if i == 0 {
			label += " (default)"
		}
		console.Field(label, masked.APIKey)
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(syscall.Stdin)
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		return strings.TrimSpace(string(b)), err
	}
	line, err := reader.ReadString('\n')
	return strings.TrimSpace(line), err
}
