package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"clipvault/pkg/auth"
	"clipvault/pkg/ui"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored credentials",
	Long: `Manage stored request credentials.

Credentials are kept in the first store that works:
  - System keychain
  - Encrypted file (PBKDF2 key, AES-GCM)
  - Environment variables (read only)

Stored values fill in whatever flags, environment and config leave empty.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [profile]",
	Short: "Store a token and optional device id, cookie and user agent",
	Example: `  # Store the default profile
  clipvault auth login

  # Store a second identity
  clipvault auth login work`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [profile]",
	Short: "Remove a stored profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List stored profiles with masked values",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(statusCmd)
}

func profileArg(args []string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return auth.DefaultProfile
}

func readHidden(prompt string) (string, error) {
	fmt.Print(prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}
	profile := profileArg(args)

	auth.ShowTokenGuide(os.Stdout)

	reader := bufio.NewReader(os.Stdin)
	if existing, _ := manager.Retrieve(profile); existing != nil {
		fmt.Printf("Profile '%s' already exists. Replace it? (y/N): ", profile)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	token, err := readHidden("Authorization token (hidden): ")
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	token = auth.NormalizeToken(token)
	if token == "" {
		return errors.New("a token is required")
	}

	prompt := func(label string) string {
		fmt.Printf("%s (optional, Enter to skip): ", label)
		input, _ := reader.ReadString('\n')
		return strings.TrimSpace(input)
	}
	creds := &auth.Credentials{
		Profile:      profile,
		Token:        token,
		DeviceID:     prompt("Device id"),
		Cookie:       prompt("Cookie header"),
		UserAgent:    prompt("User agent"),
		LastModified: time.Now(),
	}

	if err := manager.Store(creds); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}

	saved := auth.Sanitize(creds)
	ui.PrintSuccess(fmt.Sprintf("Stored profile '%s'", saved.Profile))
	ui.PrintInfo("Token", saved.Token)
	ui.PrintInfo("Device id", saved.DeviceID)
	fmt.Println("\nNever share your credentials or config files.")
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}
	profile := profileArg(args)
	if err := manager.Delete(profile); err != nil {
		return fmt.Errorf("remove profile %s: %w", profile, err)
	}
	ui.PrintSuccess("Removed profile: " + profile)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("")
	if err != nil {
		return fmt.Errorf("initialize credential store: %w", err)
	}
	profiles, err := manager.List()
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}
	if len(profiles) == 0 {
		ui.PrintInfo("No stored profiles", "run 'clipvault auth login' to add one")
		return nil
	}

	ui.PrintHighlight("Stored profiles")
	for i, p := range profiles {
		s := auth.Sanitize(p)
		fmt.Printf("%d. %s\n", i+1, s.Profile)
		fmt.Printf("   Token:     %s\n", s.Token)
		if s.DeviceID != "" {
			fmt.Printf("   Device id: %s\n", s.DeviceID)
		}
		if s.Cookie != "" {
			fmt.Printf("   Cookie:    %s\n", s.Cookie)
		}
		if s.UserAgent != "" {
			fmt.Printf("   UA:        %s\n", s.UserAgent)
		}
		if !s.LastModified.IsZero() {
			fmt.Printf("   Modified:  %s\n", s.LastModified.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
