package main

import (
	"fmt"
	"os"
	"strings"

	"clipvault/pkg/auth"
	"clipvault/pkg/config"
	"clipvault/pkg/logger"

	"github.com/spf13/cobra"
)

// Request identity flags shared by probe and fetch
var (
	authToken     string
	authFile      string
	cookieFile    string
	deviceID      string
	userAgent     string
	skipCertCheck bool
	profileName   string
)

func addIdentityFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&authToken, "auth", "a", "", "authorization token or header value")
	cmd.Flags().StringVar(&authFile, "auth-file", "", "file containing the authorization token (wins over --auth)")
	cmd.Flags().StringVar(&cookieFile, "cookie-file", "", "file containing a Cookie header value")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "device id header value (default: stored or generated)")
	cmd.Flags().StringVar(&userAgent, "user-agent", "", "User-Agent header value")
	cmd.Flags().BoolVar(&skipCertCheck, "skip-cert-check", false, "disable TLS certificate verification")
	cmd.Flags().StringVar(&profileName, "profile", auth.DefaultProfile, "stored credential profile to use")
}

// identityFlags turns the identity flags into config flag-map entries.
// A token file beats --auth; a cookie file sets the Cookie header.
func identityFlags(cmd *cobra.Command, flags map[string]interface{}) error {
	if authToken != "" {
		flags["auth-token"] = authToken
	}
	if authFile != "" {
		token, err := readSecretFile(authFile)
		if err != nil {
			return fmt.Errorf("read auth file: %w", err)
		}
		flags["auth-token"] = auth.NormalizeToken(token)
	}
	if cookieFile != "" {
		cookie, err := readSecretFile(cookieFile)
		if err != nil {
			return fmt.Errorf("read cookie file: %w", err)
		}
		flags["cookie"] = cookie
	}
	if deviceID != "" {
		flags["device-id"] = deviceID
	}
	if userAgent != "" {
		flags["user-agent"] = userAgent
	}
	if cmd.Flags().Changed("skip-cert-check") {
		flags["skip-cert-check"] = skipCertCheck
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return value, nil
}

// applyStoredIdentity fills unset identity fields from the credential store
// and generates a device id when none is known
func applyStoredIdentity(cfg *config.Config, log logger.Logger) {
	manager, err := auth.NewManager("")
	if err != nil {
		log.WithError(err).Debug("Credential store unavailable")
	} else if found, err := manager.Apply(profileName, &cfg.API); err != nil {
		log.WithError(err).Warn("Could not read stored credentials")
	} else if found {
		log.WithField("profile", profileName).Debug("Using stored credentials")
	}

	if cfg.API.DeviceID == "" {
		cfg.API.DeviceID = auth.NewDeviceID()
		log.WithField("device_id", cfg.API.DeviceID).Debug("Generated device id")
	}
	if cfg.API.AuthToken == "" {
		log.Warn("No authorization token configured; requests are sent without credentials")
	}
}
