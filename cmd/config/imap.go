/*
 * MailHook - Copyright (C) 2022 Zane van Iperen.
 *    Contact: zane@zanevaniperen.com
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 2, and only
 * version 2 as published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program; if not, write to the Free Software
 * Foundation, Inc., 59 Temple Place, Suite 330, Boston, MA  02111-1307  USA
 */

package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"github.com/vs49688/mailhook/imap"
	"github.com/vs49688/mailhook/imap/client"
)

const (
	AuthMethodLogin = "LOGIN"

	DefaultTimeout = 30 * time.Second
)

func DefaultIMAPConfig() IMAPConfig {
	return IMAPConfig{
		AuthMethod:    AuthMethodLogin,
		TLSSkipVerify: false,
		Timeout:       DefaultTimeout,
		Debug:         false,
		OAuth2:        DefaultOAuth2Config(),
	}
}

func (cfg *IMAPConfig) Parameters() []cli.Flag {
	def := DefaultIMAPConfig()

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "url",
			Usage:       "imap url, imap[s]://host[:port]/MAILBOX",
			EnvVars:     []string{"MAILHOOK_URL"},
			Destination: &cfg.URL,
			Value:       def.URL,
		},
		&cli.StringFlag{
			Name:        "auth-method",
			Usage:       "auth method (LOGIN, PLAIN, OAUTHBEARER)",
			EnvVars:     []string{"MAILHOOK_AUTH_METHOD"},
			Destination: &cfg.AuthMethod,
			Value:       def.AuthMethod,
		},
		&cli.StringFlag{
			Name:        "username",
			Usage:       "imap username",
			EnvVars:     []string{"MAILHOOK_USERNAME"},
			Destination: &cfg.Username,
			Value:       def.Username,
		},
		&cli.StringFlag{
			Name:        "password",
			Usage:       "imap password, or refresh token for OAUTHBEARER",
			EnvVars:     []string{"MAILHOOK_PASSWORD"},
			Destination: &cfg.Password,
			Value:       def.Password,
		},
		&cli.StringFlag{
			Name:        "password-file",
			Usage:       "file containing the imap password",
			EnvVars:     []string{"MAILHOOK_PASSWORD_FILE"},
			Destination: &cfg.PasswordFile,
			Value:       def.PasswordFile,
		},
		&cli.StringFlag{
			Name:        "systemd-credential",
			Usage:       "name of the systemd credential containing the imap password",
			EnvVars:     []string{"MAILHOOK_SYSTEMD_CREDENTIAL"},
			Destination: &cfg.SystemdCredential,
			Value:       def.SystemdCredential,
		},
		&cli.BoolFlag{
			Name:        "tls-skip-verify",
			Usage:       "skip tls verification",
			EnvVars:     []string{"MAILHOOK_TLS_SKIP_VERIFY"},
			Destination: &cfg.TLSSkipVerify,
			Value:       def.TLSSkipVerify,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "network dial and command timeout",
			EnvVars:     []string{"MAILHOOK_TIMEOUT"},
			Destination: &cfg.Timeout,
			Value:       def.Timeout,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "display imap protocol debug info",
			EnvVars:     []string{"MAILHOOK_DEBUG"},
			Destination: &cfg.Debug,
			Value:       def.Debug,
		},
	}

	return append(flags, cfg.OAuth2.Parameters()...)
}

func extractUrl(u *url.URL) (string, string, bool, error) {
	var defaultPort string
	var useTLS bool
	switch strings.ToLower(u.Scheme) {
	case "imap":
		defaultPort = "143"
		useTLS = false
	case "imaps":
		defaultPort = "993"
		useTLS = true
	default:
		return "", "", false, errInvalidScheme
	}

	host := u.Hostname()
	port := u.Port()

	if port == "" {
		port = defaultPort
	}

	mailbox := strings.TrimPrefix(u.Path, "/")
	if mailbox == "" {
		mailbox = "INBOX"
	}

	return net.JoinHostPort(host, port), mailbox, useTLS, nil
}

// readSystemdCredential reads name from $CREDENTIALS_DIRECTORY. The result
// must stay inside the directory.
func readSystemdCredential(name string) (string, error) {
	dir := os.Getenv("CREDENTIALS_DIRECTORY")
	if dir == "" {
		return "", errNoCredentialsDir
	}

	credPath := filepath.Join(dir, name)
	rel, err := filepath.Rel(dir, credPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errInvalidCredentialPath
	}

	return readPasswordFile(credPath)
}

func readPasswordFile(path string) (string, error) {
	pass, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(pass)), nil
}

func (cfg *IMAPConfig) validateUserPass() (string, string, error) {
	if cfg.Username == "" {
		return "", "", fmt.Errorf("\"username\" is required when using %v auth", cfg.AuthMethod)
	}

	var password string
	var err error
	switch {
	case cfg.Password != "":
		password = cfg.Password
	case cfg.PasswordFile != "":
		password, err = readPasswordFile(cfg.PasswordFile)
	case cfg.SystemdCredential != "":
		password, err = readSystemdCredential(cfg.SystemdCredential)
	default:
		err = fmt.Errorf("at least one of the \"password\", \"password-file\" or \"systemd-credential\" flags is required")
	}

	if err != nil {
		return "", "", err
	}

	return cfg.Username, password, nil
}

func (cfg *IMAPConfig) buildAuthenticator() (imap.Authenticator, error) {
	cfg.AuthMethod = strings.ToUpper(cfg.AuthMethod)

	user, pass, err := cfg.validateUserPass()
	if err != nil {
		return nil, err
	}

	switch cfg.AuthMethod {
	case AuthMethodLogin:
		return imap.NewNormalAuthenticator(user, pass), nil
	case sasl.Plain:
		return imap.NewSASLAuthenticator(sasl.NewPlainClient("", user, pass)), nil
	case sasl.OAuthBearer:
		if err := cfg.OAuth2.Resolve(); err != nil {
			return nil, err
		}

		// Token refreshes happen while connecting, so they get the same
		// timeout as the mail server.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: cfg.Timeout})
		source := cfg.OAuth2.Config.TokenSource(ctx, &oauth2.Token{RefreshToken: pass})
		return imap.NewOAuthBearerAuthenticator(user, source), nil
	default:
		return nil, fmt.Errorf("unsupported auth method: %v", cfg.AuthMethod)
	}
}

func (cfg *IMAPConfig) Resolve() (imap.ConnectionConfig, imap.ClientFactory, error) {
	if cfg.URL == "" {
		return imap.ConnectionConfig{}, nil, fmt.Errorf("\"url\" is required")
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return imap.ConnectionConfig{}, nil, err
	}

	hostPort, mailbox, wantTLS, err := extractUrl(u)
	if err != nil {
		return imap.ConnectionConfig{}, nil, err
	}

	auth, err := cfg.buildAuthenticator()
	if err != nil {
		return imap.ConnectionConfig{}, nil, err
	}

	connConfig := imap.ConnectionConfig{
		HostPort:  hostPort,
		Auth:      auth,
		Mailbox:   mailbox,
		TLS:       wantTLS,
		TLSConfig: nil,
		Debug:     cfg.Debug,
		Timeout:   cfg.Timeout,
	}

	if cfg.TLSSkipVerify {
		// #nosec G402
		connConfig.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if connConfig.Timeout < 0 {
		connConfig.Timeout = 0
	}

	return connConfig, &client.Factory{}, nil
}
