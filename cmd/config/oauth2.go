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
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	OAuth2ProviderGoogle = "google"
	OAuth2ProviderCustom = "custom"
)

func DefaultOAuth2Config() OAuth2Config {
	return OAuth2Config{
		Provider: OAuth2ProviderGoogle,
	}
}

func (cfg *OAuth2Config) Parameters() []cli.Flag {
	def := DefaultOAuth2Config()
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "oauth2-provider",
			Usage:       "oauth2 provider (google, custom)",
			EnvVars:     []string{"MAILHOOK_OAUTH2_PROVIDER"},
			Destination: &cfg.Provider,
			Value:       def.Provider,
		},
		&cli.StringFlag{
			Name:        "oauth2-client-id",
			Usage:       "oauth2 client id",
			EnvVars:     []string{"MAILHOOK_OAUTH2_CLIENT_ID"},
			Destination: &cfg.ClientID,
			Value:       def.ClientID,
		},
		&cli.StringFlag{
			Name:        "oauth2-client-secret",
			Usage:       "oauth2 client secret",
			EnvVars:     []string{"MAILHOOK_OAUTH2_CLIENT_SECRET"},
			Destination: &cfg.ClientSecret,
			Value:       def.ClientSecret,
		},
		&cli.StringFlag{
			Name:        "oauth2-auth-url",
			Usage:       "oauth2 authorization url, custom provider only",
			EnvVars:     []string{"MAILHOOK_OAUTH2_AUTH_URL"},
			Destination: &cfg.AuthURL,
			Value:       def.AuthURL,
		},
		&cli.StringFlag{
			Name:        "oauth2-token-url",
			Usage:       "oauth2 token url, custom provider only",
			EnvVars:     []string{"MAILHOOK_OAUTH2_TOKEN_URL"},
			Destination: &cfg.TokenURL,
			Value:       def.TokenURL,
		},
		&cli.StringFlag{
			Name:        "oauth2-scopes",
			Usage:       "comma-separated oauth2 scopes, custom provider only",
			EnvVars:     []string{"MAILHOOK_OAUTH2_SCOPES"},
			Destination: &cfg.Scopes,
			Value:       def.Scopes,
		},
	}
}

func splitScopes(s string) []string {
	var scopes []string
	for _, scope := range strings.Split(s, ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// Resolve fills in Config from the provider and client settings.
func (cfg *OAuth2Config) Resolve() error {
	if cfg.ClientID == "" {
		return fmt.Errorf("\"oauth2-client-id\" is required")
	}

	var c oauth2.Config
	switch strings.ToLower(cfg.Provider) {
	case OAuth2ProviderGoogle:
		c = oauth2.Config{
			Endpoint: endpoints.Google,
			Scopes:   []string{"https://mail.google.com/"},
		}
	case OAuth2ProviderCustom:
		if cfg.AuthURL == "" || cfg.TokenURL == "" {
			return fmt.Errorf("\"oauth2-auth-url\" and \"oauth2-token-url\" are required for the custom provider")
		}

		c = oauth2.Config{
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			Scopes: splitScopes(cfg.Scopes),
		}
	default:
		return fmt.Errorf("unsupported oauth2 provider: %v", cfg.Provider)
	}

	c.ClientID = cfg.ClientID
	c.ClientSecret = cfg.ClientSecret
	cfg.Config = c
	return nil
}
