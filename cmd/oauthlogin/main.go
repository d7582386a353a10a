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

package oauthlogin

import (
	"errors"
	"fmt"
	"io"

	"github.com/emersion/go-oauthdialog"
	"github.com/emersion/go-sasl"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"github.com/vs49688/mailhook/cmd/config"
	"golang.org/x/oauth2"
)

var errNoRefreshToken = errors.New("provider did not return a refresh token")

func RegisterCommand(app *cli.App) *cli.App {
	cfg := &config.OAuth2Config{}
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "oauthlogin",
		Usage:  "Authorise MailHook with an OAuth2 provider and print the settings for OAUTHBEARER",
		Flags:  cfg.Parameters(),
		Action: func(context *cli.Context) error { return oauthlogin(context, cfg) },
	})
	return app
}

func oauthlogin(ctx *cli.Context, cfg *config.OAuth2Config) error {
	if err := cfg.Resolve(); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"provider":  cfg.Provider,
		"client_id": cfg.Config.ClientID,
		"token_url": cfg.Config.Endpoint.TokenURL,
		"scopes":    cfg.Config.Scopes,
	}).Info("oauthlogin_opening_browser")

	code, err := oauthdialog.Open(&cfg.Config)
	if err != nil {
		return err
	}

	tok, err := cfg.Config.Exchange(ctx.Context, code, oauth2.AccessTypeOffline)
	if err != nil {
		return err
	}

	if tok.RefreshToken == "" {
		return errNoRefreshToken
	}

	log.WithField("expiry", tok.Expiry).Info("oauthlogin_token_received")
	return writeSettings(ctx.App.Writer, cfg, tok.RefreshToken)
}

// writeSettings prints the environment the run command needs to log in with
// refreshToken. The refresh token goes to w, never to the log.
func writeSettings(w io.Writer, cfg *config.OAuth2Config, refreshToken string) error {
	lines := []string{
		fmt.Sprintf("MAILHOOK_AUTH_METHOD=%v", sasl.OAuthBearer),
		fmt.Sprintf("MAILHOOK_PASSWORD=%v", refreshToken),
		fmt.Sprintf("MAILHOOK_OAUTH2_PROVIDER=%v", cfg.Provider),
		fmt.Sprintf("MAILHOOK_OAUTH2_CLIENT_ID=%v", cfg.ClientID),
	}

	if cfg.Provider == config.OAuth2ProviderCustom {
		lines = append(lines,
			fmt.Sprintf("MAILHOOK_OAUTH2_AUTH_URL=%v", cfg.AuthURL),
			fmt.Sprintf("MAILHOOK_OAUTH2_TOKEN_URL=%v", cfg.TokenURL),
			fmt.Sprintf("MAILHOOK_OAUTH2_SCOPES=%v", cfg.Scopes),
		)
	}

	if cfg.ClientSecret != "" {
		lines = append(lines, "MAILHOOK_OAUTH2_CLIENT_SECRET=<as given to oauthlogin>")
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}
