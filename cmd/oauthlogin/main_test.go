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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vs49688/mailhook/cmd/config"
)

func TestWriteSettings(t *testing.T) {
	t.Run("google", func(t *testing.T) {
		cfg := config.DefaultOAuth2Config()
		cfg.ClientID = "client-id"

		var bb bytes.Buffer
		assert.NoError(t, writeSettings(&bb, &cfg, "refresh"))
		assert.Equal(t, "MAILHOOK_AUTH_METHOD=OAUTHBEARER\n"+
			"MAILHOOK_PASSWORD=refresh\n"+
			"MAILHOOK_OAUTH2_PROVIDER=google\n"+
			"MAILHOOK_OAUTH2_CLIENT_ID=client-id\n", bb.String())
	})

	t.Run("custom", func(t *testing.T) {
		cfg := config.OAuth2Config{
			Provider:     config.OAuth2ProviderCustom,
			ClientID:     "client-id",
			ClientSecret: "secret",
			AuthURL:      "https://auth.example.com/authorize",
			TokenURL:     "https://auth.example.com/token",
			Scopes:       "imap",
		}

		var bb bytes.Buffer
		assert.NoError(t, writeSettings(&bb, &cfg, "refresh"))

		out := bb.String()
		assert.Contains(t, out, "MAILHOOK_OAUTH2_TOKEN_URL=https://auth.example.com/token\n")
		assert.Contains(t, out, "MAILHOOK_OAUTH2_SCOPES=imap\n")
		assert.Contains(t, out, "MAILHOOK_OAUTH2_CLIENT_SECRET=")
		assert.NotContains(t, out, "secret\n")
	})
}
