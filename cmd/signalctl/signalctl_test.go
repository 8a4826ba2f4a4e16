package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/richgang/indice-killer/internal/config"
	"github.com/richgang/indice-killer/internal/models"
	"github.com/richgang/indice-killer/internal/session"
	"github.com/richgang/indice-killer/internal/wsgateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticConfig(mutate func(*config.Config)) loadFunc {
	return func() (*config.Config, error) {
		cfg := &config.Config{}
		cfg.MarketData.RequestTimeout = time.Second
		cfg.Auth.JWTExpiry = time.Hour
		if mutate != nil {
			mutate(cfg)
		}
		return cfg, nil
	}
}

func TestTokenCmd(t *testing.T) {
	cmd := newTokenCmd(staticConfig(func(c *config.Config) { c.Auth.JWTSecret = "secret" }))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--role", "owner", "--name", "desk"})

	require.NoError(t, cmd.Execute())

	claims, err := wsgateway.NewAuthManager("secret", time.Hour).ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.True(t, claims.IsOwner())
	assert.Equal(t, "desk", claims.Name)
}

func TestTokenCmd_Errors(t *testing.T) {
	cmd := newTokenCmd(staticConfig(nil))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{})
	assert.Error(t, cmd.Execute())

	cmd = newTokenCmd(staticConfig(func(c *config.Config) { c.Auth.JWTSecret = "secret" }))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--role", "admin"})
	assert.ErrorIs(t, cmd.Execute(), wsgateway.ErrInvalidRole)
}

func TestSessionsCmd(t *testing.T) {
	cmd := newSessionsCmd(staticConfig(nil))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--at", "2024-01-15T14:00:00Z"})

	require.NoError(t, cmd.Execute())

	var status map[string]session.Status
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.True(t, status["US30"].Active)
	assert.True(t, status["US100"].Active)
}

func TestQuoteCmd_Offline(t *testing.T) {
	cmd := newQuoteCmd(staticConfig(nil))
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--offline", "US100"})

	require.NoError(t, cmd.Execute())

	var quote models.Quote
	require.NoError(t, json.Unmarshal(out.Bytes(), &quote))
	assert.Equal(t, "US100", quote.Symbol)
	assert.Equal(t, "synthetic", quote.Source)
	assert.InDelta(t, 21000, quote.Price, 21000*0.005+0.01)
}

func TestQuoteCmd_RejectsUnknownSymbol(t *testing.T) {
	cmd := newQuoteCmd(staticConfig(nil))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"SPX"})
	assert.Error(t, cmd.Execute())
}
