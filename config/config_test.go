package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(overrides map[string]any) *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newViper(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "10000", cfg.StartingBalance.String())
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "development-only-secret", cfg.JWT.Secret)
	assert.Empty(t, cfg.AdminEmails)
}

func TestOverrides(t *testing.T) {
	cfg, err := fromViper(newViper(map[string]any{
		"env":              "production",
		"jwt_secret":       "s3cret",
		"starting_balance": "2500.50",
		"admin_emails":     " Boss@Example.com, ops@example.com ,",
		"db_host":          "db",
		"db_password":      "pw",
	}))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, "2500.5", cfg.StartingBalance.String())
	assert.Equal(t, []string{"boss@example.com", "ops@example.com"}, cfg.AdminEmails)
	assert.Contains(t, cfg.DSN(), "host=db")
	assert.Contains(t, cfg.DSN(), "password=pw")
	assert.Contains(t, cfg.DSN(), "dbname=stock_trader")
}

func TestValidation(t *testing.T) {
	_, err := fromViper(newViper(map[string]any{"env": "production"}))
	assert.ErrorContains(t, err, "JWT_SECRET")

	_, err = fromViper(newViper(map[string]any{"starting_balance": "-1"}))
	assert.Error(t, err)

	_, err = fromViper(newViper(map[string]any{"starting_balance": "lots"}))
	assert.Error(t, err)

	_, err = fromViper(newViper(map[string]any{"jwt_expiry": "0s"}))
	assert.Error(t, err)
}
