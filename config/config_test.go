package config

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"middle", "host=db password=secret dbname=x", "host=db password=***** dbname=x"},
		{"last", "host=db password=secret", "host=db password=*****"},
		{"none", "host=db dbname=x", "host=db dbname=x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, maskPassword(tt.dsn))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Error - missing DB password", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "")
		err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DB_PASSWORD")
	})

	t.Run("Success - defaults", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("SEQUENCE_BATCH_SIZE", "")
		t.Setenv("SEQUENCE_CLAIM_TTL", "")
		require.NoError(t, LoadConfig())

		assert.Equal(t, 50, AppConfig.SequenceBatchSize)
		assert.Equal(t, 10*time.Minute, AppConfig.SequenceClaimTTL)
		assert.Equal(t, "*/5 * * * *", AppConfig.SequenceCron)
		assert.Equal(t, "Leadomation", AppConfig.Sender.FromName)
	})

	t.Run("Success - overrides", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("SEQUENCE_BATCH_SIZE", "10")
		t.Setenv("SEQUENCE_CLAIM_TTL", "1m")
		t.Setenv("REDIS_ENABLED", "true")
		require.NoError(t, LoadConfig())

		assert.Equal(t, 10, AppConfig.SequenceBatchSize)
		assert.Equal(t, time.Minute, AppConfig.SequenceClaimTTL)
		assert.True(t, AppConfig.Redis.Enabled)
	})

	t.Run("Error - production without trigger secret", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "pw")
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("CRON_SECRET", "")
		t.Setenv("SUPABASE_JWT_SECRET", "")
		err := LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CRON_SECRET")
	})
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{
		SendGridAPIKey: "SG.key",
		SMTP:           SMTPConfig{Host: "smtp.example.com", Port: 2525},
		Sender:         SenderConfig{FromName: "Leadomation", FromEmail: "hello@leadomation.co.uk"},
	}

	id := cfg.SenderIdentity()
	assert.Equal(t, "Leadomation <hello@leadomation.co.uk>", id.From())

	mc := cfg.MailerConfig()
	assert.Equal(t, "SG.key", mc.SendGridAPIKey)
	assert.Equal(t, 2525, mc.SMTPPort)
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	AppConfig = Config{Redis: RedisConfig{Enabled: false}}
	client, err := ConnectRedis(context.Background())
	require.NoError(t, err)
	assert.Nil(t, client)

	AppConfig = Config{Redis: RedisConfig{Enabled: true, Address: mr.Addr()}}
	client, err = ConnectRedis(context.Background())
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()
}
