/*
Copyright 2025 Moebot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfiguration() Configuration {
	return Configuration{
		ProjectName: "Test Project",
		Telegram: TelegramConfig{
			BotToken:  "123456:ABC-DEF",
			ChannelID: -1001234567890,
		},
		Cloudflare: CloudflareConfig{
			AccountID: "acc-id",
			APIToken:  "api-token",
		},
		R2: R2Config{
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			Bucket:          "images",
		},
		D1: D1Config{
			DatabaseID: "db-id",
		},
	}
}

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := validConfiguration()

	err := cnf.validateAndAddDefaults()
	assert.NoError(t, err)

	// Derived and defaulted fields
	assert.Equal(t, "https://acc-id.r2.cloudflarestorage.com", cnf.R2.Endpoint)
	assert.Equal(t, "auto", cnf.R2.Region)
	assert.Equal(t, "https://api.telegram.org", cnf.Telegram.APIEndpoint)
	assert.Equal(t, "https://yande.re", cnf.Sources.Yande.Endpoint)
	assert.Equal(t, "order:random", cnf.Sources.Yande.Tags)
	assert.Equal(t, DEFAULT_FETCH_INTERVAL_SEC, cnf.Sources.FetchIntervalSec)
	assert.Equal(t, DEFAULT_FETCH_LIMIT, cnf.Sources.Limit)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.True(t, cnf.Sources.Yande.Enabled, "yande is the default connector when none is enabled")
}

func TestValidateMandatoryEnumeratesAllMissing(t *testing.T) {
	cnf := Configuration{}

	err := cnf.validateAndAddDefaults()
	if err == nil {
		t.Fatal("expected error for empty configuration")
	}

	// Every missing credential group is named, not just the first one found.
	msg := err.Error()
	assert.Contains(t, msg, "bot_token")
	assert.Contains(t, msg, "channel_id")
	assert.Contains(t, msg, "account_id")
	assert.Contains(t, msg, "api_token")
	assert.Contains(t, msg, "access_key_id")
	assert.Contains(t, msg, "secret_access_key")
	assert.Contains(t, msg, "bucket")
	assert.Contains(t, msg, "database_id")
}

func TestValidateMandatoryPartialMissing(t *testing.T) {
	cnf := validConfiguration()
	cnf.D1.DatabaseID = ""

	err := cnf.validateAndAddDefaults()
	if err == nil {
		t.Fatal("expected error for missing D1 database id")
	}
	assert.Contains(t, err.Error(), "database_id")
	assert.NotContains(t, err.Error(), "bot_token")
}

func TestRateLimitDefaults(t *testing.T) {
	cnf := validConfiguration()
	rps := 10.0
	cnf.RateLimit.RequestsPerSecond = &rps

	err := cnf.validateAndAddDefaults()
	assert.NoError(t, err)
	assert.NotNil(t, cnf.RateLimit.Burst)
	assert.Equal(t, 20, *cnf.RateLimit.Burst)
	assert.NotNil(t, cnf.RateLimit.CleanupIntervalSec)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "moebot.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name()) // Clean up after the test

	sampleConfig := validConfiguration()
	sampleConfig.History.Endpoint = "https://history.example.com/"

	data, err := json.Marshal(sampleConfig)
	if err != nil {
		t.Fatalf("Unable to marshal sample config: %v", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	err = loadConfigFromFile(tmpFile.Name())
	assert.NoError(t, err)

	cnf, err := Fetch()
	assert.NoError(t, err)
	assert.Equal(t, "Test Project", cnf.ProjectName)
	// Trailing slash is trimmed so endpoint concatenation stays stable.
	assert.Equal(t, "https://history.example.com", cnf.History.Endpoint)
}

func TestMockConfig(t *testing.T) {
	mock := validConfiguration()
	MockConfig(&mock)

	cnf, err := Fetch()
	assert.NoError(t, err)
	assert.Equal(t, &mock, cnf)
}
