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
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	// DEFAULT_FETCH_INTERVAL_SEC is the sleep between fetch rounds.
	DEFAULT_FETCH_INTERVAL_SEC = 3600

	// DEFAULT_THROTTLE_SEC is the fixed inter-item delay inside a round,
	// keeping the connectors under the sources' rate limits.
	DEFAULT_THROTTLE_SEC = 2

	DEFAULT_FETCH_LIMIT = 1
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Enabled   bool   `json:"enabled" envconfig:"MOEBOT_SERVER_ENABLED"`
	SSL       bool   `json:"ssl" envconfig:"MOEBOT_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"MOEBOT_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"MOEBOT_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"MOEBOT_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"MOEBOT_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"MOEBOT_SERVER_PORT"`
}

type TelegramConfig struct {
	BotToken     string `json:"bot_token" envconfig:"MOEBOT_BOT_TOKEN"`
	ChannelID    int64  `json:"channel_id" envconfig:"MOEBOT_CHANNEL_ID"`
	APIEndpoint  string `json:"api_endpoint" envconfig:"MOEBOT_TELEGRAM_API_ENDPOINT"`
	ManualIntake bool   `json:"manual_intake" envconfig:"MOEBOT_MANUAL_INTAKE"`
}

func (t TelegramConfig) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.BotToken, validation.Required),
		validation.Field(&t.ChannelID, validation.Required),
	)
}

type CloudflareConfig struct {
	AccountID string `json:"account_id" envconfig:"MOEBOT_CLOUDFLARE_ACCOUNT_ID"`
	APIToken  string `json:"api_token" envconfig:"MOEBOT_CLOUDFLARE_API_TOKEN"`
}

func (c CloudflareConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.AccountID, validation.Required),
		validation.Field(&c.APIToken, validation.Required),
	)
}

type R2Config struct {
	AccessKeyID     string `json:"access_key_id" envconfig:"MOEBOT_R2_ACCESS_KEY_ID"`
	SecretAccessKey string `json:"secret_access_key" envconfig:"MOEBOT_R2_SECRET_ACCESS_KEY"`
	Bucket          string `json:"bucket" envconfig:"MOEBOT_R2_BUCKET"`
	Region          string `json:"region" envconfig:"MOEBOT_R2_REGION"`
	Endpoint        string `json:"endpoint" envconfig:"MOEBOT_R2_ENDPOINT"`
}

func (r R2Config) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.AccessKeyID, validation.Required),
		validation.Field(&r.SecretAccessKey, validation.Required),
		validation.Field(&r.Bucket, validation.Required),
	)
}

type D1Config struct {
	DatabaseID string `json:"database_id" envconfig:"MOEBOT_D1_DATABASE_ID"`
}

func (d D1Config) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DatabaseID, validation.Required),
	)
}

// HistoryConfig points at the remote dedup store. Leaving the endpoint empty
// degrades dedup to empty-on-restart; it is never a startup error.
type HistoryConfig struct {
	Endpoint string `json:"endpoint" envconfig:"MOEBOT_HISTORY_ENDPOINT"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"MOEBOT_REDIS_DNS"`
}

type YandeConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"MOEBOT_YANDE_ENABLED"`
	Endpoint string `json:"endpoint" envconfig:"MOEBOT_YANDE_ENDPOINT"`
	Tags     string `json:"tags" envconfig:"MOEBOT_YANDE_TAGS"`
}

type PixivConfig struct {
	Enabled       bool     `json:"enabled" envconfig:"MOEBOT_PIXIV_ENABLED"`
	RefreshToken  string   `json:"refresh_token" envconfig:"MOEBOT_PIXIV_REFRESH_TOKEN"`
	SessionCookie string   `json:"session_cookie" envconfig:"MOEBOT_PIXIV_SESSION_COOKIE"`
	Artists       []string `json:"artists" envconfig:"MOEBOT_PIXIV_ARTISTS"`
}

type SourcesConfig struct {
	FetchIntervalSec int         `json:"fetch_interval_sec" envconfig:"MOEBOT_FETCH_INTERVAL_SEC"`
	Limit            int         `json:"limit" envconfig:"MOEBOT_FETCH_LIMIT"`
	ThrottleSec      int         `json:"throttle_sec" envconfig:"MOEBOT_FETCH_THROTTLE_SEC"`
	Yande            YandeConfig `json:"yande"`
	Pixiv            PixivConfig `json:"pixiv"`
}

// DedupConfig bounds the in-process seen-ID set. Zero keeps it unbounded,
// matching the historical behavior of the deployment.
type DedupConfig struct {
	MaxEntries int `json:"max_entries" envconfig:"MOEBOT_DEDUP_MAX_ENTRIES"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"MOEBOT_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"MOEBOT_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"MOEBOT_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"MOEBOT_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"MOEBOT_ENABLE_TELEMETRY"`
	Telegram        TelegramConfig   `json:"telegram"`
	Cloudflare      CloudflareConfig `json:"cloudflare"`
	R2              R2Config         `json:"r2"`
	D1              D1Config         `json:"d1"`
	History         HistoryConfig    `json:"history"`
	Redis           RedisConfig      `json:"redis"`
	Sources         SourcesConfig    `json:"sources"`
	Dedup           DedupConfig      `json:"dedup"`
	Server          ServerConfig     `json:"server"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("moebot", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called moebot.json with your config ❌")
	}
	return c, nil
}

// validateMandatory checks every credential the pipeline cannot run without,
// reporting all missing fields in one pass rather than the first.
func (cnf *Configuration) validateMandatory() error {
	return validation.ValidateStruct(cnf,
		validation.Field(&cnf.Telegram),
		validation.Field(&cnf.Cloudflare),
		validation.Field(&cnf.R2),
		validation.Field(&cnf.D1),
	)
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Moebot"
	}

	if err := cnf.validateMandatory(); err != nil {
		log.Printf("Error: missing mandatory configuration: %v", err)
		return fmt.Errorf("missing mandatory configuration: %w", err)
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Telegram.BotToken = strings.TrimSpace(cnf.Telegram.BotToken)
	cnf.History.Endpoint = strings.TrimSpace(strings.TrimSuffix(cnf.History.Endpoint, "/"))
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Telegram.APIEndpoint == "" {
		cnf.Telegram.APIEndpoint = "https://api.telegram.org"
	}

	if cnf.R2.Endpoint == "" {
		cnf.R2.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cnf.Cloudflare.AccountID)
	}
	if cnf.R2.Region == "" {
		cnf.R2.Region = "auto"
	}

	if cnf.Sources.FetchIntervalSec <= 0 {
		cnf.Sources.FetchIntervalSec = DEFAULT_FETCH_INTERVAL_SEC
	}
	if cnf.Sources.Limit <= 0 {
		cnf.Sources.Limit = DEFAULT_FETCH_LIMIT
	}
	if cnf.Sources.ThrottleSec < 0 {
		cnf.Sources.ThrottleSec = DEFAULT_THROTTLE_SEC
	}
	if cnf.Sources.Yande.Endpoint == "" {
		cnf.Sources.Yande.Endpoint = "https://yande.re"
	}
	if cnf.Sources.Yande.Tags == "" {
		cnf.Sources.Yande.Tags = "order:random"
	}
	if !cnf.Sources.Yande.Enabled && !cnf.Sources.Pixiv.Enabled {
		cnf.Sources.Yande.Enabled = true
		log.Println("Warning: no sources enabled in config. Enabling the yande.re connector by default")
	}

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}

	// Set default cleanup interval if not specified
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
		log.Printf("Warning: Rate limit cleanup interval not specified. Setting default value: %d seconds", defaultCleanup)
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
