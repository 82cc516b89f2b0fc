package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"catalogscraper/internal/anticaptcha"
	"catalogscraper/internal/scrapers/gord"
	"catalogscraper/pkg/configutil"
	"catalogscraper/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

type CaptchaConfig struct {
	ApiKey              string `json:"api_key"`
	BaseUrl             string `json:"base_url"`
	InitialDelaySeconds int    `json:"initial_delay_seconds"`
	PollIntervalSeconds int    `json:"poll_interval_seconds"`
	MaxChecks           int    `json:"max_checks"`
}

type AuthConfig struct {
	MaxAttempts    int `json:"max_attempts"`
	TimeoutSeconds int `json:"timeout_seconds"`
}

type CrawlConfig struct {
	DelayWindowSeconds int     `json:"delay_window_seconds"`
	Concurrency        int     `json:"concurrency"`
	RequestsPerSecond  float64 `json:"requests_per_second"`
}

type Config struct {
	BaseUrl          string        `json:"base_url"`
	Username         string        `json:"username"`
	Password         string        `json:"password"`
	Captcha          CaptchaConfig `json:"captcha"`
	Auth             AuthConfig    `json:"auth"`
	Crawl            CrawlConfig   `json:"crawl"`
	CloudflareBypass bool          `json:"cloudflare_bypass"`
}

func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func newSolver(cfg Config) *anticaptcha.Client {
	return anticaptcha.NewClient(tel, anticaptcha.Options{
		ApiKey:  cfg.Captcha.ApiKey,
		BaseUrl: cfg.Captcha.BaseUrl,
		Timing: anticaptcha.Timing{
			InitialDelay: seconds(cfg.Captcha.InitialDelaySeconds),
			PollInterval: seconds(cfg.Captcha.PollIntervalSeconds),
			MaxChecks:    cfg.Captcha.MaxChecks,
		},
	})
}

// login creates a site client and authenticates it.
func login(ctx context.Context, cfg Config) (*gord.Client, error) {
	client, err := gord.NewClient(nil, tel, gord.Options{
		BaseUrl:           cfg.BaseUrl,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		CloudflareBypass:  cfg.CloudflareBypass,
	})
	if err != nil {
		return nil, err
	}

	auth := gord.NewAuthenticator(client, newSolver(cfg), tel, gord.AuthOptions{
		MaxAttempts: cfg.Auth.MaxAttempts,
		Timeout:     seconds(cfg.Auth.TimeoutSeconds),
	})

	slog.Info("logging in", "username", cfg.Username)
	err = auth.Authenticate(ctx, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func mustLogin(ctx context.Context, cfg Config) *gord.Client {
	client, err := login(ctx, cfg)
	if err != nil {
		serviceutil.Fatal("failed to login", err)
	}
	return client
}

func newCrawler(client *gord.Client, cfg Config) *gord.Crawler {
	return gord.NewCrawler(client, tel, gord.CrawlOptions{
		DelayWindow: seconds(cfg.Crawl.DelayWindowSeconds),
		Concurrency: cfg.Crawl.Concurrency,
	})
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
