// Command receipt-server boots the HTTP surface described in spec §1: a
// thin adapter that accepts a receipt image and drives it through the
// orchestrator, returning the terminal disposition.
package main

import (
	"flag"
	"strconv"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"receiptcore/internal/config"
	"receiptcore/internal/httpapi"
	"receiptcore/internal/llmclient"
	"receiptcore/internal/notify"
	"receiptcore/internal/ocrprovider/tesseract"
	"receiptcore/internal/ocrprovider/textract"
	"receiptcore/internal/ratelimit"
	"receiptcore/internal/repository"
	"receiptcore/internal/workflow"
)

func main() {
	config.CheckIfEnvVarsPresent("OPENAI_API_KEY")

	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")
	storeConfigDir := flag.String("store-configs", "./cfg/stores", "Directory of per-chain store layout JSON documents.")
	flag.Parse()

	config.InitializeConfig(*configPath)
	cfg := config.Cfg

	repo, e := repository.Open(cfg.DatabasePath)
	e.QuitIf(xerr.ErrorTypeError)

	services := workflow.NewServices()
	services.Repo = repo
	services.ArtifactsDir = cfg.ArtifactsDir

	if loadErr := services.StoreConfigs.ReloadDir(*storeConfigDir); loadErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "could not load store configs from '%s': %v", *storeConfigDir, loadErr)
	}

	services.OcrPrimary = tesseract.New()
	services.OcrSecondary = textract.New(cfg.AWSRegion)

	services.LlmPrimary = llmclient.NewOpenAIProvider(cfg.OpenAIAPIKey)

	services.Notifier = notify.FromConfig(cfg)
	services.NotifyFromAddress = cfg.NotifyFromEmail
	if cfg.NotifyToEmail != "" {
		services.ReviewRecipients = []string{cfg.NotifyToEmail}
	}

	windowSeconds := time.Duration(cfg.RateLimitWindowSeconds) * time.Second
	services.RateLimiter = ratelimit.New(cfg.RateLimitMaxRequests, windowSeconds)

	httpRequestsPerSecond := float64(cfg.RateLimitMaxRequests) / windowSeconds.Seconds()
	server := httpapi.NewServer(services, httpRequestsPerSecond, cfg.RateLimitMaxRequests)

	addr := cfg.Address + ":" + strconv.Itoa(cfg.Port)
	tl.Log(tl.Notice, palette.BlueBold, "%s on '%s'", "receipt-server listening", addr)
	if startErr := server.Start(addr); startErr != nil {
		tl.Log(tl.Error, palette.RedBold, "server stopped: %v", startErr)
	}
}
