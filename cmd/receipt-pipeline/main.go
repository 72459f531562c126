// Command receipt-pipeline runs a batch of receipt images through the
// orchestrator directly, without the HTTP surface — for local testing and
// bulk backfills against a directory of images.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"

	"receiptcore/internal/cliutil"
	"receiptcore/internal/config"
	"receiptcore/internal/llmclient"
	"receiptcore/internal/ocrprovider/tesseract"
	"receiptcore/internal/ocrprovider/textract"
	"receiptcore/internal/ratelimit"
	"receiptcore/internal/repository"
	"receiptcore/internal/workflow"
)

/*
main runs every receipt image under -image through the orchestrator.

-image can be:
  - a single image file (.jpg/.jpeg/.png)
  - a directory containing images (.jpg/.jpeg/.png)

Each image is submitted under -user as though it had arrived through the
HTTP surface, and the resulting status/chain id is printed to stdout.
*/
func main() {
	config.CheckIfEnvVarsPresent("OPENAI_API_KEY")

	configPath := flag.String("config", "./cfg/config.json", "Path to your configuration file.")
	storeConfigDir := flag.String("store-configs", "./cfg/stores", "Directory of per-chain store layout JSON documents.")
	imagePath := flag.String("image", "", "Path to a receipt image OR a directory with images (.jpg/.jpeg/.png).")
	userID := flag.String("user", "batch-cli", "user_id attributed to every receipt processed in this run.")

	cliutil.RequiredFlag(imagePath, "image")
	flag.Parse()
	cliutil.EnsureFlags()
	config.InitializeConfig(*configPath)
	cfg := config.Cfg

	repo, e := repository.Open(cfg.DatabasePath)
	e.QuitIf(xerr.ErrorTypeError)

	services := workflow.NewServices()
	services.Repo = repo
	services.ArtifactsDir = cfg.ArtifactsDir
	services.RateLimiter = ratelimit.New(cfg.RateLimitMaxRequests, time.Duration(cfg.RateLimitWindowSeconds)*time.Second)
	if loadErr := services.StoreConfigs.ReloadDir(*storeConfigDir); loadErr != nil {
		tl.Log(tl.Warning, palette.YellowBold, "could not load store configs from '%s': %v", *storeConfigDir, loadErr)
	}
	services.OcrPrimary = tesseract.New()
	services.OcrSecondary = textract.New(cfg.AWSRegion)
	services.LlmPrimary = llmclient.NewOpenAIProvider(cfg.OpenAIAPIKey)

	imagesToProcess, resolveErr := resolveImagesToProcess(*imagePath)
	resolveErr.QuitIf(xerr.ErrorTypeError)

	if len(imagesToProcess) == 0 {
		tl.Log(tl.Warning, palette.PurpleBold, "No .jpg/.jpeg/.png files found at: '%s'", *imagePath)
		os.Exit(0)
	}
	tl.Log(tl.Notice1, palette.GreenBold, "Found '%d' images to process", len(imagesToProcess))

	passed, reviewed, failed := 0, 0, 0
	ctx := context.Background()
	for _, imgPath := range imagesToProcess {
		tl.Log(tl.Notice, palette.BlueBold, "%s '%s'", "Processing image", imgPath)

		result, procErr := processOneImage(ctx, services, *userID, imgPath)
		if procErr != nil {
			failed++
			tl.Log(tl.Error, palette.RedBold, "Failed processing '%s': %v", imgPath, procErr)
			continue
		}

		if result.NeedsReview {
			reviewed++
		} else {
			passed++
		}
		tl.Log(tl.Notice1, palette.GreenBold, "receipt_id='%s' status='%s' chain_id='%s'", result.ReceiptID, result.Status, result.ChainID)
	}

	tl.Log(tl.Notice, palette.GreenBold, "Done. Passed: '%d', needs review: '%d', failed: '%d'", passed, reviewed, failed)
}

func processOneImage(ctx context.Context, services *workflow.Services, userID, imagePath string) (workflow.Result, error) {
	imageBytes, readErr := os.ReadFile(imagePath)
	if readErr != nil {
		return workflow.Result{}, xerr.NewError(readErr, "read image file", imagePath)
	}

	mimeType := mimeTypeForExt(filepath.Ext(imagePath))
	return services.ProcessReceipt(ctx, userID, imageBytes, filepath.Base(imagePath), mimeType)
}

func mimeTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

func resolveImagesToProcess(inputPath string) (images []string, e *xerr.Error) {
	trimmed := strings.TrimSpace(inputPath)
	if trimmed == "" {
		e = xerr.NewError(fmt.Errorf("input path is empty"), "missing -image input", inputPath)
		return
	}

	info, statErr := os.Stat(trimmed)
	if statErr != nil {
		e = xerr.NewError(statErr, "stat -image input path", trimmed)
		return
	}

	if info.IsDir() {
		return listImagesInDir(trimmed)
	}

	ext := strings.ToLower(filepath.Ext(trimmed))
	if !isAllowedImageExt(ext) {
		e = xerr.NewError(fmt.Errorf("unsupported image extension: %s", ext), "input file is not .jpg/.jpeg/.png", trimmed)
		return
	}
	return []string{trimmed}, nil
}

func listImagesInDir(dirPath string) (images []string, e *xerr.Error) {
	entries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		e = xerr.NewError(readErr, "read directory", dirPath)
		return
	}

	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(ent.Name()))
		if !isAllowedImageExt(ext) {
			continue
		}
		images = append(images, filepath.Join(dirPath, ent.Name()))
	}

	sort.Strings(images)
	return
}

func isAllowedImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}
