package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"receiptcore/internal/workflow"
)

// Handler bundles the orchestrator submission endpoint's dependencies.
type Handler struct {
	Services *workflow.Services
}

// submitReceiptResponse is the JSON body returned for every submission,
// successful or not, mirroring workflow.Result's fields — the HTTP
// surface never invents a shape the orchestrator didn't already produce.
type submitReceiptResponse struct {
	ReceiptID   string           `json:"receipt_id"`
	Status      workflow.Status  `json:"status"`
	ChainID     string           `json:"chain_id,omitempty"`
	NeedsReview bool             `json:"needs_review"`
	TimelineMs  map[string]int64 `json:"timeline_ms,omitempty"`
}

// SubmitReceipt handles POST /receipts: a multipart form with an "image"
// file part and a "user_id" field. It runs the image through
// Services.ProcessReceipt and maps the result to spec §5/§7's HTTP
// contract: a RateLimited failure becomes 429, a RepositoryError becomes
// 503 (the caller's problem is the storage backend, not the request), and
// every other terminal Result (done or needs_review) is 200 with the
// Result body.
func (h *Handler) SubmitReceipt(c echo.Context) error {
	userID := c.FormValue("user_id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "image file is required"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "could not open uploaded image"})
	}
	defer src.Close()

	imageBytes, err := io.ReadAll(src)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "could not read uploaded image"})
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	result, procErr := h.Services.ProcessReceipt(c.Request().Context(), userID, imageBytes, fileHeader.Filename, mimeType)
	if procErr != nil {
		var failure *workflow.Failure
		if errors.As(procErr, &failure) && failure.Kind == workflow.RateLimited {
			return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limited, try again shortly"})
		}
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "receipt could not be stored"})
	}

	return c.JSON(http.StatusOK, submitReceiptResponse{
		ReceiptID:   result.ReceiptID,
		Status:      result.Status,
		ChainID:     result.ChainID,
		NeedsReview: result.NeedsReview,
		TimelineMs:  result.Timeline,
	})
}

// Healthz is a liveness probe with no auth requirement, registered outside
// the bearer-token group.
func (h *Handler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
