// internal/workers/verification/extract-paystub-data/handler.go
package extractpaystubdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/xeipuuv/gojsonschema"

	"paystub-verify/internal/common/errors"
	"paystub-verify/internal/common/httpclient"
	"paystub-verify/internal/common/logger"
)

const (
	TaskType = "extract-paystub-data"

	cacheKeyPrefix = "extraction:document:"
)

// Fence patterns tried in order against the raw model response. The last one
// grabs a bare JSON object with no fencing at all.
var jsonFencePatterns = []*regexp.Regexp{
	regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```"),
	regexp.MustCompile("(?s)```\\s*(.*?)\\s*```"),
	regexp.MustCompile(`(?s)\{.*\}`),
}

// Repairs Python-flavored almost-JSON the model occasionally emits.
var jsonRepairer = strings.NewReplacer(
	"'", `"`,
	"True", "true",
	"False", "false",
	"None", "null",
)

var objectSchema = gojsonschema.NewStringLoader(`{"type": "object"}`)

type Handler struct {
	config *Config
	redis  *redis.Client
	http   *httpclient.Client
	model  ModelClient
	logger logger.Logger
}

func NewHandler(config *Config, redisClient *redis.Client, model ModelClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		redis:  redisClient,
		http:   httpclient.NewClient(config.DownloadTimeout),
		model:  model,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute downloads the document, runs the OCR model over it, and returns
// the raw field mapping. Results are cached per document; a malformed model
// response degrades to an all-null mapping rather than an error.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	cacheKey := cacheKeyPrefix + input.DocumentID
	if val, err := h.redis.Get(ctx, cacheKey).Result(); err == nil {
		var cached map[string]interface{}
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			h.logger.Debug("extraction cache hit", map[string]interface{}{
				"documentId": input.DocumentID,
			})
			return &Output{Raw: cached, FromCache: true}, nil
		}
	}

	fileData, err := h.downloadDocument(ctx, input.StorageURL)
	if err != nil {
		return nil, errors.NewDocumentDownloadFailedError(input.StorageURL, err)
	}

	responseText, err := h.model.ExtractDocument(ctx, mimeTypeFor(input.StorageURL), fileData)
	if err != nil {
		return nil, errors.NewExtractionFailedError(err)
	}

	raw, parsed := h.parseExtraction(responseText)

	// Degraded all-null extractions are not cached so a later retry gets a
	// fresh model call.
	if parsed {
		if data, err := json.Marshal(raw); err == nil {
			h.redis.Set(ctx, cacheKey, data, h.config.CacheTTL)
		}
	}

	h.logger.Info("extraction completed", map[string]interface{}{
		"documentId": input.DocumentID,
		"fields":     len(raw),
		"parsed":     parsed,
	})

	return &Output{Raw: raw}, nil
}

func (h *Handler) downloadDocument(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := h.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// parseExtraction pulls the JSON object out of the model response. The
// second return value reports whether a real object was recovered; on
// failure the minimal all-null mapping is returned instead.
func (h *Handler) parseExtraction(responseText string) (map[string]interface{}, bool) {
	jsonText := extractJSON(strings.TrimSpace(responseText))

	if m, err := decodeObject(jsonText); err == nil {
		return m, true
	}

	if m, err := decodeObject(jsonRepairer.Replace(jsonText)); err == nil {
		return m, true
	}

	h.logger.Warn("failed to parse model response, using minimal structure", map[string]interface{}{
		"responsePrefix": truncate(responseText, 200),
	})
	return minimalExtraction(), false
}

func extractJSON(responseText string) string {
	for _, pattern := range jsonFencePatterns {
		match := pattern.FindStringSubmatch(responseText)
		if match == nil {
			continue
		}
		if pattern.NumSubexp() > 0 {
			return strings.TrimSpace(match[1])
		}
		return strings.TrimSpace(match[0])
	}
	return responseText
}

func decodeObject(text string) (map[string]interface{}, error) {
	result, err := gojsonschema.Validate(objectSchema, gojsonschema.NewStringLoader(text))
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("response is not a JSON object")
	}

	var m map[string]interface{}
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func minimalExtraction() map[string]interface{} {
	return map[string]interface{}{
		"employee_name": nil,
		"company_name":  nil,
		"annual_salary": nil,
		"ssn":           nil,
		"pay_period":    nil,
		"gross_pay":     nil,
		"net_pay":       nil,
		"deductions":    nil,
		"pay_date":      nil,
	}
}

func mimeTypeFor(url string) string {
	lower := strings.ToLower(url)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(lower, ".png"):
		return "image/png"
	case strings.HasSuffix(lower, ".jpg"), strings.HasSuffix(lower, ".jpeg"):
		return "image/jpeg"
	default:
		return "image/jpeg"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
