// internal/workers/verification/extract-paystub-data/gemini.go
package extractpaystubdata

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paystub-verify/internal/common/config"
	"paystub-verify/internal/common/httpclient"
	"paystub-verify/internal/common/logger"
)

// ModelClient runs the vision model over a downloaded document and returns
// the raw response text.
type ModelClient interface {
	ExtractDocument(ctx context.Context, mimeType string, data []byte) (string, error)
}

const extractionPrompt = `You are an expert financial document analyst specializing in pay stubs, income statements, and employment verification documents.
Analyze this document and extract the following information in JSON format with maximum accuracy:

{
    "employee_name": "Full name of the employee (first and last name)",
    "company_name": "Name of the company/employer",
    "annual_salary": "Annual salary as a number (calculate if needed)",
    "ssn": "Social Security Number (last 4 digits only for privacy)",
    "pay_period": "Pay period information (weekly, bi-weekly, monthly, etc.)",
    "gross_pay": "Gross pay amount for this period",
    "net_pay": "Net pay amount for this period",
    "deductions": "List of deductions (taxes, insurance, etc.)",
    "pay_date": "Pay date (YYYY-MM-DD format if possible)",
    "hourly_rate": "Hourly rate if applicable",
    "hours_worked": "Hours worked this period if applicable",
    "year_to_date_gross": "Year-to-date gross pay if available",
    "year_to_date_net": "Year-to-date net pay if available"
}

EXTRACTION GUIDELINES:
1. Be thorough - check all sections of the document
2. Extract numbers without currency symbols ($, EUR, GBP, INR, etc.)
3. Convert all amounts to numbers (remove commas, spaces)
4. For dates, prefer YYYY-MM-DD format when possible
5. If multiple values exist, use the most recent or current period
6. If a field is not found or unclear, set it to null
7. Return ONLY valid JSON, no additional text or explanations`

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *httpclient.Client
	logger  logger.Logger
}

func NewGeminiClient(cfg config.OCRConfig, log logger.Logger) *GeminiClient {
	return &GeminiClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    httpclient.NewClient(time.Duration(cfg.Timeout) * time.Millisecond),
		logger:  log,
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *GeminiClient) ExtractDocument(ctx context.Context, mimeType string, data []byte) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: extractionPrompt},
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call model: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
