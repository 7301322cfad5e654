package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
)

// MaxReceiptBytes bounds inline image uploads.
const MaxReceiptBytes = 10 << 20

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image too large")
)

var receiptMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
}

// Receipt is what the model read off a receipt photo.
type Receipt struct {
	Amount     core.Money `json:"amount"`
	Date       string     `json:"date"`
	Merchant   string     `json:"merchant"`
	Category   string     `json:"category"`
	Items      []string   `json:"items"`
	Confidence float64    `json:"confidence"`
}

// DescribeRequest is the input for a generated expense description.
type DescribeRequest struct {
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
	Merchant string     `json:"merchant"`
	Items    []string   `json:"items"`
}

type Assistant struct {
	model Model
}

func NewAssistant(model Model) *Assistant {
	return &Assistant{model: model}
}

const receiptPrompt = `You read shop receipts for a personal finance app.
Return ONLY a JSON object, no prose and no Markdown, with these keys:
"amount" (number, the grand total), "date" (YYYY-MM-DD or ""),
"merchant" (string), "category" (one of Food, Transport, Shopping, Bills,
Entertainment, Health, Other), "items" (array of strings),
"confidence" (number between 0 and 1).`

// ExtractReceipt reads amount, date, merchant and items from an image.
func (a *Assistant) ExtractReceipt(ctx context.Context, image []byte, mimeType string) (Receipt, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if !receiptMIMETypes[mimeType] {
		return Receipt{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, mimeType)
	}
	if len(image) > MaxReceiptBytes {
		return Receipt{}, ErrImageTooLarge
	}

	raw, err := a.model.GenerateText(ctx, receiptPrompt, &genai.Blob{MIMEType: mimeType, Data: image})
	if err != nil {
		return Receipt{}, err
	}

	var r Receipt
	if err := json.Unmarshal([]byte(cleanModelJSON(raw, '{', '}')), &r); err != nil {
		slog.WarnContext(ctx, "Unparsable receipt response", "error", err, "raw", raw)
		return Receipt{}, fmt.Errorf("%w: decode receipt: %v", ErrUpstream, err)
	}
	if r.Amount.Cents < 0 {
		r.Amount.Cents = -r.Amount.Cents
	}
	if _, err := core.ParseDate(r.Date); err != nil {
		r.Date = ""
	}
	r.Confidence = min(max(r.Confidence, 0), 1)
	return r, nil
}

// Describe writes a one-line expense description.
func (a *Assistant) Describe(ctx context.Context, req DescribeRequest) (string, error) {
	var b strings.Builder
	b.WriteString("Write a short, plain description (max 12 words) for this expense. ")
	b.WriteString("Return only the description.\n")
	fmt.Fprintf(&b, "Amount: %s\n", req.Amount.Decimal())
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	if req.Merchant != "" {
		fmt.Fprintf(&b, "Merchant: %s\n", req.Merchant)
	}
	if len(req.Items) > 0 {
		fmt.Fprintf(&b, "Items: %s\n", strings.Join(req.Items, ", "))
	}

	raw, err := a.model.GenerateText(ctx, b.String(), nil)
	if err != nil {
		return "", err
	}
	desc := strings.TrimSpace(raw)
	if i := strings.IndexByte(desc, '\n'); i >= 0 {
		desc = desc[:i]
	}
	desc = strings.TrimSpace(strings.Trim(strings.TrimSpace(desc), `"`))
	return truncateRunes(desc, maxDescriptionRunes), nil
}

const maxDescriptionRunes = 200

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Insights asks for a handful of observations on the dashboard figures.
func (a *Assistant) Insights(ctx context.Context, d aggregate.Dashboard) ([]string, error) {
	summary, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	prompt := "You are a personal finance coach. Given this JSON summary of a user's " +
		"month (amounts in the user's currency), return ONLY a JSON array of 3 to 5 " +
		"short, specific, actionable insights as strings.\n\n" + string(summary)

	raw, err := a.model.GenerateText(ctx, prompt, nil)
	if err != nil {
		return nil, err
	}

	var out []string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw, '[', ']')), &out); err == nil {
		return compact(out), nil
	}
	// Fall back to one insight per line when the model ignores the format.
	for _, line := range strings.Split(raw, "\n") {
		out = append(out, strings.TrimLeft(strings.TrimSpace(line), "-*• "))
	}
	return compact(out), nil
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" && !strings.HasPrefix(s, "```") {
			out = append(out, s)
		}
	}
	return out
}

// cleanModelJSON strips Markdown fences and keeps the outermost open..close span.
func cleanModelJSON(raw string, open, close byte) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = strings.TrimSpace(s[idx+1:])
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if start := strings.IndexByte(s, open); start != -1 {
		if end := strings.LastIndexByte(s, close); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
