package http

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"fintrack/internal/ai"
)

// Multipart framing on top of the image itself.
const maxUploadOverhead = 1 << 20

type describeResponse struct {
	Description string `json:"description"`
}

type insightsResponse struct {
	Insights []string `json:"insights"`
}

func (h *handlers) assistant() (*ai.Assistant, error) {
	if h.deps.Assistant == nil {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY to enable AI features", errNotConfigured)
	}
	return h.deps.Assistant, nil
}

// extractReceipt accepts either a multipart form with an "image" part or a
// raw image body with its Content-Type.
func (h *handlers) extractReceipt(w http.ResponseWriter, r *http.Request) {
	asst, err := h.assistant()
	if err != nil {
		writeError(w, r, err)
		return
	}
	image, mimeType, err := readImage(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := asst.ExtractReceipt(r.Context(), image, mimeType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func readImage(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, ai.MaxReceiptBytes+maxUploadOverhead)

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, "", fmt.Errorf("%w: missing or invalid Content-Type", errBadRequest)
	}

	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, "", uploadError(err)
		}
		return data, mediaType, nil
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", ai.ErrImageTooLarge
		}
		return nil, "", fmt.Errorf("%w: multipart field \"image\" is required", errBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", uploadError(err)
	}
	partType := header.Header.Get("Content-Type")
	if partType == "" {
		partType = http.DetectContentType(data)
	}
	return data, partType, nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ai.ErrImageTooLarge
	}
	return fmt.Errorf("%w: read image: %v", errBadRequest, err)
}

func (h *handlers) describeReceipt(w http.ResponseWriter, r *http.Request) {
	asst, err := h.assistant()
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ai.DescribeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	desc, err := asst.Describe(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeResponse{Description: desc})
}

func (h *handlers) insights(w http.ResponseWriter, r *http.Request) {
	asst, err := h.assistant()
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.deps.Transactions.Dashboard(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := asst.Insights(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insightsResponse{Insights: out})
}
