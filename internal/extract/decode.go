package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/expense-ledger/internal/common"
	"github.com/Veraticus/expense-ledger/internal/model"
)

type response struct {
	Expenses []model.Payload `json:"expenses"`
}

// decodeResponse parses a model reply. A bare array of expenses is accepted
// as well as the {"expenses": [...]} envelope.
func decodeResponse(raw string) ([]model.Payload, error) {
	clean := cleanJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty response", common.ErrExtractionFailed)
	}

	if strings.HasPrefix(clean, "[") {
		var payloads []model.Payload
		if err := json.Unmarshal([]byte(clean), &payloads); err != nil {
			return nil, fmt.Errorf("%w: failed to parse response: %w", common.ErrExtractionFailed, err)
		}
		return payloads, nil
	}

	var resp response
	if err := json.Unmarshal([]byte(clean), &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", common.ErrExtractionFailed, err)
	}
	return resp.Expenses, nil
}

// cleanJSON strips markdown code fences and any text around the outermost
// JSON value.
func cleanJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = s[idx+1:]
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
