package compose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/agustogpt/research-gateway/internal/domain"
)

// ErrAgentUnavailable is the single failure surfaced for unreachable or
// malformed agent responses.
var ErrAgentUnavailable = errors.New("agent unavailable")

type rawCitation struct {
	DocumentName string  `json:"document_name"`
	Year         flexInt `json:"year"`
	Industry     string  `json:"industry"`
	Page         flexInt `json:"page"`
	ChunkIndex   flexInt `json:"chunk_index"`
}

type rawEnvelope struct {
	UserQuery          string        `json:"user_query"`
	Response           *string       `json:"response"`
	DocumentInfo       []rawCitation `json:"document_information"`
	CurrentDate        string        `json:"current_date"`
	RecommendedQueries []string      `json:"recommended_queries"`
}

// ParseResponse decodes an agent API response body. Missing citation or
// suggestion lists become empty slices.
func ParseResponse(raw []byte) (domain.ResponseEnvelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return domain.ResponseEnvelope{}, fmt.Errorf("%w: decode response: %v", ErrAgentUnavailable, err)
	}
	if env.Response == nil {
		return domain.ResponseEnvelope{}, fmt.Errorf("%w: response field missing", ErrAgentUnavailable)
	}

	out := domain.ResponseEnvelope{
		UserQuery:          env.UserQuery,
		Answer:             *env.Response,
		CurrentDate:        env.CurrentDate,
		Citations:          make([]domain.Citation, 0, len(env.DocumentInfo)),
		RecommendedQueries: make([]string, 0, len(env.RecommendedQueries)),
	}
	for _, c := range env.DocumentInfo {
		out.Citations = append(out.Citations, domain.Citation{
			DocumentName: c.DocumentName,
			Year:         int(c.Year),
			Industry:     c.Industry,
			Page:         int(c.Page),
			ChunkIndex:   int(c.ChunkIndex),
		})
	}
	for _, q := range env.RecommendedQueries {
		if q = strings.TrimSpace(q); q != "" {
			out.RecommendedQueries = append(out.RecommendedQueries, q)
		}
	}
	return out, nil
}

// flexInt accepts a JSON number, a numeric string, or null. Other strings decode as 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			*f = flexInt(n)
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			*f = flexInt(n)
			return nil
		}
		// Labels such as "iv" or "N/A" carry no usable number.
		*f = 0
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
