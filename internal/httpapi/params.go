package httpapi

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gezibash/arc-contract/internal/contract"
)

// DecodeParticipant decodes a base64 participant identifier as sent in
// paths and query strings. Standard encoding is tried first, then the URL
// alphabet, both with or without padding.
func DecodeParticipant(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: participant is required", contract.ErrInvalidRequest)
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.RawStdEncoding,
		base64.URLEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil && len(b) > 0 {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("%w: participant %q is not valid base64", contract.ErrInvalidRequest, s)
}

// EncodeParticipant is the inverse of DecodeParticipant.
func EncodeParticipant(p string) string {
	return base64.URLEncoding.EncodeToString([]byte(p))
}

// bind decodes the JSON body into v and reports malformed input as invalid.
func bind(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %v", contract.ErrInvalidRequest, err)
	}
	return nil
}

// queryBool parses an optional boolean query parameter; absent gives nil.
func queryBool(c *gin.Context, name string) (*bool, error) {
	raw, ok := c.GetQuery(name)
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a boolean", contract.ErrInvalidRequest, name)
	}
	return &v, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", contract.ErrInvalidRequest, name)
	}
	return v, nil
}
