package helper

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NewID returns a random UUID, prefixed with "<prefix>-" when prefix is set.
func NewID(prefix string) (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate %s id: %w", prefix, err)
	}
	if prefix == "" {
		return id.String(), nil
	}
	return prefix + "-" + id.String(), nil
}

// FprettyPrint writes v as indented JSON to w.
func FprettyPrint(w io.Writer, v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Fprintln(w, string(b))
}
