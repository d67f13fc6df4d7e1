// Package schema supplies the schema description embedded in LLM prompts.
package schema

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

//go:embed odoo.json
var defaultContext string

// Default returns the built-in description of the Odoo ERP tables
func Default() string {
	return defaultContext
}

// Load returns the contents of path, or the built-in description when path is empty.
// The contents are not interpreted; JSON and free text are both accepted.
func Load(path string) (string, error) {
	if path == "" {
		return defaultContext, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read schema context: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("schema context file %s is empty", path)
	}

	if gjson.Valid(text) {
		log.Debug().
			Str("path", path).
			Int("tables", len(gjson.Get(text, "tables").Map())).
			Msg("schema context loaded")
	} else {
		log.Debug().Str("path", path).Msg("schema context loaded as plain text")
	}

	return text, nil
}
