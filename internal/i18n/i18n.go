package i18n

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Store maps (language, key) to localized text. Read-only after Load.
// Unknown languages fall back to the configured default, then to "en",
// then to the key itself so a missing translation never blanks a reply.
type Store struct {
	translations map[string]map[string]string
	defaultLang  string
	logger       *zerolog.Logger
}

func Load(dir, defaultLang string, logger *zerolog.Logger) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read translations dir: %w", err)
	}

	translations := make(map[string]map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		lang := strings.TrimSuffix(entry.Name(), ".json")

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read translation file %s: %w", entry.Name(), err)
		}

		var messages map[string]string
		if err := json.Unmarshal(data, &messages); err != nil {
			return nil, fmt.Errorf("parse translation file %s: %w", entry.Name(), err)
		}

		translations[lang] = messages
		logger.Info().Str("lang", lang).Int("keys", len(messages)).Msg("translations loaded")
	}

	if len(translations) == 0 {
		return nil, fmt.Errorf("no translation files found in %s", dir)
	}

	return &Store{
		translations: translations,
		defaultLang:  defaultLang,
		logger:       logger,
	}, nil
}

// NewStatic builds a store from an in-memory table. Used in tests.
func NewStatic(translations map[string]map[string]string, defaultLang string, logger *zerolog.Logger) *Store {
	return &Store{
		translations: translations,
		defaultLang:  defaultLang,
		logger:       logger,
	}
}

// Resolve returns localized text for key with {placeholder} substitution.
func (s *Store) Resolve(lang, key string, params map[string]string) string {
	messages, ok := s.translations[lang]
	if !ok {
		messages, ok = s.translations[s.defaultLang]
	}
	if !ok {
		messages = s.translations["en"]
	}

	text, found := messages[key]
	if !found {
		// Second chance in the default language, then English, before
		// giving up.
		if fallback, ok := s.translations[s.defaultLang]; ok {
			text, found = fallback[key]
		}
	}
	if !found {
		if fallback, ok := s.translations["en"]; ok {
			text, found = fallback[key]
		}
	}
	if !found {
		s.logger.Warn().Str("lang", lang).Str("key", key).Msg("missing translation")
		return key
	}

	if len(params) == 0 {
		return text
	}

	pairs := make([]string, 0, len(params)*2)
	for name, value := range params {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

// Has reports whether the language has its own translation table.
func (s *Store) Has(lang string) bool {
	_, ok := s.translations[lang]
	return ok
}
