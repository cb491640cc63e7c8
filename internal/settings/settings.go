// Package settings persists the user's language preference and derives the
// locale the rest of the application formats with.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"fintrack/internal/core"
	"fintrack/internal/ports"
	"fintrack/internal/state"
)

// PreferenceKey is the preference entry holding the settings document.
const PreferenceKey = "settings"

type Language string

const (
	LanguageSystem             Language = "system"
	LanguageEnglish            Language = "en"
	LanguageChineseSimplified  Language = "zh-Hans"
	LanguageChineseTraditional Language = "zh-Hant"
	LanguageJapanese           Language = "ja"
	LanguageKorean             Language = "ko"
)

// Languages lists every selectable language, system first.
var Languages = []Language{
	LanguageSystem,
	LanguageEnglish,
	LanguageChineseSimplified,
	LanguageChineseTraditional,
	LanguageJapanese,
	LanguageKorean,
}

// supported is ordered so that index 0 is the fallback.
var supported = []language.Tag{
	language.English,
	language.SimplifiedChinese,
	language.TraditionalChinese,
	language.Japanese,
	language.Korean,
}

var matcher = language.NewMatcher(supported)

var tags = map[Language]language.Tag{
	LanguageEnglish:            language.English,
	LanguageChineseSimplified:  language.SimplifiedChinese,
	LanguageChineseTraditional: language.TraditionalChinese,
	LanguageJapanese:           language.Japanese,
	LanguageKorean:             language.Korean,
}

func (l Language) Valid() bool {
	for _, s := range Languages {
		if l == s {
			return true
		}
	}
	return false
}

type Settings struct {
	Language Language     `json:"language"`
	Locale   language.Tag `json:"-"`
}

// Store keeps the current settings in memory and writes changes through to
// the preference store.
type Store struct {
	prefs    ports.PreferenceStore
	platform language.Tag
	state    *state.Container[Settings]
	writeMu  sync.Mutex
}

// NewStore creates a store whose "system" language resolves against
// platform. Use PlatformLocale to read it from the environment.
func NewStore(prefs ports.PreferenceStore, platform language.Tag) *Store {
	s := &Store{prefs: prefs, platform: platform}
	s.state = state.New(s.derive(LanguageSystem))
	return s
}

// Load reads the saved settings. A missing, malformed or unknown document
// leaves the defaults in place.
func (s *Store) Load(ctx context.Context) error {
	raw, err := s.prefs.GetPreference(ctx, PreferenceKey)
	if errors.Is(err, core.ErrNotFound) {
		s.state.Set(s.derive(LanguageSystem))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	var doc Settings
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		slog.WarnContext(ctx, "Ignoring malformed settings", "error", err)
		s.state.Set(s.derive(LanguageSystem))
		return nil
	}
	if !doc.Language.Valid() {
		slog.WarnContext(ctx, "Ignoring unknown language", "language", doc.Language)
		s.state.Set(s.derive(LanguageSystem))
		return nil
	}

	s.state.Set(s.derive(doc.Language))
	return nil
}

func (s *Store) Settings() Settings {
	return s.state.Get()
}

func (s *Store) Language() Language {
	return s.state.Get().Language
}

// Locale is the tag formatting should use.
func (s *Store) Locale() language.Tag {
	return s.state.Get().Locale
}

func (s *Store) Subscribe(fn func(Settings)) func() {
	return s.state.Subscribe(fn)
}

// SetLanguage persists lang. On failure the in-memory settings are unchanged.
func (s *Store) SetLanguage(ctx context.Context, lang Language) error {
	if !lang.Valid() {
		return fmt.Errorf("language %q: %w", lang, core.ErrInvalidInput)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.derive(lang)
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.prefs.SetPreference(ctx, PreferenceKey, string(raw)); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.state.Set(next)
	slog.InfoContext(ctx, "Language changed", "language", lang, "locale", next.Locale.String())
	return nil
}

func (s *Store) derive(lang Language) Settings {
	return Settings{Language: lang, Locale: Resolve(lang, s.platform)}
}

// Resolve maps a language choice to a supported tag. LanguageSystem picks the
// closest supported match for platform, falling back to English.
func Resolve(lang Language, platform language.Tag) language.Tag {
	if lang != LanguageSystem {
		if tag, ok := tags[lang]; ok {
			return tag
		}
		return language.English
	}
	_, idx, conf := matcher.Match(platform)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// PlatformLocale reads the POSIX locale variables in precedence order and
// returns language.Und when none holds a usable value.
func PlatformLocale(getenv func(string) string) language.Tag {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := getenv(key)
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		tag, err := language.Parse(strings.ReplaceAll(v, "_", "-"))
		if err != nil {
			continue
		}
		return tag
	}
	return language.Und
}
