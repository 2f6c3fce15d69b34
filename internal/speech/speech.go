// Package speech wraps the external speech services: synthesis of a word in
// a given voice, and transcription of the resulting clip.
//
// Errors returned by implementations are classified with pipeline.Transient
// and pipeline.Permanent so the transcription fan-out knows which items to
// retry.
package speech

import (
	"context"
	"fmt"
	"strings"
)

// VoiceProfile is one (locale, voice) pair a word is synthesized in.
type VoiceProfile struct {
	Locale string `koanf:"locale" json:"locale"`
	Voice  string `koanf:"voice" json:"voice"`
}

// String returns the profile's file-name form, e.g. "en-GB_nova".
func (p VoiceProfile) String() string {
	return p.Locale + "_" + p.Voice
}

// Language returns the ISO-639-1 part of the locale ("en" for "en-GB").
func (p VoiceProfile) Language() string {
	lang, _, _ := strings.Cut(p.Locale, "-")
	return strings.ToLower(lang)
}

// Validate rejects empty fields.
func (p VoiceProfile) Validate() error {
	if p.Locale == "" || p.Voice == "" {
		return fmt.Errorf("voice profile needs locale and voice, got %q/%q", p.Locale, p.Voice)
	}
	return nil
}

// ParseProfile parses the String form back into a profile.
func ParseProfile(s string) (VoiceProfile, error) {
	locale, voice, ok := strings.Cut(s, "_")
	p := VoiceProfile{Locale: locale, Voice: voice}
	if !ok {
		return p, fmt.Errorf("invalid voice profile %q", s)
	}
	return p, p.Validate()
}

// DefaultLocales are the English locales clips are generated for.
var DefaultLocales = []string{"en-US", "en-GB", "en-IN", "en-NZ", "en-ZA", "en-AU"}

// DefaultVoices are the voices used for each locale.
var DefaultVoices = []string{"alloy", "nova"}

// Profiles returns the cross product of locales and voices.
func Profiles(locales, voices []string) []VoiceProfile {
	profiles := make([]VoiceProfile, 0, len(locales)*len(voices))
	for _, l := range locales {
		for _, v := range voices {
			profiles = append(profiles, VoiceProfile{Locale: l, Voice: v})
		}
	}
	return profiles
}

// DefaultProfiles returns DefaultLocales x DefaultVoices.
func DefaultProfiles() []VoiceProfile {
	return Profiles(DefaultLocales, DefaultVoices)
}

// Synthesizer turns a word into an audio clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, word string, profile VoiceProfile) ([]byte, error)
}

// Transcriber turns an audio clip back into text. name is the clip's file
// name and carries its format; language is an ISO-639-1 hint.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, name, language string) (string, error)
}

// Service is a backend that can do both.
type Service interface {
	Synthesizer
	Transcriber
}
