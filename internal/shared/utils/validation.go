package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Size limits (in bytes)
const (
	MaxManifestSize = 256 * 1024
	MaxMessageSize  = 64 * 1024
)

// String length limits
const (
	MaxNameLength        = 256
	MaxDescriptionLength = 2048
	MaxVersionLength     = 64
	MaxChannelLength     = 128
)

var (
	// VersionPattern accepts semver-ish versions: 1, 1.2, 1.2.3, 1.2.3-beta.1+build
	VersionPattern = regexp.MustCompile(`^v?\d+(\.\d+){0,2}([-+][0-9A-Za-z.-]+)*$`)
	// ChannelPattern allows alphanumeric, dots, colons, hyphens and underscores
	ChannelPattern = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)
)

// ValidateSize checks len(data) against max
func ValidateSize(data []byte, max int, what string) error {
	if len(data) > max {
		return fmt.Errorf("%s size %d bytes exceeds maximum %d bytes", what, len(data), max)
	}
	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if value == "" {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateName validates a display name
func ValidateName(name, fieldName string) error {
	return ValidateString(name, fieldName, 1, MaxNameLength, true)
}

// ValidateDescription validates a description field
func ValidateDescription(description, fieldName string) error {
	return ValidateString(description, fieldName, 0, MaxDescriptionLength, false)
}

// ValidateVersion validates an optional package version
func ValidateVersion(version string) error {
	if err := ValidateString(version, "version", 1, MaxVersionLength, false); err != nil {
		return err
	}
	if version != "" && !VersionPattern.MatchString(version) {
		return fmt.Errorf("version %q is not a valid version", version)
	}
	return nil
}

// ValidateChannel validates an IPC channel name
func ValidateChannel(channel string) error {
	if err := ValidateString(channel, "channel", 1, MaxChannelLength, true); err != nil {
		return err
	}
	if !ChannelPattern.MatchString(channel) {
		return fmt.Errorf("channel %q contains invalid characters", channel)
	}
	return nil
}
