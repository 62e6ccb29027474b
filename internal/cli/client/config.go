package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Profile is what the CLI keeps between runs: the credentials written by
// auth login and the pool defaults that context and rank fall back to when
// their industry argument or flags are omitted.
type Profile struct {
	APIKey   string `json:"api_key,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
	Industry string `json:"industry,omitempty"`
	Segment  string `json:"segment,omitempty"`
	MaxChars int    `json:"max_chars,omitempty"`
}

// profileKeys are the defaults settable through knowpool config.
var profileKeys = []string{"industry", "segment", "max-chars"}

var profilePath = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "knowpool", "config.json"), nil
}

// LoadProfile reads the stored profile. Before the first save it returns an
// empty profile.
func LoadProfile() (*Profile, error) {
	path, err := profilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Profile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid profile %s: %w", path, err)
	}
	return &p, nil
}

// SaveProfile writes p readable by the owner only. Saving an empty profile
// removes the file.
func SaveProfile(p *Profile) error {
	if p == nil {
		return errors.New("profile cannot be nil")
	}
	path, err := profilePath()
	if err != nil {
		return err
	}

	if *p == (Profile{}) {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove profile: %w", err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Set assigns one pool default. An empty value clears it.
func (p *Profile) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "industry":
		p.Industry = value
	case "segment":
		p.Segment = value
	case "max-chars":
		if value == "" {
			p.MaxChars = 0
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("max-chars must be a non-negative integer, got %q", value)
		}
		p.MaxChars = n
	default:
		return fmt.Errorf("unknown setting %q (one of: %s)", key, strings.Join(profileKeys, ", "))
	}
	return nil
}

// Get returns the stored value of one pool default.
func (p *Profile) Get(key string) (string, error) {
	switch key {
	case "industry":
		return p.Industry, nil
	case "segment":
		return p.Segment, nil
	case "max-chars":
		if p.MaxChars == 0 {
			return "", nil
		}
		return strconv.Itoa(p.MaxChars), nil
	}
	return "", fmt.Errorf("unknown setting %q (one of: %s)", key, strings.Join(profileKeys, ", "))
}

// industry picks the positional industry, falling back to the profile.
func (p *Profile) industry(args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return args[0], nil
	}
	if p.Industry != "" {
		return p.Industry, nil
	}
	return "", errors.New("industry required: pass it as an argument or run 'knowpool config set industry <name>'")
}

// CredentialSource names where a resolved key and URL pair came from.
type CredentialSource string

const (
	SourceFlag    CredentialSource = "flag"
	SourceEnv     CredentialSource = "env"
	SourceProfile CredentialSource = "profile"
	SourceNone    CredentialSource = "none"
)

// ResolveCredentials returns the first complete key and URL pair from flags,
// then KNOWPOOL_API_KEY/KNOWPOOL_API_URL, then the profile.
func ResolveCredentials(flagKey, flagURL string) (CredentialSource, string, string) {
	if flagKey != "" && flagURL != "" {
		return SourceFlag, flagKey, flagURL
	}
	if key, url := os.Getenv(envAPIKey), os.Getenv(envAPIURL); key != "" && url != "" {
		return SourceEnv, key, url
	}
	if p, err := LoadProfile(); err == nil && p.APIKey != "" && p.APIURL != "" {
		return SourceProfile, p.APIKey, p.APIURL
	}
	return SourceNone, "", ""
}
