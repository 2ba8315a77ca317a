package rddapp

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultConfigFile is read when no --config flag is given and the file exists
// in the working directory.
const DefaultConfigFile = "rddsetup.toml"

// Config holds everything the provisioning run can be tuned with. The zero
// value is not usable; start from DefaultConfig.
type Config struct {
	// FolderName is the Drive folder that holds the RDD files.
	FolderName string `toml:"folder_name"`
	// TemplateName is the title of the template spreadsheet.
	TemplateName string `toml:"template_name"`
	// LibraryName is the title of the Apps Script library project.
	LibraryName string `toml:"library_name"`
	// ParentID is the folder the RDD folder lives in. Empty means My Drive root.
	ParentID string `toml:"parent_id"`

	// CredentialsFile is the OAuth client secret downloaded from the Cloud Console.
	CredentialsFile string `toml:"credentials_file"`
	// TokenFile is where the user token is cached between runs.
	TokenFile string `toml:"token_file"`
	// CallbackPort is the loopback port for the consent redirect. 0 picks a free port.
	CallbackPort int `toml:"callback_port"`
	// ConsentTimeout bounds the wait for the browser consent, e.g. "5m".
	ConsentTimeout string `toml:"consent_timeout"`

	// RequestsPerSecond and Burst pace outgoing Google API requests.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`

	// CreateLibrary makes the run find or create the Apps Script library
	// instead of printing the manual steps.
	CreateLibrary bool `toml:"create_library"`
}

// DefaultConfig returns a Config populated with the values used when no
// configuration file exists.
func DefaultConfig() *Config {
	return &Config{
		FolderName:        "Odoo RDD",
		TemplateName:      "Odoo_RDD_Template",
		LibraryName:       "Odoo_RDD_Library",
		CredentialsFile:   "credentials.json",
		TokenFile:         "token.json",
		ConsentTimeout:    "5m",
		RequestsPerSecond: 8,
		Burst:             10,
	}
}

// LoadConfig reads a TOML config file on top of the defaults and validates
// the result. Unknown keys are errors.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config file %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to the
// defaults otherwise, so the tool runs without any configuration.
func LoadConfigOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	for key, v := range map[string]string{
		"folder_name":      c.FolderName,
		"template_name":    c.TemplateName,
		"library_name":     c.LibraryName,
		"credentials_file": c.CredentialsFile,
		"token_file":       c.TokenFile,
	} {
		if strings.TrimSpace(v) == "" {
			errs = append(errs, fmt.Errorf("%s must not be empty", key))
		}
	}

	if c.CallbackPort < 0 || c.CallbackPort > 65535 {
		errs = append(errs, fmt.Errorf("callback_port %d out of range 0-65535", c.CallbackPort))
	}
	if _, err := c.consentTimeout(); err != nil {
		errs = append(errs, err)
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond))
	}
	if c.Burst < 1 {
		errs = append(errs, fmt.Errorf("burst must be at least 1, got %d", c.Burst))
	}

	// map iteration order is random
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errors.Join(errs...)
}

func (c *Config) consentTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.ConsentTimeout)
	if err != nil {
		return 0, fmt.Errorf("consent_timeout %q: %w", c.ConsentTimeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("consent_timeout must be positive, got %s", c.ConsentTimeout)
	}
	return d, nil
}
