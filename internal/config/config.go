// Package config defines the necessary types to configure the application.
// An example config file config.yaml is provided in the repository.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
)

type Config struct {
	commoncfg.BaseConfig `mapstructure:",squash" yaml:",inline"`

	HTTP HTTPServer `yaml:"http"`

	ValKey      ValKey      `yaml:"valkey"`
	ExternalAPI ExternalAPI `yaml:"externalAPI"`
	LIFF        LIFF        `yaml:"liff"`
	Session     Session     `yaml:"session"`
}

type HTTPServer struct {
	Address         string        `yaml:"address" default:":8080"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" default:"5s"`
}

// ValKey configures the redirect-state backend. An empty host selects the
// in-process store instead.
type ValKey struct {
	Host     commoncfg.SourceRef `yaml:"host"`
	User     commoncfg.SourceRef `yaml:"user"`
	Password commoncfg.SourceRef `yaml:"password"`
	Prefix   string              `yaml:"prefix" default:"liff-portal"`
}

// ExternalAPI points at the backend authorization API consumed by the
// session exchange.
type ExternalAPI struct {
	BaseURL         string        `yaml:"baseURL"`
	Timeout         time.Duration `yaml:"timeout" default:"10s"`
	VerifyLIFFToken bool          `yaml:"verifyLIFFToken" default:"true"`
}

// App maps one URL path prefix onto a LIFF app registration. The list is
// ordered; the first prefix match wins.
type App struct {
	ID         string `yaml:"id"`
	PathPrefix string `yaml:"pathPrefix"`
	Name       string `yaml:"name"`
}

type LIFF struct {
	DefaultID    string        `yaml:"defaultID"`
	Apps         []App         `yaml:"apps"`
	APIBaseURL   string        `yaml:"apiBaseURL" default:"https://api.line.me"`
	LoginBaseURL string        `yaml:"loginBaseURL" default:"https://liff.line.me"`
	StateTTL     time.Duration `yaml:"stateTTL" default:"1h"`

	// StateCookie carries the redirect-state ID across the provider login.
	// Name and MaxAge fall back to "liff_state" and StateTTL when unset.
	StateCookie CookieTemplate `yaml:"stateCookie"`
}

type Session struct {
	Secret     commoncfg.SourceRef `yaml:"secret"`
	CSRFSecret commoncfg.SourceRef `yaml:"csrfSecret"`
	Duration   time.Duration       `yaml:"duration" default:"720h"`

	CookieTemplate     CookieTemplate `yaml:"cookie"`
	CSRFCookieTemplate CookieTemplate `yaml:"csrfCookie"`
}

// appsEnvVar, when set, overrides the configured LIFF app table with an
// inline YAML list, e.g.
//
//	LIFF_APPS='[{id: 123-abc, pathPrefix: /points, name: Points}]'
const appsEnvVar = "LIFF_APPS"

// LoadApps applies the LIFF_APPS environment override on top of the
// configured app table, then per-app ID overrides of the form
// LIFF_ID_POINTS (keyed on the first path segment). Call it once after
// commoncfg.LoadConfig.
func (l *LIFF) LoadApps() error {
	if raw, ok := os.LookupEnv(appsEnvVar); ok && raw != "" {
		var apps []App
		if err := yaml.Unmarshal([]byte(raw), &apps); err != nil {
			return err
		}

		l.Apps = apps
	}

	for i, app := range l.Apps {
		segment := strings.Trim(app.PathPrefix, "/")
		if segment == "" {
			continue
		}

		key := "LIFF_ID_" + strings.ToUpper(strings.ReplaceAll(segment, "/", "_"))
		if id, ok := os.LookupEnv(key); ok && id != "" {
			l.Apps[i].ID = id
		}
	}

	return nil
}
