package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Settings is the resolved configuration of the nodemap binaries.
type Settings struct {
	Remote  RemoteSettings
	Canvas  CanvasSettings
	Session SessionSettings
	Log     LogSettings
	Server  ServerSettings
}

// RemoteSettings configures the HTTP client.
type RemoteSettings struct {
	BaseURL string
	Timeout time.Duration
}

// CanvasSettings configures save timing.
type CanvasSettings struct {
	AutosaveDelay    time.Duration
	FeedbackDuration time.Duration
}

// SessionSettings configures credential persistence.
type SessionSettings struct {
	CredentialFile string
}

// LogSettings configures logging.
type LogSettings struct {
	Level string
	File  string
	JSON  bool
}

// ServerSettings configures the persistence server.
type ServerSettings struct {
	Addr      string
	Database  string
	JWTSecret string
	TokenTTL  time.Duration
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Remote:  RemoteSettings{BaseURL: "http://127.0.0.1:5001", Timeout: 10 * time.Second},
		Canvas:  CanvasSettings{AutosaveDelay: time.Second, FeedbackDuration: 3 * time.Second},
		Session: SessionSettings{CredentialFile: defaultCredentialFile()},
		Log:     LogSettings{Level: "info"},
		Server: ServerSettings{
			Addr:     ":5001",
			Database: "nodemap.db",
			TokenTTL: 24 * time.Hour,
		},
	}
}

func defaultCredentialFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".nodemap-credential.json"
	}
	return dir + string(os.PathSeparator) + "nodemap" + string(os.PathSeparator) + "credential.json"
}

// FromConfig overlays the values present in c onto Defaults.
func FromConfig(c Config) Settings {
	s := Defaults()

	remote := c.Sub("remote")
	s.Remote.BaseURL = remote.String("base_url", s.Remote.BaseURL)
	s.Remote.Timeout = remote.Duration("timeout", s.Remote.Timeout)

	canvas := c.Sub("canvas")
	s.Canvas.AutosaveDelay = canvas.Duration("autosave_delay", s.Canvas.AutosaveDelay)
	s.Canvas.FeedbackDuration = canvas.Duration("feedback_duration", s.Canvas.FeedbackDuration)

	s.Session.CredentialFile = c.Sub("session").String("credential_file", s.Session.CredentialFile)

	log := c.Sub("log")
	s.Log.Level = log.String("level", s.Log.Level)
	s.Log.File = log.String("file", s.Log.File)
	s.Log.JSON = log.Bool("json", s.Log.JSON)

	server := c.Sub("server")
	s.Server.Addr = server.String("addr", s.Server.Addr)
	s.Server.Database = server.String("database", s.Server.Database)
	s.Server.JWTSecret = server.String("jwt_secret", s.Server.JWTSecret)
	s.Server.TokenTTL = server.Duration("token_ttl", s.Server.TokenTTL)
	return s
}

// Load resolves settings from defaults, then the optional file at path,
// then environment variables. Missing dotenv files are skipped.
func Load(path string, envFiles ...string) (Settings, error) {
	c := New(nil)
	if path != "" {
		var err error
		if c, err = FromFile(path); err != nil {
			return Settings{}, err
		}
	}
	if err := loadDotenv(envFiles); err != nil {
		return Settings{}, err
	}
	s := FromConfig(c)
	if err := s.applyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func loadDotenv(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// applyEnv overrides settings from the environment.
func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("NODEMAP_REMOTE_BASE_URL", &s.Remote.BaseURL)
	if err := dur("NODEMAP_REMOTE_TIMEOUT", &s.Remote.Timeout); err != nil {
		return err
	}
	str("NODEMAP_CREDENTIAL_FILE", &s.Session.CredentialFile)
	str("NODEMAP_LOG_LEVEL", &s.Log.Level)
	str("NODEMAP_LOG_FILE", &s.Log.File)
	str("NODEMAP_SERVER_ADDR", &s.Server.Addr)
	str("DATABASE_URL", &s.Server.Database)
	str("JWT_SECRET_KEY", &s.Server.JWTSecret)
	return dur("NODEMAP_TOKEN_TTL", &s.Server.TokenTTL)
}
