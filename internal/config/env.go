package config

import (
	"log/slog"
	"maps"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// loadEnvFiles exports the KEY=VALUE pairs of .env and .env.local found next
// to the project file, so toolchain paths can be kept out of libforge.yaml.
// .env.local wins over .env and the process environment wins over both.
func loadEnvFiles(dir string) {
	vars := map[string]string{}
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		read, err := godotenv.Read(path)
		if err != nil {
			slog.Warn("Ignoring unreadable env file", slog.String("path", path), slog.String("error", err.Error()))
			continue
		}
		maps.Copy(vars, read)
		slog.Debug("Loaded env file", slog.String("path", path), slog.Int("vars", len(read)))
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); !set {
			_ = os.Setenv(k, v)
		}
	}
}
