package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files from dir with priority .env.local > .env.
// godotenv never overwrites variables that are already set, so the process
// environment always wins. Returns the files actually loaded.
func LoadDotEnv(dir string) []string {
	var loaded []string
	for _, name := range []string{".env.local", ".env"} {
		path := name
		if dir != "" {
			path = dir + string(os.PathSeparator) + name
		}
		if _, err := os.Stat(path); err == nil {
			loaded = append(loaded, path)
		}
	}
	if len(loaded) > 0 {
		_ = godotenv.Load(loaded...)
	}
	return loaded
}
