package app

import (
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
)

// loadDotenv applies a .env file to the process environment. Variables that
// are already set to a non-empty value are left alone.
func loadDotenv(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if cur, ok := os.LookupEnv(key); ok && cur != "" {
			continue
		}
		if err := os.Setenv(key, vars[key]); err != nil {
			return fmt.Errorf("%s: set %s: %w", path, key, err)
		}
	}
	return nil
}
