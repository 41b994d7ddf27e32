package main

import (
	_ "embed"
	"fmt"
	"os"
)

//go:embed .env.example
var envExampleContent string

// runInit writes the .env.example template to dir.
func runInit(dir string) error {
	filename := dir + string(os.PathSeparator) + ".env.example"

	// Always overwrite .env.example (it's a template, safe to update)
	if err := os.WriteFile(filename, []byte(envExampleContent), 0644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}

	fmt.Printf("✓ Generated %s\n", filename)
	fmt.Println("  Next steps:")
	fmt.Println("  1. cp .env.example .env")
	fmt.Println("  2. Edit .env (relay port, proxy address, API settings)")
	fmt.Println("  3. Run ./proxy-viewer")
	fmt.Println("  4. Point your HTTP client at the proxy, e.g. http://127.0.0.1:8080")

	return nil
}
