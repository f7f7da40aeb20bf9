package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "scandoc",
		Short: "OCR and table extraction for scanned PDF documents",
		Long: `scandoc rasterizes PDF documents, extracts text with Tesseract under a
quality profile (fast, balanced, high_quality), escalates the profile when
confidence falls short, detects ruled tables and writes text and Markdown
artifacts.`,
		SilenceUsage: true,
	}

	root.AddCommand(newProcessCmd())
	root.AddCommand(newEnqueueCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
