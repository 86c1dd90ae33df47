// Command pdftools runs the toolkit operations on local files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-toolkit/internal/agent"
	"github.com/feichai0017/pdf-toolkit/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "pdftools",
	Short: "Convert, merge, split and compress PDF files",
	Long: `pdftools exposes the operations of the PDF toolkit web service on the
command line: images to PDF, PDF pages to PNG images, merge, split by page
range, compress and metadata inspection.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("output", "o", "", "output file (default: <operation>_<unix time> in the current directory)")
	rootCmd.PersistentFlags().Float64("dpi", 72, "render resolution for pdf2img")
	rootCmd.PersistentFlags().Int("workers", 4, "concurrent image decoders")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log to stderr")
}

// newToolkit builds a toolkit from the persistent flags.
func newToolkit(cmd *cobra.Command) (*agent.Toolkit, error) {
	dpi, _ := cmd.Flags().GetFloat64("dpi")
	workers, _ := cmd.Flags().GetInt("workers")
	verbose, _ := cmd.Flags().GetBool("verbose")

	log := logger.NewNop()
	if verbose {
		l, err := logger.NewLogger(
			logger.WithLevel("debug"),
			logger.WithEncoding("console"),
			logger.WithOutputPaths([]string{"stderr"}),
		)
		if err != nil {
			return nil, err
		}
		log = l
	}

	return agent.NewToolkit(log, &agent.Options{RenderDPI: dpi, MaxWorkers: workers})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
