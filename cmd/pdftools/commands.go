package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/feichai0017/pdf-toolkit/internal/models"
)

var img2pdfCmd = &cobra.Command{
	Use:   "img2pdf IMAGE...",
	Short: "Combine images into a PDF, one page per image",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, models.OpImagesToPDF, args, nil, "")
	},
}

var pdf2imgCmd = &cobra.Command{
	Use:   "pdf2img PDF",
	Short: "Render a page range to PNG images packed in a zip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := rangeFlags(cmd)
		if err != nil {
			return err
		}
		return runOperation(cmd, models.OpPDFToImages, args, &rng, "")
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge PDF...",
	Short: "Concatenate PDFs in argument order",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOperation(cmd, models.OpMergePDF, args, nil, "")
	},
}

var splitCmd = &cobra.Command{
	Use:   "split PDF",
	Short: "Extract a page range into a new PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rng, err := rangeFlags(cmd)
		if err != nil {
			return err
		}
		return runOperation(cmd, models.OpSplitPDF, args, &rng, "")
	},
}

var compressCmd = &cobra.Command{
	Use:   "compress PDF",
	Short: "Optimize a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("level")
		return runOperation(cmd, models.OpCompressPDF, args, nil, level)
	},
}

var infoCmd = &cobra.Command{
	Use:   "info PDF",
	Short: "Print document metadata as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolkit, err := newToolkit(cmd)
		if err != nil {
			return err
		}
		defer toolkit.Close()

		metadata, err := toolkit.Metadata(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(metadata)
	},
}

func init() {
	for _, c := range []*cobra.Command{pdf2imgCmd, splitCmd} {
		c.Flags().String("start", "", "first page, 1-based")
		c.Flags().String("end", "", "last page, inclusive")
		c.MarkFlagRequired("start")
		c.MarkFlagRequired("end")
	}
	compressCmd.Flags().String("level", "high", "compression level: low, medium or high")

	rootCmd.AddCommand(img2pdfCmd, pdf2imgCmd, mergeCmd, splitCmd, compressCmd, infoCmd)
}

func rangeFlags(cmd *cobra.Command) (models.PageRange, error) {
	start, _ := cmd.Flags().GetString("start")
	end, _ := cmd.Flags().GetString("end")
	return models.ParsePageRange(start, end)
}

func runOperation(cmd *cobra.Command, op models.Operation, inputs []string, rng *models.PageRange, level string) error {
	toolkit, err := newToolkit(cmd)
	if err != nil {
		return err
	}
	defer toolkit.Close()

	job := &models.ConversionJob{
		Operation: op,
		Range:     rng,
		Level:     models.ParseCompressionLevel(level),
		CreatedAt: time.Now(),
	}
	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil {
			return err
		}
		job.Inputs = append(job.Inputs, models.UploadedFile{Filename: info.Name(), Path: in, Size: info.Size()})
	}

	out, _ := cmd.Flags().GetString("output")
	if out == "" {
		out = fmt.Sprintf("%s_%d%s", op.OutputPrefix(), job.CreatedAt.Unix(), op.OutputExt())
	}

	workDir, err := os.MkdirTemp("", "pdftools-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)

	pages, err := toolkit.Run(cmd.Context(), job, workDir, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d pages)\n", out, pages)
	return nil
}
