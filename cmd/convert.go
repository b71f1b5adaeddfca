package main

import (
	"fmt"

	appconfig "github.com/fyerfyer/doc2pdf/config"
	"github.com/fyerfyer/doc2pdf/internal/converter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newConvertCmd 单文件转换命令
func newConvertCmd(root *rootOptions) *cobra.Command {
	var (
		fontSize    float64
		lineHeight  float64
		pageSize    string
		orientation string
		fontFile    string
	)

	cmd := &cobra.Command{
		Use:   "convert <source> <destination>",
		Short: "Convert a single document to PDF",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("font-size") {
				cfg.PDF.FontSize = fontSize
			}
			if flags.Changed("line-height") {
				cfg.PDF.LineHeight = lineHeight
			}
			if flags.Changed("page-size") {
				cfg.PDF.PageSize = pageSize
			}
			if flags.Changed("orientation") {
				cfg.PDF.Orientation = orientation
			}
			if flags.Changed("font-file") {
				cfg.PDF.FontFile = fontFile
			}
			if err := appconfig.Validate(cfg); err != nil {
				return err
			}

			conv := converter.New(
				converter.WithPDFConfig(cfg.PDF),
				converter.WithLogger(logger),
			)
			result, err := conv.Convert(args[0], args[1])
			if err != nil {
				logger.WithFields(logrus.Fields{
					"source":      args[0],
					"destination": args[1],
				}).WithError(err).Error("Conversion failed")
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d paragraphs, %d pages, %d bytes\n",
				args[1], result.Paragraphs, result.Pages, result.Bytes)
			return nil
		},
	}

	cmd.Flags().Float64Var(&fontSize, "font-size", 12, "Font size in points")
	cmd.Flags().Float64Var(&lineHeight, "line-height", 10, "Line height in page units")
	cmd.Flags().StringVar(&pageSize, "page-size", "A4", "Page size (A3/A4/A5/Letter/Legal)")
	cmd.Flags().StringVar(&orientation, "orientation", "P", "Page orientation (P/L)")
	cmd.Flags().StringVar(&fontFile, "font-file", "", "UTF-8 TrueType font file")
	return cmd
}
