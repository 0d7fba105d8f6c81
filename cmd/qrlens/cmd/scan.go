package cmd

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/qrlens/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"

	dataURIPrefix = "data:image/png;base64,"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Detect and decode QR codes in image files",
	Long: `Scan one or more image files for QR codes and print the decoded content.

When the plain decode attempt fails, the image is retried through the full
enhancement catalog before the symbol is reported as absent.

Supported formats: JPEG, PNG, GIF, BMP, TIFF, WebP

Examples:
  qrlens scan photo.jpg
  qrlens scan *.png --format json
  qrlens scan receipt.jpg --multi --save-region ./regions`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		format := cfg.Output.Format
		if cmd.Flags().Changed("format") {
			format, _ = cmd.Flags().GetString("format")
		}
		if format != outputFormatJSON && format != outputFormatText {
			return fmt.Errorf("invalid output format: %s (must be one of: json, text)", format)
		}

		multi, _ := cmd.Flags().GetBool("multi")
		outputFile, _ := cmd.Flags().GetString("output")
		regionDir, _ := cmd.Flags().GetString("save-region")

		pl := pipeline.NewBuilder().
			WithRegionPadding(cfg.Pipeline.RegionPadding).
			Build()

		var outputs []string
		for _, pth := range args {
			var (
				entry string
				err   error
			)
			if multi {
				entry, err = scanMulti(pl, pth, format, regionDir)
			} else {
				entry, err = scanSingle(pl, pth, format, regionDir)
			}
			if err != nil {
				return fmt.Errorf("scan failed for %s: %w", pth, err)
			}
			outputs = append(outputs, entry)
		}

		final := strings.Join(outputs, "\n")
		if outputFile != "" {
			if err := os.WriteFile(outputFile, []byte(final+"\n"), 0o600); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile); err != nil {
				return err
			}
			return nil
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), final); err != nil {
			return fmt.Errorf("failed to write final output: %w", err)
		}
		return nil
	},
}

func scanSingle(pl *pipeline.Pipeline, path, format, regionDir string) (string, error) {
	res, err := pl.DetectAndDecodeInput(path)
	if err != nil {
		return "", err
	}

	if regionDir != "" && res.QRCodeImage != "" {
		if err := saveRegion(regionDir, path, 0, res.QRCodeImage); err != nil {
			return "", err
		}
	}

	if format == outputFormatJSON {
		obj := struct {
			File   string                 `json:"file"`
			Result *pipeline.DecodeResult `json:"result"`
		}{File: path, Result: res}
		bts, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(bts), nil
	}

	if !res.Detected {
		return fmt.Sprintf("%s: no QR code found (%d attempts)", path, res.Attempts), nil
	}
	return fmt.Sprintf("%s: %s (strategy %s, %d attempts)", path, *res.Data, res.Strategy, res.Attempts), nil
}

func scanMulti(pl *pipeline.Pipeline, path, format, regionDir string) (string, error) {
	res, err := pl.DetectAndDecodeMultipleInput(path)
	if err != nil {
		return "", err
	}

	if regionDir != "" {
		for i, code := range res.QRCodes {
			if code.QRCodeImage == "" {
				continue
			}
			if err := saveRegion(regionDir, path, i, code.QRCodeImage); err != nil {
				return "", err
			}
		}
	}

	if format == outputFormatJSON {
		obj := struct {
			File   string                `json:"file"`
			Result *pipeline.MultiResult `json:"result"`
		}{File: path, Result: res}
		bts, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(bts), nil
	}

	if !res.Detected {
		return fmt.Sprintf("%s: no QR code found (%d attempts)", path, res.Attempts), nil
	}
	lines := make([]string, 0, len(res.QRCodes)+1)
	lines = append(lines, fmt.Sprintf("%s: %d QR code(s) (strategy %s, %d attempts)",
		path, res.Count, res.Strategy, res.Attempts))
	for i, code := range res.QRCodes {
		lines = append(lines, fmt.Sprintf("  [%d] %s", i, code.Data))
	}
	return strings.Join(lines, "\n"), nil
}

// saveRegion decodes a region data URI and writes it next to the source
// file's base name in dir.
func saveRegion(dir, srcPath string, index int, uri string) error {
	payload, ok := strings.CutPrefix(uri, dataURIPrefix)
	if !ok {
		return fmt.Errorf("unexpected region encoding for %s", srcPath)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return fmt.Errorf("failed to decode region image: %w", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create region directory: %w", err)
	}
	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	outPath := filepath.Join(dir, fmt.Sprintf("%s_qr%d.png", base, index))
	if err := os.WriteFile(outPath, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write region image: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("format", "f", "json", "output format (json, text)")
	scanCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	scanCmd.Flags().Bool("multi", false, "report results in the multi-symbol shape")
	scanCmd.Flags().String("save-region", "", "directory to write extracted symbol crops")

	_ = viper.BindPFlag("output.format", scanCmd.Flags().Lookup("format"))
}

// GetScanCommand returns the scan command for testing purposes.
func GetScanCommand() *cobra.Command {
	return scanCmd
}
