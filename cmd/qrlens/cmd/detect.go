package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/qrlens/internal/pipeline"
	"github.com/spf13/cobra"
)

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Check images for the presence of a QR code",
	Long: `Check one or more image files for the presence of a QR code without
decoding its content. Only the fast leading enhancement strategies are tried,
so this is cheaper than a full scan.

Examples:
  qrlens detect photo.jpg
  qrlens detect *.png --format text`,
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

		pl := pipeline.NewBuilder().
			WithRegionPadding(cfg.Pipeline.RegionPadding).
			Build()

		for _, pth := range args {
			res, err := pl.HasQRCodeInput(pth)
			if err != nil {
				return fmt.Errorf("detect failed for %s: %w", pth, err)
			}

			if format == outputFormatJSON {
				obj := struct {
					File   string                 `json:"file"`
					Result *pipeline.DetectResult `json:"result"`
				}{File: pth, Result: res}
				bts, err := json.MarshalIndent(obj, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal JSON: %w", err)
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(bts)); err != nil {
					return err
				}
				continue
			}

			if res.HasQRCode {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: QR code present (strategy %s, %d attempts)\n",
					pth, res.Strategy, res.Attempts)
			} else {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: no QR code (%d attempts)\n", pth, res.Attempts)
			}
			if err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringP("format", "f", "json", "output format (json, text)")
}

// GetDetectCommand returns the detect command for testing purposes.
func GetDetectCommand() *cobra.Command {
	return detectCmd
}
