package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/creative"
)

func (r *root) newCreativeCmd() *cobra.Command {
	var (
		brief   creative.Brief
		image   string
		noImage bool
		out     string
	)
	cmd := &cobra.Command{
		Use:   "creative",
		Short: "Generate ad copy and an ad image for a product",
		Long: `Generate marketing copy and, unless --no-image is given, an ad image.
A product photo passed with --image guides both. Copy and image are produced
independently: one may fail while the other is still printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := r.load(cmd)
			if err != nil {
				return err
			}
			brief.IncludeImage = !noImage
			if image != "" {
				enc, err := s.Encoder.For(analysis.KindCreativeGenerate)
				if err != nil {
					return err
				}
				p, err := enc.EncodeFile(cmd.Context(), image)
				if err != nil {
					return err
				}
				brief.ProductImage = &p
			}

			c, err := spin(cmd, "Generating campaign...", func() (creative.Campaign, error) {
				return s.Creative.Generate(cmd.Context(), brief)
			})
			if err != nil {
				return err
			}
			if c.Image != nil && out != "" {
				if err := os.WriteFile(out, c.Image.Data, 0o644); err != nil {
					return fmt.Errorf("write image: %w", err)
				}
			}

			w := cmd.OutOrStdout()
			if ok, err := emit(w, r.output, c); ok {
				return err
			}
			fmt.Fprintln(w)
			headerColor.Fprintf(w, "%s for %s\n", c.Product, c.Audience)
			if c.HasCopy {
				fmt.Fprintln(w, c.Copy)
			} else {
				printError(w, "copy failed: "+c.CopyErr)
			}
			switch {
			case c.Image != nil && out != "":
				printSuccess(w, fmt.Sprintf("image saved to %s (%s, %d bytes)", out, c.Image.MIMEType, c.Image.Size()))
			case c.Image != nil:
				mutedColor.Fprintln(w, "image generated, pass --out to save it")
			case c.ImageErr != "":
				printError(w, "image failed: "+c.ImageErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&brief.ProductName, "product", "", "Product name")
	cmd.Flags().StringVar(&brief.Audience, "audience", "", "Target audience")
	cmd.Flags().StringVar(&image, "image", "", "Optional product photo")
	cmd.Flags().BoolVar(&noImage, "no-image", false, "Skip image generation")
	cmd.Flags().StringVar(&out, "out", "", "Write the generated image to this file")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("audience")
	return cmd
}
