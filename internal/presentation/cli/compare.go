package cli

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"photo-studio/internal/application"
	"photo-studio/internal/domain"
	"photo-studio/internal/infrastructure/render"
)

func (c *CLI) newCompareCommand() *cobra.Command {
	var (
		position    float64
		zoom        float64
		width       int
		height      int
		format      string
		quality     int
		output      string
		beforeLabel string
		afterLabel  string
	)

	cmd := &cobra.Command{
		Use:   "compare <before> <after>",
		Short: "Render a before/after comparison into an image",
		Long: `Loads two JPG or PNG images (up to 10MB each) and renders them the way the
comparison slider shows them: the "after" image on the left of the divider,
the "before" image on the right.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := domain.UploadPolicy{MaxBytes: c.config.Upload.MaxBytes, AllowedTypes: c.config.Upload.AllowedTypes}

			before, err := loadImage(policy, args[0])
			if err != nil {
				return err
			}
			after, err := loadImage(policy, args[1])
			if err != nil {
				return err
			}

			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			slider := application.NewComparisonSlider(before, after,
				application.WithInitialPosition(position),
				application.WithZoom(zoom),
			)

			img, err := render.NewCompositor().WithLabels(beforeLabel, afterLabel).WithHighQuality().
				Render(slider.View(), width, height)
			if err != nil {
				return err
			}
			handle, err := render.Export(img, render.ExportOptions{Format: f, Quality: quality})
			if err != nil {
				return err
			}

			if output == "" {
				output = render.FileName("comparison", f, time.Now())
			}
			if err := os.WriteFile(output, handle.Bytes(), 0o644); err != nil {
				return fmt.Errorf("сохранение результата: %w", err)
			}

			c.logger.Debug("Сравнение %s / %s отрисовано в %s", args[0], args[1], output)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%dx%d, %s)\n", output, handle.Width(), handle.Height(), handle.MIMEType())
			return nil
		},
	}

	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		// Значения по умолчанию берутся из конфигурации, если флаг не задан
		if !cmd.Flags().Changed("position") {
			position = c.config.Slider.InitialPosition
		}
		if !cmd.Flags().Changed("zoom") {
			zoom = c.config.Slider.Zoom
		}
		if !cmd.Flags().Changed("width") {
			width = c.config.Slider.RenderWidth
		}
		if !cmd.Flags().Changed("height") {
			height = c.config.Slider.RenderHeight
		}
		if !cmd.Flags().Changed("format") {
			format = c.config.Export.Format
		}
		if !cmd.Flags().Changed("quality") {
			quality = c.config.Export.Quality
		}
		if !cmd.Flags().Changed("before-label") {
			beforeLabel = c.config.Slider.BeforeLabel
		}
		if !cmd.Flags().Changed("after-label") {
			afterLabel = c.config.Slider.AfterLabel
		}
	}

	cmd.Flags().Float64Var(&position, "position", domain.DefaultPosition, "позиция разделителя, 0..100")
	cmd.Flags().Float64Var(&zoom, "zoom", domain.DefaultZoom, "масштаб в процентах, 50..200")
	cmd.Flags().IntVar(&width, "width", 1280, "ширина результата")
	cmd.Flags().IntVar(&height, "height", 720, "высота результата")
	cmd.Flags().StringVar(&format, "format", "jpg", "формат: jpg или png")
	cmd.Flags().IntVar(&quality, "quality", render.DefaultExportQuality, "качество JPG, 60..100")
	cmd.Flags().StringVarP(&output, "output", "o", "", "файл результата (по умолчанию comparison-<ms>.<format>)")
	cmd.Flags().StringVar(&beforeLabel, "before-label", "Before", "подпись исходного изображения, пустая строка отключает")
	cmd.Flags().StringVar(&afterLabel, "after-label", "After", "подпись результата, пустая строка отключает")
	return cmd
}

// loadImage читает файл и проверяет его так же, как загрузку через браузер
func loadImage(policy domain.UploadPolicy, path string) (domain.ImageHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.ImageHandle{}, err
	}
	if policy.MaxBytes > 0 && info.Size() > policy.MaxBytes {
		return domain.ImageHandle{}, fmt.Errorf("%s: %s: %w", path, domain.UserMessage(domain.ErrImageTooLarge), domain.ErrImageTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ImageHandle{}, err
	}
	mimeType, _, _ := strings.Cut(http.DetectContentType(data), ";")

	handle, err := policy.DecodeUpload(mimeType, data)
	if err != nil {
		return domain.ImageHandle{}, fmt.Errorf("%s: %s: %w", path, domain.UserMessage(err), err)
	}
	return handle, nil
}
