// Package generative repaints masked regions with an image generation model.
package generative

import (
	"context"
	"fmt"

	"bananaslides/internal/config"
	"bananaslides/internal/gemini"
)

const prompt = "The second image is a mask. Remove everything inside the white area of the mask from the first image " +
	"and repaint that area so it continues the surrounding background seamlessly. Do not add text, logos or new objects. " +
	"Keep every pixel outside the mask unchanged and return an image with exactly the same dimensions."

// Inpainter implements port.Inpainter over the generateContent API.
type Inpainter struct {
	client *gemini.Client
}

// NewInpainter creates a generative inpainter.
func NewInpainter(cfg *config.EndpointConfig) *Inpainter {
	return &Inpainter{client: gemini.NewClient(cfg, "gemini-2.5-flash-image")}
}

func (p *Inpainter) Name() string { return "generative:" + p.client.Model() }

func (p *Inpainter) Inpaint(ctx context.Context, img, mask []byte) ([]byte, error) {
	out, err := p.client.Generate(ctx, []gemini.Part{
		gemini.ImagePart(img),
		gemini.ImagePart(mask),
		gemini.TextPart(prompt),
	}, "", []string{"IMAGE"})
	if err != nil {
		return nil, err
	}
	if len(out.Images) == 0 {
		return nil, fmt.Errorf("%w: model returned no image", gemini.ErrNoContent)
	}
	return out.Images[0], nil
}
