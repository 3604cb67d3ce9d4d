// Package lama calls a locally hosted LaMa inpainting server.
package lama

import (
	"context"
	"encoding/base64"
	"fmt"

	"bananaslides/internal/config"
	"bananaslides/internal/provider"
)

// Inpainter implements port.Inpainter. Requests share the process-wide local backend lock.
type Inpainter struct {
	http *provider.Client
}

// NewInpainter creates a local inpaint client.
func NewInpainter(cfg *config.EndpointConfig) *Inpainter {
	return &Inpainter{http: provider.NewLocalClient("local-inpaint", cfg)}
}

func (p *Inpainter) Name() string { return p.http.Name() }

type inpaintRequest struct {
	Image string `json:"image_base64"`
	Mask  string `json:"mask_base64"`
}

type inpaintResponse struct {
	Image string `json:"image_base64"`
}

func (p *Inpainter) Inpaint(ctx context.Context, img, mask []byte) ([]byte, error) {
	var resp inpaintResponse
	err := p.http.PostJSON(ctx, "/inpaint", inpaintRequest{
		Image: base64.StdEncoding.EncodeToString(img),
		Mask:  base64.StdEncoding.EncodeToString(mask),
	}, &resp)
	if err != nil {
		return nil, err
	}
	out, err := base64.StdEncoding.DecodeString(resp.Image)
	if err != nil {
		return nil, fmt.Errorf("decoding local inpaint image: %w", err)
	}
	return out, nil
}
