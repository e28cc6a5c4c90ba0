package thumbnail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"clipforge/internal/blobstore"
	"clipforge/internal/config"
	"clipforge/internal/faults"
	"clipforge/internal/logging"
	"clipforge/internal/media"
	"clipforge/internal/textutil"
)

// Generator derives and publishes thumbnails.
type Generator struct {
	cfg      *config.Config
	toolkit  media.Toolkit
	store    *blobstore.Store
	uploader blobstore.Uploader
	logger   *slog.Logger
}

// NewGenerator constructs a thumbnail generator.
func NewGenerator(cfg *config.Config, toolkit media.Toolkit, store *blobstore.Store, uploader blobstore.Uploader, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		cfg:      cfg,
		toolkit:  toolkit,
		store:    store,
		uploader: uploader,
		logger:   logging.NewComponentLogger(logger, "thumbnail"),
	}
}

// FromVideo grabs a frame from the composed video, scales it to the
// thumbnail canvas, overlays the title when configured, and publishes
// the result. The returned URI is always usable: any failure falls back
// to the configured placeholder and the fault comes back alongside for
// logging.
func (g *Generator) FromVideo(ctx context.Context, jobID, videoPath, title string) (string, error) {
	framePath := g.store.TempPath(jobID, "frame.jpg")
	scaledPath := g.store.TempPath(jobID, "thumb.jpg")
	defer g.store.Cleanup(framePath, scaledPath)

	atSeconds := float64(g.cfg.Thumbnail.TimestampSeconds)
	if err := g.toolkit.ExtractFrame(ctx, videoPath, framePath, atSeconds); err != nil {
		return g.fallback(jobID, faults.ThumbnailFailed("extract frame", err))
	}
	if err := g.toolkit.Scale(ctx, framePath, scaledPath, g.cfg.Thumbnail.Width, g.cfg.Thumbnail.Height); err != nil {
		return g.fallback(jobID, faults.ThumbnailFailed("scale frame", err))
	}

	finalPath := scaledPath
	if g.cfg.Thumbnail.OverlayText && strings.TrimSpace(title) != "" {
		overlaidPath := g.store.TempPath(jobID, "thumb-titled.jpg")
		defer g.store.Cleanup(overlaidPath)
		err := g.toolkit.OverlayText(ctx, scaledPath, overlaidPath, media.TextOverlayOptions{
			Text:     textutil.DisplayTitle(title),
			Position: media.PositionBottom,
			BoxColor: "black@0.5",
		})
		if err != nil {
			return g.fallback(jobID, faults.ThumbnailFailed("overlay title", err))
		}
		finalPath = overlaidPath
	}

	uri, err := g.uploader.Upload(ctx, finalPath, jobID+"-thumbnail.jpg")
	if err != nil {
		return g.fallback(jobID, faults.ThumbnailFailed("publish thumbnail", err))
	}
	return uri, nil
}

// FromText renders a text card on a solid canvas for jobs without a
// usable frame, with the same placeholder fallback as FromVideo.
func (g *Generator) FromText(ctx context.Context, jobID, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return g.fallback(jobID, faults.ThumbnailFailed("no text for card", nil))
	}

	canvasPath := g.store.TempPath(jobID, "card.jpg")
	cardPath := g.store.TempPath(jobID, "card-text.jpg")
	defer g.store.Cleanup(canvasPath, cardPath)

	err := g.toolkit.RenderTextCanvas(ctx, canvasPath, media.CanvasOptions{
		Width:           g.cfg.Thumbnail.Width,
		Height:          g.cfg.Thumbnail.Height,
		BackgroundColor: "0x101418",
	})
	if err != nil {
		return g.fallback(jobID, faults.ThumbnailFailed("render canvas", err))
	}

	err = g.toolkit.OverlayText(ctx, canvasPath, cardPath, media.TextOverlayOptions{
		Text:     textutil.DisplayTitle(text),
		FontSize: 64,
		Position: media.PositionCenter,
	})
	if err != nil {
		return g.fallback(jobID, faults.ThumbnailFailed("render text", err))
	}

	uri, err := g.uploader.Upload(ctx, cardPath, jobID+"-thumbnail.jpg")
	if err != nil {
		return g.fallback(jobID, faults.ThumbnailFailed("publish thumbnail", err))
	}
	return uri, nil
}

func (g *Generator) fallback(jobID string, fault *faults.Error) (string, error) {
	g.logger.Warn("thumbnail derivation failed, using placeholder",
		logging.String(logging.FieldJobID, jobID),
		logging.Error(fault))
	placeholder := strings.TrimSpace(g.cfg.Thumbnail.PlaceholderURI)
	if placeholder == "" {
		placeholder = fmt.Sprintf("%s/placeholder-thumbnail.jpg", strings.TrimRight(g.cfg.Storage.BaseURL, "/"))
	}
	return placeholder, fault
}
