package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/middleware"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/service"
	"github.com/makeasinger/midiconv/internal/storage"
	"github.com/makeasinger/midiconv/pkg/response"
)

// DownloadHandler serves stored artifacts by token
type DownloadHandler struct {
	manager *service.StemJobManager
}

func NewDownloadHandler(manager *service.StemJobManager) *DownloadHandler {
	return &DownloadHandler{manager: manager}
}

// Download handles GET /api/download/:token
// @Summary      Download artifact
// @Description  Download an upload, stem or MIDI file as an attachment
// @Tags         Files
// @Produce      octet-stream
// @Param        token path string true "Download token"
// @Success      200 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/download/{token} [get]
func (h *DownloadHandler) Download(c *fiber.Ctx) error {
	path, tok, err := h.resolve(c)
	if err != nil {
		return response.FromError(c, err)
	}
	return c.Download(path, tok.Filename)
}

// Stream handles GET /api/stream/:token
// @Summary      Stream stem
// @Description  Serve a stem inline with range support for playback
// @Tags         Files
// @Produce      audio/wav
// @Param        token path string true "Stem token"
// @Success      200 {file} binary
// @Success      206 {file} binary
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/stream/{token} [get]
func (h *DownloadHandler) Stream(c *fiber.Ctx) error {
	path, tok, err := h.resolve(c)
	if err != nil {
		return response.FromError(c, err)
	}
	if tok.Category != model.CategoryStems {
		return response.ValidationError(c, "Only stems can be streamed", nil)
	}
	return c.SendFile(path)
}

func (h *DownloadHandler) resolve(c *fiber.Ctx) (string, storage.Token, error) {
	path, tok, err := h.manager.Resolve(c.Context(), c.Params("token"))
	if err != nil {
		return "", storage.Token{}, err
	}
	job, err := h.manager.Get(c.Context(), tok.JobID)
	if err != nil {
		return "", storage.Token{}, err
	}
	if !visible(job, middleware.GetTenant(c)) {
		return "", storage.Token{}, apperr.NotFound("file %s not found", tok.Filename)
	}
	return path, tok, nil
}
