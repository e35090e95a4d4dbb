package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/middleware"
	"github.com/makeasinger/midiconv/internal/model"
	"github.com/makeasinger/midiconv/internal/service"
	"github.com/makeasinger/midiconv/pkg/response"
)

type JobHandler struct {
	manager    *service.StemJobManager
	dispatcher service.Dispatcher
	validator  *validator.Validate
}

func NewJobHandler(manager *service.StemJobManager, dispatcher service.Dispatcher, v *validator.Validate) *JobHandler {
	return &JobHandler{
		manager:    manager,
		dispatcher: dispatcher,
		validator:  v,
	}
}

// Separate handles POST /api/separate
// @Summary      Upload audio for stem separation
// @Description  Store an audio file and queue it for separation into stems
// @Tags         Jobs
// @Accept       multipart/form-data
// @Produce      json
// @Param        file          formData file   true  "Audio file (mp3, wav, flac, ogg)"
// @Param        retainUploads formData bool   false "Keep the upload after separation"
// @Param        retainStems   formData bool   false "Keep the stems after conversion"
// @Success      202 {object} model.SeparateResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/separate [post]
func (h *JobHandler) Separate(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	retainUploads, err := formBool(c, "retainUploads")
	if err != nil {
		return response.ValidationError(c, "retainUploads must be a boolean", nil)
	}
	retainStems, err := formBool(c, "retainStems")
	if err != nil {
		return response.ValidationError(c, "retainStems must be a boolean", nil)
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}
	defer f.Close()

	job, err := h.manager.Upload(c.Context(), service.UploadInput{
		TenantID:      middleware.GetTenant(c),
		Filename:      file.Filename,
		Size:          file.Size,
		Body:          f,
		RetainUploads: retainUploads,
		RetainStems:   retainStems,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	if err := h.dispatcher.DispatchSeparate(c.Context(), job.ID); err != nil {
		return response.ServiceError(c, "Failed to queue separation")
	}

	return response.Accepted(c, model.SeparateResponse{
		JobID:     job.ID,
		Status:    job.Status,
		Filename:  job.Upload.Filename,
		Size:      job.Upload.Size,
		CreatedAt: job.CreatedAt,
	})
}

// Convert handles POST /api/convert-to-midi
// @Summary      Convert stems to MIDI
// @Description  Queue conversion of the selected stems into one multi-track MIDI file. Returns 200 when the existing artifact already matches.
// @Tags         Jobs
// @Accept       json
// @Produce      json
// @Param        request body model.ConvertRequest true "Conversion request"
// @Success      200 {object} model.ConvertResponse
// @Success      202 {object} model.ConvertResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/convert-to-midi [post]
func (h *JobHandler) Convert(c *fiber.Ctx) error {
	var req model.ConvertRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if _, err := h.ownedJob(c, req.JobID); err != nil {
		return response.FromError(c, err)
	}

	opts := service.ConvertOptions{StemNames: req.StemNames, Force: req.Force}
	if req.Config != nil {
		cfg := req.Config.Apply(h.manager.Defaults)
		opts.Config = &cfg
	}

	cached, err := h.manager.ClaimConvert(c.Context(), req.JobID, opts)
	if err != nil {
		return response.FromError(c, err)
	}
	if cached != nil {
		artifact := cached.Artifact
		return response.OK(c, model.ConvertResponse{
			JobID:     req.JobID,
			Status:    model.JobStatusConverted,
			StemNames: cached.StemNames,
			Cached:    true,
			Artifact:  &artifact,
		})
	}

	if err := h.dispatcher.DispatchConvert(c.Context(), req.JobID, opts); err != nil {
		h.manager.ReleaseConvert(c.Context(), req.JobID)
		return response.ServiceError(c, "Failed to queue conversion")
	}

	job, err := h.manager.Get(c.Context(), req.JobID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Accepted(c, model.ConvertResponse{
		JobID:     req.JobID,
		Status:    job.Status,
		StemNames: req.StemNames,
		Artifact:  job.MidiArtifact,
	})
}

// Status handles GET /api/jobs/:jobId
// @Summary      Get job status
// @Description  Get the status, progress, stems and MIDI artifact of a job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId} [get]
func (h *JobHandler) Status(c *fiber.Ctx) error {
	job, err := h.ownedJob(c, c.Params("jobId"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, statusResponse(job))
}

// Reset handles POST /api/jobs/:jobId/reset
// @Summary      Reset job
// @Description  Move a job back to uploaded or separated, deleting later artifacts
// @Tags         Jobs
// @Accept       json
// @Produce      json
// @Param        jobId   path string             true "Job ID"
// @Param        request body model.ResetRequest true "Target status"
// @Success      200 {object} model.JobStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/reset [post]
func (h *JobHandler) Reset(c *fiber.Ctx) error {
	var req model.ResetRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID := c.Params("jobId")
	if _, err := h.ownedJob(c, jobID); err != nil {
		return response.FromError(c, err)
	}
	job, err := h.manager.Reset(c.Context(), jobID, req.To)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OK(c, statusResponse(job))
}

// Delete handles DELETE /api/jobs/:jobId
// @Summary      Delete job
// @Description  Delete a job and all of its artifacts
// @Tags         Jobs
// @Param        jobId path string true "Job ID"
// @Success      204
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId} [delete]
func (h *JobHandler) Delete(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if _, err := h.ownedJob(c, jobID); err != nil {
		return response.FromError(c, err)
	}
	if err := h.manager.Delete(c.Context(), jobID); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}

// ownedJob loads a job visible to the caller. Jobs of other tenants are
// reported as missing.
func (h *JobHandler) ownedJob(c *fiber.Ctx, jobID string) (*model.Job, error) {
	if jobID == "" {
		return nil, apperr.Validation("Job ID is required")
	}
	job, err := h.manager.Get(c.Context(), jobID)
	if err != nil {
		return nil, err
	}
	if !visible(job, middleware.GetTenant(c)) {
		return nil, apperr.NotFound("job %s not found", jobID)
	}
	return job, nil
}

func visible(job *model.Job, tenant string) bool {
	return job.TenantID == "" || job.TenantID == tenant
}

func statusResponse(job *model.Job) model.JobStatusResponse {
	return model.JobStatusResponse{
		JobID:        job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		Error:        job.Error,
		Stems:        job.Stems,
		MidiArtifact: job.MidiArtifact,
		Result:       job.Result,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

// formBool parses an optional boolean form field
func formBool(c *fiber.Ctx, key string) (*bool, error) {
	v := c.FormValue(key)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
