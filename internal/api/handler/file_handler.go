package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/ports"
)

type FileHandler struct {
	store ports.FileStore
	log   zerolog.Logger
}

func NewFileHandler(store ports.FileStore, log zerolog.Logger) *FileHandler {
	return &FileHandler{store: store, log: log}
}

// Upload handles POST /upload.
//
// @Summary      Upload an attachment
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "Attachment"
// @Success      200   {object}  uploadResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      413   {object}  errorResponse
// @Router       /upload [post]
func (h *FileHandler) Upload(c echo.Context) error {
	caller, err := ctxUser(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer src.Close()

	h.log.Info().Int64("user_id", caller.ID).Str("original_name", fh.Filename).Msg("file upload requested")
	name, err := h.store.Save(c.Request().Context(), fh.Filename, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, uploadResponse{Filename: name, Message: "file uploaded successfully"})
}

// Download handles GET /files/:filename.
//
// @Summary      Download an attachment
// @Tags         files
// @Produce      octet-stream
// @Param        filename  path  string  true  "Stored file name"
// @Success      200
// @Failure      404  {object}  errorResponse
// @Router       /files/{filename} [get]
func (h *FileHandler) Download(c echo.Context) error {
	path, err := h.store.Path(c.Param("filename"))
	if err != nil {
		return err
	}
	return c.File(path)
}
