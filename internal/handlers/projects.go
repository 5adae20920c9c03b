package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"image-transform-backend/internal/models"
	"image-transform-backend/internal/services"
)

const maxImageBytes = 10 << 20

type ProjectsHandler struct {
	coordinator *services.Coordinator
}

func NewProjectsHandler(coordinator *services.Coordinator) *ProjectsHandler {
	return &ProjectsHandler{coordinator: coordinator}
}

// CreateProject godoc
// @Summary     Create a project
// @Description Uploads the source image and creates a project awaiting payment
// @Tags        projects
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       file   formData file   true  "Source image"
// @Param       prompt formData string false "Transformation prompt"
// @Success     200 {object} models.CreateProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes+1<<20)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		invalidInput(c, "image file is required")
		return
	}
	if fileHeader.Size > maxImageBytes {
		invalidInput(c, "image file is too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		invalidInput(c, "failed to read image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		invalidInput(c, "failed to read image file")
		return
	}

	project, err := h.coordinator.CreateProject(c.Request.Context(), identity, services.NewProject{
		Image:       data,
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Prompt:      c.PostForm("prompt"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CreateProjectResponse{
		ProjectID: project.ID.String(),
		Message:   "project created",
	})
}

// ListProjects godoc
// @Summary     List projects
// @Description Returns the caller's projects, newest first
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Failure     401 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	projects, err := h.coordinator.ListProjects(c.Request.Context(), identity)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := models.ProjectListResponse{Projects: make([]models.ProjectResponse, len(projects))}
	for i := range projects {
		resp.Projects[i] = models.NewProjectResponse(&projects[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProjectsHandler) GetProject(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	project, err := h.coordinator.GetProject(c.Request.Context(), identity, projectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewProjectResponse(project))
}

// DeleteProject godoc
// @Summary     Delete a project
// @Description Deletes the project and its stored images
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID"
// @Success     200 {object} models.DeleteResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}
	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	if err := h.coordinator.DeleteProject(c.Request.Context(), identity, projectID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{Success: true})
}
