package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/issuetracker/issues-api/internal/core/ports"
)

// IssueHandler handles HTTP requests for issue operations. Role checks and
// reporter scoping happen in the service.
type IssueHandler struct {
	service ports.IssueService
}

func NewIssueHandler(service ports.IssueService) *IssueHandler {
	return &IssueHandler{service: service}
}

// Create handles POST /issues.
//
// @Summary      File an issue
// @Tags         issues
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createIssueRequest  true  "Issue"
// @Success      201   {object}  issueResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /issues [post]
func (h *IssueHandler) Create(c echo.Context) error {
	caller, err := ctxUser(c)
	if err != nil {
		return err
	}
	var req createIssueRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issue, err := h.service.CreateIssue(c.Request().Context(), caller, ports.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		Status:      req.Status,
		FilePath:    req.FilePath,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toIssueResponse(issue))
}

// List handles GET /issues.
//
// @Summary      List issues
// @Description  Reporters only see their own issues.
// @Tags         issues
// @Produce      json
// @Security     BearerAuth
// @Param        skip   query     int  false  "Offset"     default(0)
// @Param        limit  query     int  false  "Page size"  default(100)
// @Success      200    {array}   issueResponse
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Router       /issues [get]
func (h *IssueHandler) List(c echo.Context) error {
	caller, err := ctxUser(c)
	if err != nil {
		return err
	}
	var q listIssuesQuery
	if err := bindAndValidate(c, &q); err != nil {
		return err
	}

	issues, err := h.service.ListIssues(c.Request().Context(), caller, ports.ListIssuesInput{Skip: q.Skip, Limit: q.Limit})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIssueResponses(issues))
}

// Get handles GET /issues/:id.
//
// @Summary      Get an issue
// @Tags         issues
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Issue id"
// @Success      200  {object}  issueResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /issues/{id} [get]
func (h *IssueHandler) Get(c echo.Context) error {
	caller, err := ctxUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	issue, err := h.service.GetIssue(c.Request().Context(), caller, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIssueResponse(issue))
}

// Update handles PUT /issues/:id.
//
// @Summary      Update an issue
// @Tags         issues
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                 true  "Issue id"
// @Param        body  body      updateIssueRequest  true  "Fields to change"
// @Success      200   {object}  issueResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Router       /issues/{id} [put]
func (h *IssueHandler) Update(c echo.Context) error {
	caller, err := ctxUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateIssueRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	issue, err := h.service.UpdateIssue(c.Request().Context(), caller, id, req.toUpdate())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toIssueResponse(issue))
}

// Delete handles DELETE /issues/:id.
//
// @Summary      Delete an issue
// @Tags         issues
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Issue id"
// @Success      200  {object}  deleteResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /issues/{id} [delete]
func (h *IssueHandler) Delete(c echo.Context) error {
	caller, err := ctxUser(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}

	if err := h.service.DeleteIssue(c.Request().Context(), caller, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, deleteResponse{OK: true})
}
