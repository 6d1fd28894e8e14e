package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/tadbeer/helpdesk/internal/api/dto"
	"github.com/tadbeer/helpdesk/internal/service"
)

// DepartmentsHandler manages departments.
type DepartmentsHandler struct {
	departments *service.DepartmentService
}

// NewDepartmentsHandler constructs handler.
func NewDepartmentsHandler(departments *service.DepartmentService) *DepartmentsHandler {
	return &DepartmentsHandler{departments: departments}
}

// List GET /api/departments.
func (h *DepartmentsHandler) List(c *fiber.Ctx) error {
	list, err := h.departments.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.NewDepartmentList(list))
}

// Get GET /api/departments/:id.
func (h *DepartmentsHandler) Get(c *fiber.Ctx) error {
	dept, err := h.departments.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewDepartmentResponse(dept))
}

// Create POST /api/departments.
func (h *DepartmentsHandler) Create(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.DepartmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dept, err := h.departments.Create(c.UserContext(), caller, departmentInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.NewDepartmentResponse(dept))
}

// Update PUT /api/departments/:id.
func (h *DepartmentsHandler) Update(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.DepartmentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	dept, err := h.departments.Update(c.UserContext(), caller, c.Params("id"), departmentInput(req))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewDepartmentResponse(dept))
}

// Delete DELETE /api/departments/:id.
func (h *DepartmentsHandler) Delete(c *fiber.Ctx) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.departments.Delete(c.UserContext(), caller, c.Params("id")); err != nil {
		return err
	}
	return message(c, "department deleted")
}

func departmentInput(req dto.DepartmentRequest) service.DepartmentInput {
	return service.DepartmentInput{Name: req.Name, Description: req.Description, ManagerID: req.ManagerID}
}
