package api

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"user-service/internal/entity"
	"user-service/internal/service"
)

type UserHandler struct {
	userService service.UserService
}

// NewUserHandler creates a new instance of UserHandler
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// userRequest is the writable subset of a user. id and created_date are
// output-only; unknown keys in the payload are dropped by the decoder.
type userRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// userResponse is the wire projection of a stored user.
type userResponse struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	CreatedDate string `json:"created_date"`
}

func marshalUser(user *entity.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Username:    user.Username,
		Email:       user.Email,
		CreatedDate: user.CreatedDate.Format(time.RFC3339),
	}
}

// bindUserRequest decodes and validates a write payload: username and email
// must be present, non-empty strings. No email format check is done.
func bindUserRequest(c echo.Context) (*userRequest, string) {
	req := &userRequest{}
	if err := c.Bind(req); err != nil {
		return nil, "Invalid request payload"
	}
	if req.Username == "" {
		return nil, "username is required"
	}
	if req.Email == "" {
		return nil, "email is required"
	}
	return req, ""
}

// CreateUser creates a new user --> POST /users
func (h *UserHandler) CreateUser(c echo.Context) error {
	req, msg := bindUserRequest(c)
	if req == nil {
		return c.JSON(400, map[string]string{"message": msg})
	}

	user := &entity.User{Username: req.Username, Email: req.Email}
	_, err := h.userService.CreateUser(c.Request().Context(), user)
	if err != nil {
		if errors.Is(err, entity.ErrDuplicateEmail) {
			return c.JSON(400, map[string]string{"message": "This email already exists."})
		}
		return c.JSON(500, map[string]string{"message": err.Error()})
	}

	return c.JSON(201, map[string]string{"message": fmt.Sprintf("%s was added!", user.Email)})
}

// ListUsers lists all users --> GET /users
func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.userService.ListUsers(c.Request().Context())
	if err != nil {
		return c.JSON(500, map[string]string{"message": err.Error()})
	}

	response := make([]userResponse, 0, len(users))
	for i := range users {
		response = append(response, marshalUser(&users[i]))
	}

	return c.JSON(200, response)
}

// GetUserByID retrieves a user by ID --> GET /users/:id
func (h *UserHandler) GetUserByID(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(400, map[string]string{"message": "Invalid ID"})
	}

	user, err := h.userService.GetUserByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrUserNotFound) {
			return c.JSON(404, map[string]string{"message": fmt.Sprintf("User %d does not exist", id)})
		}
		return c.JSON(500, map[string]string{"message": err.Error()})
	}

	return c.JSON(200, marshalUser(user))
}

// UpdateUser overwrites username and email of a user --> PUT /users/:id
func (h *UserHandler) UpdateUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(400, map[string]string{"message": "Invalid ID"})
	}

	req, msg := bindUserRequest(c)
	if req == nil {
		return c.JSON(400, map[string]string{"message": msg})
	}

	_, err = h.userService.UpdateUser(c.Request().Context(), id, req.Username, req.Email)
	if err != nil {
		if errors.Is(err, entity.ErrUserNotFound) {
			return c.JSON(404, map[string]string{"message": fmt.Sprintf("User %d does not exist", id)})
		}
		if errors.Is(err, entity.ErrDuplicateEmail) {
			return c.JSON(400, map[string]string{"message": "This email already exists."})
		}
		return c.JSON(500, map[string]string{"message": err.Error()})
	}

	return c.JSON(200, map[string]string{"message": fmt.Sprintf("%d was updated!", id)})
}

// DeleteUser removes a user --> DELETE /users/:id
func (h *UserHandler) DeleteUser(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(400, map[string]string{"message": "Invalid ID"})
	}

	user, err := h.userService.DeleteUser(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, entity.ErrUserNotFound) {
			return c.JSON(404, map[string]string{"message": fmt.Sprintf("User %d does not exist", id)})
		}
		return c.JSON(500, map[string]string{"message": err.Error()})
	}

	return c.JSON(200, map[string]string{"message": fmt.Sprintf("%s was removed.", user.Email)})
}
