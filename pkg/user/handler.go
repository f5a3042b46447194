package user

import (
	"errors"
	"net/http"

	"github.com/buildledger/buildledger/internal/rest"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Id          int    `json:"id"`
	Uid         string `json:"uid"`
	Username    string `json:"username" validate:"required,max=64"`
	DisplayName string `json:"displayName" validate:"max=128"`
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CurrentUser godoc
// @Summary Get the current user
// @Tags User
// @Produce json
// @Success 200 {object} UserDTO
// @Router /api/user/current [get]
// @Security XUserId
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Getting current user")
	u, err := h.service.GetCurrentUser(r.Context())
	if err != nil {
		if errors.Is(err, ErrNoUser) {
			rest.WriteError(w, http.StatusForbidden, "user not found", "")
			return
		}
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	rest.WriteJSON(w, http.StatusOK, toDTO(u))
}

// CreateUser godoc
// @Summary Create a user in the current tenant
// @Tags User
// @Accept json
// @Produce json
// @Param user body UserDTO true "User"
// @Success 201 {object} UserDTO
// @Router /api/user [post]
// @Security XUserId
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating user")
	tenantId, err := CurrentTenant(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusForbidden, "user not found", "")
		return
	}
	var dto UserDTO
	if err := rest.DecodeAndValidate(r, &dto); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid user", err.Error())
		return
	}
	created, err := h.service.CreateUser(r.Context(), User{
		TenantId:    tenantId,
		Username:    dto.Username,
		DisplayName: dto.DisplayName,
	})
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	rest.WriteJSON(w, http.StatusCreated, toDTO(created))
}

// ListUsers godoc
// @Summary List users of the current tenant
// @Tags User
// @Produce json
// @Success 200 {array} UserDTO
// @Router /api/user [get]
// @Security XUserId
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListTenantUsers(r.Context())
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, err.Error(), "")
		return
	}
	dtos := make([]UserDTO, 0, len(users))
	for _, u := range users {
		dtos = append(dtos, toDTO(u))
	}
	rest.WriteJSON(w, http.StatusOK, dtos)
}

func toDTO(u User) UserDTO {
	return UserDTO{Id: u.Id, Uid: u.Uid, Username: u.Username, DisplayName: u.DisplayName}
}
