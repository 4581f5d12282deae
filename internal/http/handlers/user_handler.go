// README: User profile handlers keyed on the verified token uid.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"carryhub/internal/modules/user"
)

type UserHandler struct {
	users *user.Service
}

func NewUserHandler(svc *user.Service) *UserHandler {
	return &UserHandler{users: svc}
}

type registerUserReq struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	DeviceToken string `json:"device_token"`
}

// Register handles POST /api/users/me; calling it again updates the profile.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json", "invalid_json")
		return
	}
	userID, _ := caller(c)
	u, err := h.users.Register(c.Request.Context(), user.RegisterCommand{
		UserID:      userID,
		Name:        req.Name,
		Phone:       req.Phone,
		Email:       req.Email,
		DeviceToken: req.DeviceToken,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newUserView(u))
}

func (h *UserHandler) Me(c *gin.Context) {
	userID, _ := caller(c)
	u, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newUserView(u))
}
