package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/health-assistant/health-assistant/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the endpoints reachable without a token.
func (h *Handler) RegisterPublicRoutes(api *echo.Group) {
	a := api.Group("/auth")
	a.GET("/captcha", h.Captcha)
	a.POST("/register", h.Register)
	a.POST("/login", h.Login)
}

// RegisterRoutes mounts the endpoints that need an authenticated caller.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	a := api.Group("/auth")
	a.GET("/me", h.Me)
}

func (h *Handler) Captcha(c echo.Context) error {
	res, err := h.svc.Captcha()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Nickname    string `json:"nickname"`
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.svc.Register(c.Request().Context(), req.Username, req.Password,
		req.Nickname, req.CaptchaID, req.CaptchaCode)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, u)
}

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	CaptchaID   string `json:"captchaId"`
	CaptchaCode string `json:"captchaCode"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, u, err := h.svc.Login(c.Request().Context(), req.Username, req.Password,
		req.CaptchaID, req.CaptchaCode)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

func (h *Handler) Me(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	u, err := h.svc.Profile(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}
