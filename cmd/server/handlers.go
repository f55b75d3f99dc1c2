package main

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"go.chrisrx.dev/panel/mqtt"
	"go.chrisrx.dev/panel/panel"
)

type configRequest struct {
	Code        string `json:"code"`
	Domain      string `json:"domain"`
	TopicPrefix string `json:"topic_prefix"`
}

type passwordRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type messageRequest struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newServer exposes s over HTTP. Fields missing from a connect request are
// taken from defaults.
func newServer(s *panel.Session, defaults panel.Params) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/state", func(c echo.Context) error {
		return c.JSON(http.StatusOK, s.Status())
	})

	e.POST("/connect", func(c echo.Context) error {
		params := defaults
		if err := c.Bind(&params); err != nil {
			return err
		}
		if err := s.Connect(c.Request().Context(), params); err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, s.Status())
	})

	e.POST("/disconnect", func(c echo.Context) error {
		s.Disconnect()
		return c.JSON(http.StatusOK, s.Status())
	})

	e.POST("/commands/config", func(c echo.Context) error {
		var req configRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		r, err := s.SendConfigUpdate(c.Request().Context(), req.Code, req.Domain, req.TopicPrefix)
		return respond(c, r, err)
	})

	e.POST("/commands/password", func(c echo.Context) error {
		var req passwordRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		r, err := s.SendPasswordUpdate(c.Request().Context(), req.Code, req.NewPassword)
		return respond(c, r, err)
	})

	e.POST("/commands/message", func(c echo.Context) error {
		var req messageRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		r, err := s.SendMessage(c.Request().Context(), req.Code, req.Message)
		return respond(c, r, err)
	})

	return e
}

func respond(c echo.Context, r *panel.Receipt, err error) error {
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

func respondError(c echo.Context, err error) error {
	status := errorStatus(err)
	return c.JSON(status, map[string]any{
		"status": status,
		"error":  err.Error(),
	})
}

func errorStatus(err error) int {
	var (
		validationErr *panel.ValidationError
		connErr       *mqtt.ConnectionError
		transportErr  *mqtt.TransportError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, mqtt.ErrNotConnected), errors.Is(err, mqtt.ErrAlreadyConnected):
		return http.StatusConflict
	case errors.As(err, &connErr), errors.As(err, &transportErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
