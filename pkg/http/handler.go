package http

import "github.com/labstack/echo/v4"

// Handler is implemented by components that expose routes on the shared
// Echo instance. The server calls RegisterRoutes once, before listening.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
