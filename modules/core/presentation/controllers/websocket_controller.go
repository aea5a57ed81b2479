package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/meridianhq/meridian-sdk/pkg/application"
)

// WebSocketController exposes the hub at /ws. Authentication happens inside
// the hub's connect hook so anonymous clients can still join public channels.
type WebSocketController struct {
	app application.Application
}

func NewWebSocketController(app application.Application) application.Controller {
	return &WebSocketController{app: app}
}

func (c *WebSocketController) Key() string {
	return "/ws"
}

func (c *WebSocketController) Register(r *mux.Router) {
	r.Handle("/ws", c.app.Websocket()).Methods(http.MethodGet)
}
