package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler is the signature used by all application handlers in this service.
type Handler func(c *Context) error

// Middleware is a function designed to run some code before and/or after
// another Handler.
type Middleware func(Handler) Handler

// App is the entrypoint into our application and what configures our context
// object for each of our http handlers.
type App struct {
	*gin.Engine
}

// NewApp creates an App value that handles a set of routes for the application.
func NewApp() *App {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	return &App{engine}
}

// handle performs the real work of applying boilerplate and framework code
// for a handler.
func (a *App) handle(method string, path string, handler Handler, mw ...Middleware) {
	// Wrap the endpoint specific middleware around this handler, first
	// middleware in the list ends up outermost.
	for i := len(mw) - 1; i >= 0; i-- {
		if mw[i] != nil {
			handler = mw[i](handler)
		}
	}

	h := func(c *gin.Context) {
		ctx := NewContext(c)

		if err := handler(ctx); err != nil {
			_ = ctx.RespondError(err)
			return
		}
	}

	a.Engine.Handle(method, path, h)
}

func (a *App) Get(path string, handler Handler, mw ...Middleware) {
	a.handle(http.MethodGet, path, handler, mw...)
}

func (a *App) Post(path string, handler Handler, mw ...Middleware) {
	a.handle(http.MethodPost, path, handler, mw...)
}

func (a *App) Put(path string, handler Handler, mw ...Middleware) {
	a.handle(http.MethodPut, path, handler, mw...)
}

func (a *App) Patch(path string, handler Handler, mw ...Middleware) {
	a.handle(http.MethodPatch, path, handler, mw...)
}

func (a *App) Delete(path string, handler Handler, mw ...Middleware) {
	a.handle(http.MethodDelete, path, handler, mw...)
}
