// Package assetserver serves exported notebook HTML plus its static assets
// on an ephemeral loopback port during raster capture.
package assetserver

import (
	"fmt"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/peter-gy/marimo/export"
)

// DefaultRoute is the dynamic page route used for capture.
const DefaultRoute = "/__notebook_pdf_raster__.html"

// Server hosts a static asset directory plus one dynamic HTML page.
type Server struct {
	// Dir is the static asset directory. It must exist before Start.
	Dir string
	// Route serves the dynamic HTML page. Defaults to DefaultRoute.
	Route string
	// Addr is the listen address. Defaults to an ephemeral loopback port.
	Addr   string
	Logger export.Logger

	mu   sync.RWMutex
	html string

	app *fiber.App
	ln  net.Listener
}

// New creates an asset server for the given directory.
func New(dir string) *Server {
	return &Server{Dir: dir}
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start() error {
	if s == nil {
		return export.NewError(export.KindInternal, "asset server is nil", nil)
	}
	if s.ln != nil {
		return export.NewError(export.KindValidation, "asset server already running", nil)
	}
	if s.Dir != "" {
		info, err := os.Stat(s.Dir)
		if err != nil || !info.IsDir() {
			return export.NewError(export.KindValidation, fmt.Sprintf("static assets not found at %s", s.Dir), err)
		}
	}

	addr := s.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		return export.NewError(export.KindInternal, "asset server listen failed", err)
	}

	s.ln = ln
	s.app = s.newApp()
	go func() {
		if serveErr := s.app.Listener(ln); serveErr != nil {
			s.logger().Debugf("asset server stopped: %v", serveErr)
		}
	}()
	return nil
}

// SetHTML swaps the dynamic page content.
func (s *Server) SetHTML(html string) error {
	if s == nil || s.ln == nil {
		return export.NewError(export.KindValidation, "asset server is not running", nil)
	}
	s.mu.Lock()
	s.html = html
	s.mu.Unlock()
	return nil
}

// BaseURL returns the serving root, or an empty string before Start.
func (s *Server) BaseURL() string {
	if s == nil || s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// PageURL returns the dynamic page URL.
func (s *Server) PageURL() string {
	base := s.BaseURL()
	if base == "" {
		return ""
	}
	return base + s.route()
}

// Close shuts the server down and releases the listener.
func (s *Server) Close() error {
	if s == nil || s.app == nil {
		return nil
	}
	err := s.app.Shutdown()
	s.app = nil
	s.ln = nil
	return err
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Get(s.route(), func(c *fiber.Ctx) error {
		s.mu.RLock()
		html := s.html
		s.mu.RUnlock()

		c.Set(fiber.HeaderContentType, "text/html; charset=utf-8")
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.SendString(html)
	})

	if s.Dir != "" {
		app.Static("/", s.Dir)
	}
	return app
}

func (s *Server) route() string {
	route := s.Route
	if route == "" {
		route = DefaultRoute
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return route
}

func (s *Server) logger() export.Logger {
	if s == nil || s.Logger == nil {
		return export.NopLogger{}
	}
	return s.Logger
}
