package routes

import (
	"time"

	"libraryhub/internal/adapters/http/middleware"
	"libraryhub/internal/config"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewApp creates the Fiber app with the json-iterator codec and the shared error handler
func NewApp(cfg *config.Config) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:                 "libraryhub",
		ErrorHandler:            middleware.CustomErrorHandler,
		JSONEncoder:             json.Marshal,
		JSONDecoder:             json.Unmarshal,
		ReadTimeout:             10 * time.Second,
		WriteTimeout:            30 * time.Second,
		IdleTimeout:             2 * time.Minute,
		BodyLimit:               4 * 1024 * 1024,
		EnableTrustedProxyCheck: cfg.IsProd(),
	})
}
