package handlers

import (
	"strconv"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/pkg/pagination"

	"github.com/gofiber/fiber/v2"
)

// paramID parses a positive numeric path parameter
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// pageOf reads ?page and ?limit into pagination params and a repository page
func pageOf(c *fiber.Ctx) (*pagination.Params, repositories.Page) {
	params := pagination.GetParams(c)
	return params, repositories.Page{Offset: params.Offset, Limit: params.Limit}
}
