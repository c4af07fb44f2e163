// middleware/member_context.go
package middleware

import (
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// MemberContextMiddleware extracts the connected wallet address forwarded by
// the Gateway (X-Member-Address header; SSE clients can't set headers, so
// the `address` query param is accepted as a fallback) and attaches the
// lowercase-normalized form to the request context.
func MemberContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		address := c.Get("X-Member-Address")
		if address == "" {
			address = c.Query("address")
		}

		if address == "" {
			log.Printf("❌ [MEMBER_CTX] X-Member-Address required but missing: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Member-Address — request must come through gateway with a connected wallet",
			})
		}
		if !common.IsHexAddress(address) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":  "malformed wallet address",
				"reason": "invalid-address",
			})
		}

		c.Locals("member_address", strings.ToLower(address))

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			r = strings.TrimSpace(r)
			if r != "" {
				roles = append(roles, r)
			}
		}
		c.Locals("user_roles", roles)

		return c.Next()
	}
}

// RequireOperator gates operator routes on the "operator" role forwarded by
// the Gateway. Contract-level authorization still applies: a forged role
// header yields LedgerRejected (unauthorized) at transaction time.
func RequireOperator() fiber.Handler {
	return func(c *fiber.Ctx) error {
		roles, _ := c.Locals("user_roles").([]string)
		for _, r := range roles {
			if r == "operator" || r == "admin" {
				return c.Next()
			}
		}
		log.Printf("🚫 [OPERATOR] role check failed for %s on %s", c.Locals("member_address"), c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "operator role required",
		})
	}
}
