// handlers/operator_routes.go
package handlers

import (
	"strconv"

	"reward-settlement-system/middleware"
	"reward-settlement-system/models"
	"reward-settlement-system/services"
	"reward-settlement-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupOperatorRoutes(app *fiber.App, store *services.SubmissionStore, settlement *services.SettlementService, reconciler *services.ReconciliationService) {
	operatorGroup := app.Group("/operator", middleware.MemberContextMiddleware(), middleware.RequireOperator())

	// Validation queue: pending submissions, oldest first.
	operatorGroup.Get("/queue", func(c *fiber.Ctx) error {
		subs, err := store.ListByStatus(models.SubmissionStatusPending)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch queue",
			})
		}
		return c.JSON(subs)
	})

	operatorGroup.Post("/submissions/:id/approve", func(c *fiber.Ctx) error {
		sub, err := settlement.Approve(c.Context(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":    "Blockchain confirmed — submission approved",
			"submission": sub,
		})
	})

	operatorGroup.Post("/submissions/:id/reject", func(c *fiber.Ctx) error {
		sub, err := settlement.Reject(c.Context(), c.Params("id"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message":    "Submission rejected",
			"submission": sub,
		})
	})

	// Manual XP award, not tied to a submission.
	operatorGroup.Post("/xp/grant", func(c *fiber.Ctx) error {
		var req struct {
			Address string `json:"address" validate:"required"`
			XP      int64  `json:"xp" validate:"required,min=1"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		handle, err := settlement.GrantXP(c.Context(), req.Address, req.XP)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{
			"message": "XP granted",
			"tx_hash": handle.Hash,
		})
	})

	operatorGroup.Post("/badges/:tier/art", func(c *fiber.Ctx) error {
		tier, err := strconv.Atoi(c.Params("tier"))
		if err != nil || tier < 0 || tier > 3 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid tier"})
		}

		fileHeader, err := c.FormFile("art")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "art file required"})
		}

		url, err := utils.UploadBadgeArt(fileHeader, uint8(tier))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "upload failed"})
		}
		return c.JSON(fiber.Map{"badge_url": url})
	})

	// On-demand reconciliation pass: flags members whose ledger XP is ahead
	// of the store's approved bookkeeping.
	operatorGroup.Post("/reconcile", func(c *fiber.Ctx) error {
		reports, err := reconciler.Run(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "reconciliation pass failed",
			})
		}
		return c.JSON(fiber.Map{
			"inconsistencies": reports,
			"count":           len(reports),
		})
	})
}
