// handlers/member_routes.go
package handlers

import (
	"log"
	"strings"

	"reward-settlement-system/middleware"
	"reward-settlement-system/models"
	"reward-settlement-system/services"
	"reward-settlement-system/utils"

	"github.com/gofiber/fiber/v2"
)

func SetupMemberRoutes(app *fiber.App, store *services.SubmissionStore, settlement *services.SettlementService, ledger services.LedgerGateway) {
	memberGroup := app.Group("/", middleware.MemberContextMiddleware())

	// readMemberOrMirror prefers a live ledger read; if the RPC is down the
	// mirror keeps list views working. Mirror data is display-only — every
	// state-mutating path re-reads the ledger itself.
	readMemberOrMirror := func(c *fiber.Ctx, address string) services.MemberLedgerRecord {
		record, err := ledger.ReadMember(c.Context(), address)
		if err == nil {
			return record
		}
		log.Printf("⚠️ [MEMBER] live ledger read failed for %s, serving mirror: %v", address, err)

		var mirror models.MemberMirror
		if dbErr := store.DB.Where("address = ?", address).First(&mirror).Error; dbErr == nil {
			return services.MemberLedgerRecord{XP: mirror.XP, Tier: mirror.Tier, HasNFT: mirror.HasNFT}
		}
		return services.MemberLedgerRecord{}
	}

	memberGroup.Get("/tasks", func(c *fiber.Ctx) error {
		address := c.Locals("member_address").(string)

		subs, err := store.ListByAddress(address)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch submissions",
			})
		}

		view := services.Project(subs, readMemberOrMirror(c, address), models.TaskCatalog)
		return c.JSON(view)
	})

	memberGroup.Post("/tasks/:id/submissions", func(c *fiber.Ctx) error {
		address := c.Locals("member_address").(string)
		taskID := c.Params("id")

		task, ok := models.FindTask(taskID)
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown task"})
		}

		var req struct {
			Proof string `json:"proof" validate:"required"`
		}
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if strings.TrimSpace(req.Proof) == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Please provide proof"})
		}

		if task.OneTime {
			active, err := store.HasActiveSubmission(address, task.ID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error"})
			}
			if active {
				return respondError(c, services.ErrDuplicateSubmission)
			}
		}

		sub := &models.Submission{
			MemberAddress: address,
			TaskID:        task.ID,
			TaskTitle:     task.Title,
			Proof:         req.Proof,
			XPReward:      task.XPReward, // snapshot; later catalog edits don't change it
		}
		if err := store.Insert(sub); err != nil {
			return respondError(c, err)
		}

		return c.Status(fiber.StatusCreated).JSON(sub)
	})

	memberGroup.Get("/member/status", func(c *fiber.Ctx) error {
		address := c.Locals("member_address").(string)

		record := readMemberOrMirror(c, address)
		tier := services.ResolveTier(record.XP, record.Tier)

		return c.JSON(fiber.Map{
			"address":        address,
			"xp":             record.XP,
			"effective_tier": tier,
			"tier_name":      services.TierName(tier),
			"tier_color":     services.TierMetadata[tier].Color,
			"badge_url":      utils.BadgeArtURL(tier),
			"has_nft":        record.HasNFT,
			"mint":           services.CanMint(record),
		})
	})

	memberGroup.Get("/member/submissions", func(c *fiber.Ctx) error {
		address := c.Locals("member_address").(string)
		subs, err := store.ListByAddress(address)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to fetch submissions",
			})
		}
		return c.JSON(subs)
	})

	memberGroup.Post("/member/mint", func(c *fiber.Ctx) error {
		address := c.Locals("member_address").(string)

		handle, decision, err := settlement.Mint(c.Context(), address)
		if err != nil {
			return respondError(c, err)
		}
		if !decision.Eligible {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  "not eligible to mint",
				"reason": decision.Reason,
			})
		}

		return c.JSON(fiber.Map{
			"message": "Identity NFT minted",
			"tx_hash": handle.Hash,
		})
	})

	memberGroup.Get("/member/stream", store.StreamMemberSubmissionsSSE)
}
