// handlers/errors.go
package handlers

import (
	"errors"

	"reward-settlement-system/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps the settlement error taxonomy onto HTTP statuses with a
// short human-readable reason. Raw transport errors never reach the client.
func respondError(c *fiber.Ctx, err error) error {
	var ledgerErr *services.LedgerRejectedError
	var storeErr *services.StoreWriteFailureError

	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "submission not found"})

	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
			"cause": err.Error(),
		})

	case errors.Is(err, services.ErrConcurrencyConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "approval already in progress — retry after it completes",
		})

	case errors.Is(err, services.ErrDuplicateSubmission):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "task already submitted",
		})

	case errors.Is(err, services.ErrAlreadyReviewed), errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "submission already reviewed",
			"cause": err.Error(),
		})

	case errors.As(err, &storeErr):
		// XP is already credited on-chain; only bookkeeping lags. The
		// operator re-marks the submission or the reconciliation pass
		// flags it.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":         "XP credited on-chain but status write failed — needs reconciliation",
			"submission_id": storeErr.SubmissionID,
			"tx_hash":       storeErr.TxHash,
		})

	case errors.As(err, &ledgerErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  "ledger rejected transaction",
			"reason": ledgerErr.Reason,
		})

	case errors.Is(err, services.ErrLedgerTimeout):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "ledger confirmation timed out — outcome unknown, re-check before retrying",
		})

	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal error",
		})
	}
}
