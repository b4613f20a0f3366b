package tools

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"mailgate/utils"
)

// ErrorHandler renders every failure as {"error": "<kind>: <message>"}.
// Wrapped protocol detail goes to the log only.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= fiber.StatusInternalServerError {
			utils.Log.Error("Application error: %v", appErr)
		}
		return c.Status(appErr.Code).JSON(fiber.Map{"error": appErr.Public()})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	utils.Log.Error("Unhandled error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": string(utils.KindInternal) + ": unexpected failure",
	})
}
