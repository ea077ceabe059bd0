// dance-battle-system/handlers/battle.go
package handlers

import (
	"errors"
	"fmt"

	"dance-battle-system/models"
	"dance-battle-system/services"
	"dance-battle-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SetupBattleRoutes wires the battle lifecycle and query endpoints.
// Public reads live at the root; mutations sit under /s/ where the Gateway
// guarantees a user context.
func SetupBattleRoutes(app *fiber.App, battles *services.BattleService, queries *services.QueryService) {
	// 🔓 Public reads (identity optional, used for voting eligibility)
	app.Get("/battles", listBattles(queries))
	app.Get("/battles/:id", getBattle(queries))
	app.Get("/live-events/:code", getLiveEvent(queries))

	// 🔐 Authenticated mutations
	secured := app.Group("/s")
	secured.Post("/battles/callout", createCallout(battles))
	secured.Post("/battles/:id/reply", submitReply(battles))
	secured.Post("/battles/:id/withdraw", withdraw(battles))
	secured.Post("/live-events", createLiveEvent(battles))

	// Upload brokerage: browser PUTs media straight to R2
	secured.Post("/uploads/battle-media", signBattleMediaUploads())
	secured.Post("/uploads/signature", signSignatureUpload())

	// 🔒 Admin verification queue
	admin := secured.Group("/admin")
	admin.Get("/battles/pending", listPendingVerification(queries))
	admin.Post("/battles/:id/verify-a", verifyA(battles))
	admin.Post("/battles/:id/verify-b", verifyB(battles))
}

// CallerFromCtx rebuilds the caller identity the middleware attached.
func CallerFromCtx(c *fiber.Ctx) services.Caller {
	caller := services.Caller{}
	if handle, ok := c.Locals("user_handle").(string); ok {
		caller.Handle = handle
	}
	if roles, ok := c.Locals("user_roles").([]string); ok {
		caller.Roles = roles
	}
	return caller
}

func listBattles(queries *services.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := services.BattleFilter{
			Search: c.Query("search"),
			Live:   c.QueryBool("live"),
		}
		if v := c.Query("closed"); v != "" {
			closed := v == "true"
			filter.Closed = &closed
		}
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("count", 20)

		result, err := queries.ListBattles(c.Context(), filter, page, perPage)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(result)
	}
}

func getBattle(queries *services.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		detail, err := queries.GetBattle(c.Context(), c.Params("id"), CallerFromCtx(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(detail)
	}
}

func getLiveEvent(queries *services.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		detail, err := queries.GetLiveEvent(c.Context(), c.Params("code"), CallerFromCtx(c))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(detail)
	}
}

func createCallout(battles *services.BattleService) fiber.Handler {
	type calloutRequest struct {
		Opponent      string   `json:"opponent"`
		MediaRef      string   `json:"media_ref"`
		ImageRef      string   `json:"image_ref"`
		Judges        []string `json:"judges"`
		Rules         string   `json:"rules"`
		DurationHours int      `json:"voting_duration_hours"`
	}
	return func(c *fiber.Ctx) error {
		var req calloutRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		match, err := battles.CreateCallout(c.Context(), CallerFromCtx(c), services.CalloutInput{
			Opponent:      req.Opponent,
			MediaRef:      req.MediaRef,
			ImageRef:      req.ImageRef,
			Judges:        req.Judges,
			Rules:         req.Rules,
			DurationHours: req.DurationHours,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(match)
	}
}

func submitReply(battles *services.BattleService) fiber.Handler {
	type replyRequest struct {
		MediaRef  string `json:"media_ref"`
		ImageRef  string `json:"image_ref"`
		ReplyText string `json:"reply_text"`
	}
	return func(c *fiber.Ctx) error {
		var req replyRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		match, err := battles.SubmitReply(c.Context(), CallerFromCtx(c), c.Params("id"),
			req.MediaRef, req.ImageRef, req.ReplyText)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(match)
	}
}

func withdraw(battles *services.BattleService) fiber.Handler {
	type withdrawRequest struct {
		Side string `json:"side"`
	}
	return func(c *fiber.Ctx) error {
		var req withdrawRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		err := battles.Withdraw(c.Context(), CallerFromCtx(c), c.Params("id"), models.Side(req.Side))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "withdrawn"})
	}
}

func createLiveEvent(battles *services.BattleService) fiber.Handler {
	type liveEventRequest struct {
		AHandle string   `json:"a_handle"`
		BHandle string   `json:"b_handle"`
		Judges  []string `json:"judges"`
		Rules   string   `json:"rules"`
	}
	return func(c *fiber.Ctx) error {
		var req liveEventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		match, err := battles.CreateLiveEvent(c.Context(), CallerFromCtx(c), services.LiveEventInput{
			AHandle: req.AHandle,
			BHandle: req.BHandle,
			Judges:  req.Judges,
			Rules:   req.Rules,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(match)
	}
}

func verifyA(battles *services.BattleService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := battles.AdminVerifyA(c.Context(), CallerFromCtx(c), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "a-side verified"})
	}
}

func verifyB(battles *services.BattleService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := battles.AdminVerifyB(c.Context(), CallerFromCtx(c), c.Params("id")); err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"message": "b-side verified, voting open"})
	}
}

func listPendingVerification(queries *services.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !CallerFromCtx(c).IsAdmin() {
			return fail(c, services.ErrNotAdmin)
		}
		views, err := queries.ListPendingVerification(c.Context())
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(fiber.Map{"data": views, "count": len(views)})
	}
}

// signBattleMediaUploads hands out presigned PUT URLs for a battle video and
// its cover image. The returned ids become the media/image refs on the battle.
func signBattleMediaUploads() fiber.Handler {
	type uploadRequest struct {
		VideoType string `json:"video_type"` // "mp4" or "mov"
	}
	return func(c *fiber.Ctx) error {
		var req uploadRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		ext := "mp4"
		contentType := "video/mp4"
		if req.VideoType == "mov" {
			ext = "mov"
			contentType = "video/quicktime"
		}

		videoID := uuid.NewString()
		imageID := uuid.NewString()
		videoKey := fmt.Sprintf("videos/%s.%s", videoID, ext)
		imageKey := fmt.Sprintf("images/%s.jpeg", imageID)

		videoURL, err := utils.PresignVideoPut(videoKey, contentType)
		if err != nil {
			utils.Error("failed to presign video upload", "err", err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to presign upload"})
		}
		imageURL, err := utils.PresignImagePut(imageKey)
		if err != nil {
			utils.Error("failed to presign image upload", "err", err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to presign upload"})
		}

		return c.JSON(fiber.Map{
			"video_id":         videoID,
			"image_id":         imageID,
			"video_upload_url": videoURL,
			"image_upload_url": imageURL,
			"video_public_url": utils.PublicURL(videoKey),
			"image_public_url": utils.PublicURL(imageKey),
		})
	}
}

// signSignatureUpload hands out a presigned PUT URL for a vote signature image.
func signSignatureUpload() fiber.Handler {
	return func(c *fiber.Ctx) error {
		imageID := uuid.NewString()
		imageKey := fmt.Sprintf("images/%s.jpeg", imageID)
		imageURL, err := utils.PresignImagePut(imageKey)
		if err != nil {
			utils.Error("failed to presign signature upload", "err", err)
			return c.Status(500).JSON(fiber.Map{"error": "failed to presign upload"})
		}
		return c.JSON(fiber.Map{
			"image_id":         imageID,
			"image_upload_url": imageURL,
			"image_public_url": utils.PublicURL(imageKey),
		})
	}
}

// fail maps domain errors onto HTTP statuses.
func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrAnonymous):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrNotBattler),
		errors.Is(err, services.ErrNotAdmin),
		errors.Is(err, services.ErrNotJudge):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrMatchMissing),
		errors.Is(err, services.ErrOpponentMissing):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrSelfMatch),
		errors.Is(err, services.ErrDuplicateCallout),
		errors.Is(err, services.ErrAlreadyVoted),
		errors.Is(err, services.ErrWrongState),
		errors.Is(err, services.ErrVotingClosed),
		errors.Is(err, services.ErrVotingNotYetOpen):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrWrongResponder),
		errors.Is(err, services.ErrInvalidJudges),
		errors.Is(err, services.ErrDurationOutOfRange),
		errors.Is(err, services.ErrScoresMustSumTo100),
		errors.Is(err, services.ErrStatementTooLong),
		errors.Is(err, services.ErrSignatureRequired),
		errors.Is(err, services.ErrParticipantsCannotVote):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
