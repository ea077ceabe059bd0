// dance-battle-system/handlers/vote.go
package handlers

import (
	"dance-battle-system/models"
	"dance-battle-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupVoteRoutes wires ballot casting and the closed-battle vote listing.
func SetupVoteRoutes(app *fiber.App, votes *services.VoteService, queries *services.QueryService) {
	// 🔓 Vote listing is public but only opens once the battle is closed
	app.Get("/battles/:id/votes", listVotes(queries))

	// 🔐 Casting requires a user context
	secured := app.Group("/s")
	secured.Post("/battles/:id/votes", castVote(votes))
}

func castVote(votes *services.VoteService) fiber.Handler {
	type voteRequest struct {
		Kind         int    `json:"kind"`
		AScore       int    `json:"a_score"`
		BScore       int    `json:"b_score"`
		Statement    string `json:"statement"`
		SignatureRef string `json:"signature_ref"`
	}
	return func(c *fiber.Ctx) error {
		var req voteRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
		}
		vote, err := votes.CastVote(c.Context(), CallerFromCtx(c), services.VoteInput{
			MatchID:      c.Params("id"),
			Kind:         models.VoteKind(req.Kind),
			AScore:       req.AScore,
			BScore:       req.BScore,
			Statement:    req.Statement,
			SignatureRef: req.SignatureRef,
		})
		if err != nil {
			return fail(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(vote)
	}
}

func listVotes(queries *services.QueryService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := c.QueryInt("page", 1)
		perPage := c.QueryInt("count", 20)
		result, err := queries.ListVotes(c.Context(), c.Params("id"), page, perPage)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(result)
	}
}
