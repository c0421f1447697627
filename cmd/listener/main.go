// Package main is a sample webhook receiver. It verifies the dispatcher's
// signature when a shared secret is configured and logs each event, which is
// enough to exercise delivery end to end in development.
package main

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/golang-jwt/jwt/v5"

	"payflow/internal/config"
)

func main() {
	config.LoadEnv()
	secret := config.GetEnv("WEBHOOK_SIGNING_SECRET", "")

	app := fiber.New()
	app.Use(logger.New())

	app.Post("/webhooks", func(c *fiber.Ctx) error {
		if secret != "" {
			if err := verifySignature(c.Get("Authorization"), secret); err != nil {
				log.Printf("rejected webhook %s: %v", c.Get("X-Webhook-ID"), err)
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
			}
		}

		var payload map[string]interface{}
		if err := c.BodyParser(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
		log.Printf("received %s event for charge %v (status %v)",
			c.Get("X-Webhook-Event"), payload["charge_id"], payload["status"])
		return c.JSON(fiber.Map{"received": true})
	})

	log.Fatal(app.Listen(":" + config.GetEnv("LISTENER_PORT", "4000")))
}

func verifySignature(header, secret string) error {
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return jwt.ErrTokenMalformed
	}
	_, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	return err
}
