package websocket

import (
	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// UpgradeGuard rejects plain HTTP requests on websocket paths before the
// upgrade handler runs
func UpgradeGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Route returns the fiber handler serving one observer connection per
// auction room, mounted at /ws/auctions/:id
func (g *Gateway) Route() fiber.Handler {
	return fiberws.New(func(conn *fiberws.Conn) {
		auctionID, err := uuid.Parse(conn.Params("id"))
		if err != nil {
			_ = conn.Close()
			return
		}
		g.HandleConnection(conn, auctionID)
	})
}
