// Command issue-token mints a bearer token for an operator or a shop.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/analianare-star/avellaneda-backend/internal/auth"
	"github.com/analianare-star/avellaneda-backend/internal/config"
	"github.com/analianare-star/avellaneda-backend/internal/domain"
)

func main() {
	actorType := flag.String("type", string(domain.ActorAdmin), "actor type (ADMIN, SHOP, SYSTEM)")
	actorID := flag.String("id", "", "actor id")
	shopID := flag.String("shop", "", "shop id, required for SHOP actors")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	actor := domain.Actor{Type: domain.ActorType(*actorType), ID: *actorID}
	if *shopID != "" {
		id, err := uuid.Parse(*shopID)
		if err != nil {
			slog.Error("parsing shop id", "error", err)
			os.Exit(1)
		}
		actor.ShopID = id
	}

	svc := auth.NewService(auth.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Expiry), nil)
	token, err := svc.IssueToken(actor)
	if err != nil {
		slog.Error("issuing token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token.AccessToken)
}
