package main

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/popgate/adapters/events"
	"github.com/layer-3/popgate/adapters/identityproof"
	"github.com/layer-3/popgate/adapters/store"
	"github.com/layer-3/popgate/adapters/tokenizer"
	"github.com/layer-3/popgate/internal/config"
	"github.com/layer-3/popgate/ports"
	"github.com/layer-3/popgate/service"
	"github.com/layer-3/popgate/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		challenges ports.ChallengeStore
		sessions   ports.SessionStore
		blacklist  ports.Blacklist
		ledger     ports.ReputationLedger
		eventPub   ports.EventPublisher
	)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}

		redisStore := store.NewRedisStore(redisClient)
		challenges, sessions, blacklist, ledger = redisStore, redisStore, redisStore, redisStore

		logger := watermill.NewStdLogger(false, false)
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			logger,
		)
		if err != nil {
			log.Fatalf("Failed to create Redis publisher: %v", err)
		}
		eventPub = events.NewWatermillPublisher(publisher)

		log.Printf("Using Redis registries at %s", cfg.RedisURL)
	} else {
		memStore := store.NewMemoryStore()
		challenges, sessions, blacklist, ledger = memStore, memStore, memStore, memStore
		log.Print("REDIS_URL not set, using in-memory registries")
	}

	tok, err := tokenizer.NewJWTTokenizer([]byte(cfg.TokenSecret))
	if err != nil {
		log.Fatalf("Failed to create tokenizer: %v", err)
	}

	prover := identityproof.NewLocalProver(cfg.ChallengeTTL)

	gateway := service.NewGateway(prover, challenges, sessions, blacklist, ledger, tok, eventPub, service.Config{
		ChallengeTTL:  cfg.ChallengeTTL,
		SessionTTL:    cfg.SessionTTL,
		PowDifficulty: cfg.PowDifficulty,
		Tiers:         cfg.Tiers,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway.StartSweeper(ctx, cfg.SweepInterval)

	router := http.SetupRouter(gateway, http.RouterConfig{
		ChallengesPerIP: cfg.ChallengesPerIP,
		ChallengeWindow: cfg.ChallengeWindow,
	})

	if err := router.Run(cfg.ListenAddr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
