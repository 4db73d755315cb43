package cmd

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"karaoke-live/config"
	"karaoke-live/handlers"
	_ "karaoke-live/migrations"
	"karaoke-live/security"
	"karaoke-live/services"
	"karaoke-live/store"
	"karaoke-live/utils"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn = pubnub.NewPubNub(pnConfig)
	}

	// Initialize services
	dispatcher := services.NewDispatcher(cfg.SubscriberBuffer, pn, cfg.RepublishToPubNub)
	pbStore := store.NewPB(app)
	registry := services.NewRegistry(pbStore)
	gate := services.NewRedisGate(redisClient)
	identity := services.NewIdentityService(pbStore, gate)
	queue := services.NewQueueService(pbStore)
	performances := services.NewPerformanceService(pbStore)
	ranking := services.NewRankingService(pbStore)

	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitWindow)

	// Initialize handlers
	instanceHandler := handlers.NewInstanceHandler(registry, cfg.JoinCodeLength)
	participantHandler := handlers.NewParticipantHandler(registry, identity, gate)
	queueHandler := handlers.NewQueueHandler(registry, queue)
	performanceHandler := handlers.NewPerformanceHandler(registry, performances, queue)
	rankingHandler := handlers.NewRankingHandler(registry, ranking)
	realtimeHandler := handlers.NewRealtimeHandler(registry, dispatcher)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Bridge storage writes into the realtime dispatcher
	bindChangeStream(app, dispatcher)

	// The registry keeps its snapshot cache fresh from the same stream
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go registry.Watch(ctx, dispatcher.SubscribeAll())

	// Setup graceful shutdown
	go handleShutdown(cancel)

	// Register routes
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Public instance entry
		e.Router.GET("/api/instances/resolve", instanceHandler.Resolve)

		// Participant identity
		e.Router.POST("/api/instances/{id}/participants", limiter.Limit("register", cfg.RegisterRateLimit, participantHandler.Register))
		e.Router.GET("/api/instances/{id}/participants/me", participantHandler.Me)

		// Queue
		e.Router.POST("/api/instances/{id}/queue", queueHandler.Enqueue)
		e.Router.GET("/api/instances/{id}/queue", queueHandler.List)
		e.Router.GET("/api/instances/{id}/queue/next", queueHandler.Next)
		e.Router.GET("/api/instances/{id}/queue/singing", queueHandler.NowSinging)

		// Performances and voting
		e.Router.GET("/api/instances/{id}/performances/active", performanceHandler.Active)
		e.Router.POST("/api/performances/{performanceId}/votes", limiter.Limit("vote", cfg.VoteRateLimit, performanceHandler.CastVote))

		// Ranking
		e.Router.GET("/api/instances/{id}/ranking", rankingHandler.Get)

		// Realtime subscriptions
		e.Router.GET("/api/instances/{id}/events", realtimeHandler.InstanceEvents)
		e.Router.GET("/api/coordinator/events", realtimeHandler.CoordinatorEvents).Bind(apis.RequireAuth())

		// Coordinator operations
		e.Router.GET("/api/coordinator/instance", instanceHandler.Mine).Bind(apis.RequireAuth())
		e.Router.POST("/api/instances", instanceHandler.Create).Bind(apis.RequireAuth())
		e.Router.PATCH("/api/instances/{id}/status", instanceHandler.SetStatus).Bind(apis.RequireAuth())
		e.Router.POST("/api/queue/{entryId}/promote", queueHandler.Promote).Bind(apis.RequireAuth())
		e.Router.POST("/api/queue/{entryId}/complete", queueHandler.Complete).Bind(apis.RequireAuth())
		e.Router.DELETE("/api/queue/{entryId}", queueHandler.Remove).Bind(apis.RequireAuth())
		e.Router.POST("/api/instances/{id}/performances", performanceHandler.Start).Bind(apis.RequireAuth())
		e.Router.POST("/api/performances/{performanceId}/end", performanceHandler.End).Bind(apis.RequireAuth())
		e.Router.POST("/api/performances/{performanceId}/video", performanceHandler.ChangeVideo).Bind(apis.RequireAuth())
		e.Router.GET("/api/performances/{performanceId}/votes", performanceHandler.Votes).Bind(apis.RequireAuth())
		e.Router.PATCH("/api/instances/{id}/registration", participantHandler.SetRegistration).Bind(apis.RequireAuth())

		// Metrics
		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	return app.Start()
}

// watchedCollections are the tables whose row changes feed the
// realtime dispatcher.
var watchedCollections = []string{"instances", "participants", "waitlist", "performances", "votes"}

// bindChangeStream republishes every successful row write as a
// full-snapshot change event scoped to its instance.
func bindChangeStream(app *pocketbase.PocketBase, dispatcher *services.Dispatcher) {
	app.OnRecordAfterCreateSuccess(watchedCollections...).BindFunc(func(e *core.RecordEvent) error {
		dispatcher.Publish(changeFromRecord(e, services.ActionCreate))
		return e.Next()
	})
	app.OnRecordAfterUpdateSuccess(watchedCollections...).BindFunc(func(e *core.RecordEvent) error {
		dispatcher.Publish(changeFromRecord(e, services.ActionUpdate))
		return e.Next()
	})
	app.OnRecordAfterDeleteSuccess(watchedCollections...).BindFunc(func(e *core.RecordEvent) error {
		dispatcher.Publish(changeFromRecord(e, services.ActionDelete))
		return e.Next()
	})
}

func changeFromRecord(e *core.RecordEvent, action string) services.Change {
	rec := e.Record
	collection := rec.Collection().Name

	instanceID := rec.GetString("instance")
	switch collection {
	case "instances":
		instanceID = rec.Id
	case "votes":
		// Votes reference their performance; resolve the instance
		// through it so the event lands in the right scope.
		if perf, err := e.App.FindRecordById("performances", rec.GetString("performance")); err == nil {
			instanceID = perf.GetString("instance")
		}
	}

	owner := ""
	if collection == "instances" {
		owner = rec.GetString("owner")
	} else if inst, err := e.App.FindRecordById("instances", instanceID); err == nil {
		owner = inst.GetString("owner")
	}

	ts := rec.GetDateTime("updated").Time()
	if ts.IsZero() {
		ts = rec.GetDateTime("created").Time()
	}

	return services.Change{
		Collection: collection,
		Action:     action,
		RowID:      rec.Id,
		InstanceID: instanceID,
		Owner:      owner,
		Record:     rec.PublicExport(),
		Timestamp:  ts,
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
