package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/internal/shared/cache"
	"github.com/radieske/race-wager-engine/internal/shared/config"
	"github.com/radieske/race-wager-engine/internal/shared/db"
	skafka "github.com/radieske/race-wager-engine/internal/shared/kafka"
	"github.com/radieske/race-wager-engine/internal/shared/logger"
	"github.com/radieske/race-wager-engine/internal/shared/metrics"
	whttp "github.com/radieske/race-wager-engine/internal/wager-service/http"
	"github.com/radieske/race-wager-engine/internal/wager-service/odds"
	"github.com/radieske/race-wager-engine/internal/wager-service/producer"
	"github.com/radieske/race-wager-engine/internal/wager-service/racecache"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
	"github.com/radieske/race-wager-engine/internal/wager-service/settlement"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New("wager-service", cfg.Env)
	defer log.Sync()

	// Postgres (contas, apostas, razão, corridas, pedidos de fundos)
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (board de odds + cache de status de corrida)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}

	// Kafka writers dos eventos do engine
	placedW := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
	defer placedW.Close()
	cancelledW := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerCancelled)
	defer cancelledW.Close()
	settledW := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceSettled)
	defer settledW.Close()

	repository := repo.NewPostgres(pg, cfg.MinStakeCents, cfg.MaxStakeCents)
	engine := settlement.New(pg, log)
	board := odds.NewBoard(rdb)
	rcache := racecache.New(rdb)
	publ := producer.NewKafkaPublisher(placedW, cancelledW, settledW)

	api := whttp.NewServer(log, repository, engine, board, rcache, publ, cfg.MinStakeCents, cfg.MaxStakeCents)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// Servidor de métricas e health check
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})

	log.Info("wager-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
