package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/race-wager-engine/internal/shared/cache"
	"github.com/radieske/race-wager-engine/internal/shared/config"
	"github.com/radieske/race-wager-engine/internal/shared/db"
	"github.com/radieske/race-wager-engine/internal/shared/kafka"
	"github.com/radieske/race-wager-engine/internal/shared/logger"
	"github.com/radieske/race-wager-engine/internal/wager-service/fault"
	"github.com/radieske/race-wager-engine/internal/wager-service/odds"
	"github.com/radieske/race-wager-engine/internal/wager-service/racecache"
	"github.com/radieske/race-wager-engine/internal/wager-service/repo"
	"github.com/radieske/race-wager-engine/internal/wager-service/settlement"
	ev "github.com/radieske/race-wager-engine/pkg/contracts/events"
)

// TTL do cache de status; o feed reenvia o cartão com folga antes disso vencer.
const statusTTL = 10 * time.Minute

func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-worker", cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres: corridas, apostas pendentes e contas a liquidar
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()

	// Redis: cache de status e board de odds, alimentados pelo feed
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}

	// Kafka consumer: eventos race_updates vindos do feed
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRaceUpdates, "settlement-worker")
	defer reader.Close()

	// Kafka producer: publica race_settled e, opcionalmente, envia para DLQ
	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceSettled)
	defer settledWriter.Close()

	var dlqWriter *kafka.Writer
	if cfg.TopicRaceUpdatesDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceUpdatesDLQ)
		defer dlqWriter.Close()
	}

	repository := repo.NewPostgres(pg, cfg.MinStakeCents, cfg.MaxStakeCents)
	engine := settlement.New(pg, log)
	board := odds.NewBoard(rdb)
	rcache := racecache.New(rdb)

	// Servidor HTTP para métricas Prometheus e healthcheck
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			if err := pg.PingContext(ctx); err != nil {
				http.Error(w, "pg", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		addr := ":" + cfg.MetricsPort
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, mux)
	}()

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicRaceUpdates),
		zap.String("publish", cfg.TopicRaceSettled),
	)

	ctx := context.Background()

	// Loop principal: consome atualizações do feed e liquida corridas encerradas
	for {
		_, value, err := kafka.ReadNext(ctx, reader)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var upd ev.RaceUpdate
		if jerr := json.Unmarshal(value, &upd); jerr != nil {
			log.Error("unmarshal race_update", zap.Error(jerr))
			continue
		}
		if upd.RaceID == "" {
			continue
		}

		if err := processOne(ctx, log, repository, engine, board, rcache, settledWriter, dlqWriter, &upd); err != nil {
			log.Error("process race update", zap.String("raceId", upd.RaceID), zap.Error(err))
			// Backoff simples para evitar flood em caso de erro
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processOne executa o fluxo de uma atualização de corrida:
// 1. Faz upsert da corrida no banco e atualiza o cache de status
// 2. Atualiza o board de odds, se o feed mandou cotações
// 3. Se a corrida terminou com resultado, liquida as apostas pendentes
// 4. Publica evento race_settled no Kafka
func processOne(
	ctx context.Context,
	log *zap.Logger,
	repository *repo.Postgres,
	engine *settlement.Engine,
	board *odds.Board,
	rcache *racecache.Cache,
	settledWriter *kafka.Writer,
	dlqWriter *kafka.Writer,
	upd *ev.RaceUpdate,
) error {
	status := repo.RaceStatus(upd.Status)

	if err := repository.UpsertRace(ctx, upd.RaceID, upd.Track, upd.Number, status); err != nil {
		return err
	}
	if err := rcache.Set(ctx, upd.RaceID, status, statusTTL); err != nil {
		log.Warn("race status cache", zap.Error(err))
	}

	for _, q := range upd.Odds {
		if err := board.Set(ctx, q.RaceID, repo.WagerType(q.WagerType), q.Entrant, q.Odd); err != nil {
			log.Warn("odds board set", zap.Error(err))
		}
	}

	if status != repo.RaceFinished || upd.Result == nil {
		return nil
	}

	caller := settlement.Caller{System: true, Source: upd.Source}

	// Retry limitado: race_updates com resultado malformado vão pra DLQ
	var summary *settlement.Summary
	var err error
	const retries = 3
	for i := 0; i < retries; i++ {
		summary, err = engine.Settle(ctx, caller, upd.RaceID, *upd.Result)
		if err == nil {
			break
		}
		switch fault.KindOf(err) {
		case fault.FailedPrecondition:
			// Corrida já liquidada (reentrega do Kafka): nada a fazer
			log.Info("race already settled", zap.String("raceId", upd.RaceID))
			return nil
		case fault.InvalidArgument:
			// Resultado inválido não melhora com retry
			if dlqWriter != nil {
				_ = kafka.WriteJSON(ctx, dlqWriter, upd.RaceID, mustJSON(upd))
			}
			return err
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	if err != nil {
		if dlqWriter != nil {
			_ = kafka.WriteJSON(ctx, dlqWriter, upd.RaceID, mustJSON(upd))
		}
		return err
	}

	evs := ev.RaceSettled{
		RaceID:       upd.RaceID,
		TotalBets:    summary.TotalBets,
		TotalWinners: summary.TotalWinners,
		TotalLosers:  summary.TotalLosers,
		PaidOutCents: summary.PaidOutCents,
		FinalizedBy:  caller.FinalizedBy(),
		Ts:           time.Now(),
	}
	return kafka.WriteJSON(ctx, settledWriter, upd.RaceID, mustJSON(evs))
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}
