// cmd/flashsale-service/main.go
package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"pulsecart/internal/pkg/bootstrap"
	"pulsecart/internal/pkg/logger"
	"pulsecart/internal/pkg/mq"
	"pulsecart/internal/pkg/redis"
	"pulsecart/internal/pkg/zookeeper"
	"pulsecart/internal/service/flashsale/application"
	"pulsecart/internal/service/flashsale/domain"
	"pulsecart/internal/service/flashsale/domain/port"
	"pulsecart/internal/service/flashsale/infrastructure"
	"pulsecart/internal/service/flashsale/infrastructure/adapter"
	"pulsecart/internal/service/flashsale/interfaces"
)

const (
	serviceName       = "flashsale-service"
	reconcileInterval = 30 * time.Second
	queueCapacity     = 4096
)

func main() {
	bootstrap.Init()
	cfg := bootstrap.GetCurrentConfig()

	// 后台组件的生命周期与进程一致，关停时由 OnShutdown 钩子收束
	runCtx, stopAll := context.WithCancel(context.Background())

	var (
		pool        *application.WorkerPool
		durable     *infrastructure.DurableSync
		reconciler  *infrastructure.Reconciler
		dltConsumer *interfaces.DltConsumer
		intentQueue port.IntentQueue
		redisClient *redis.Client
		zkConn      *zookeeper.Conn
		unsubscribe func()
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.HTTPPort,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			tracer := otel.Tracer(serviceName)
			log := logger.Logger()

			// --- 库存账本 ---
			var ledger port.StockLedger
			if cfg.App.FeatureFlags.EnableRedisLedger {
				redisClient = redis.NewClient(cfg.Infra.Redis.Addr, cfg.Infra.Redis.Password, cfg.Infra.Redis.DB)
				if err := redisClient.Ping(runCtx); err != nil {
					log.Fatal().Err(err).Msg("failed to connect to redis")
				}
				ledger = adapter.NewRedisLedger(redisClient)
				log.Info().Str("addr", cfg.Infra.Redis.Addr).Msg("✅ Using redis stock ledger")
			} else {
				ledger = infrastructure.NewMemoryLedger()
				log.Info().Msg("✅ Using in-memory stock ledger")
			}

			// --- 商品目录与持久化 ---
			var store interface {
				domain.ProductRepository
				SaveReservation(ctx context.Context, r *domain.Reservation) error
			}
			if cfg.Infra.Mysql.DSN != "" {
				db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
				if err != nil {
					log.Fatal().Err(err).Msg("failed to connect to mysql")
				}
				store = infrastructure.NewGormProductRepository(db)
			} else {
				log.Warn().Msg("MySQL DSN not configured, using in-memory product catalog")
				store = infrastructure.NewMemoryProductRepository()
			}

			// --- 意向队列与死信槽 ---
			var deadLetters port.DeadLetterSink
			kafkaEnabled := len(cfg.Infra.Kafka.Brokers) > 0
			if kafkaEnabled {
				intentQueue = adapter.NewKafkaIntentQueue(
					mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.IntentTopic),
					mq.NewReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.GroupID, cfg.Infra.Kafka.IntentTopic),
				)
				deadLetters = adapter.NewKafkaDeadLetterSink(
					mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.DeadLetterTopic),
					cfg.Infra.Kafka.IntentTopic,
				)
			} else {
				log.Warn().Msg("Kafka brokers not configured, using in-process intent queue")
				intentQueue = infrastructure.NewMemoryQueue(queueCapacity)
				deadLetters = infrastructure.NewMemoryDeadLetterSink()
			}

			// --- 结果事件流: 进程内扇出 + 可选的 Kafka 广播 ---
			hub := infrastructure.NewOutcomeHub(64)
			publishers := []port.OutcomePublisher{hub}
			if kafkaEnabled {
				publishers = append(publishers, adapter.NewKafkaOutcomePublisher(
					mq.NewWriter(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OutcomeTopic),
				))
			}
			outcomes := infrastructure.NewCompositeOutcomePublisher(publishers...)

			// --- 准入策略 ---
			policy, err := adapter.NewCELPolicy(cfg.App.Policy.Expression)
			if err != nil {
				log.Fatal().Err(err).Str("expression", cfg.App.Policy.Expression).Msg("failed to compile purchase policy")
			}

			// --- 持久化同步与对账 ---
			durable = infrastructure.NewDurableSync(store, ledger, 1024)
			var reconcileLock infrastructure.Locker
			if len(cfg.Infra.Zookeeper.Servers) > 0 {
				zkConn, err = zookeeper.Connect(cfg.Infra.Zookeeper.Servers, 5*time.Second)
				if err != nil {
					log.Fatal().Err(err).Msg("failed to connect to zookeeper")
				}
				reconcileLock = zookeeper.NewDistributedLock(zkConn, "stock-reconcile")
			}
			reconciler = infrastructure.NewReconciler(store, ledger, reconcileLock, reconcileInterval)

			// --- 预订服务与异步流水线 ---
			service := application.NewReservationService(ledger, store, intentQueue, outcomes, policy, durable, tracer)
			cancels := application.NewCancelRegistry()
			retry := application.NewRetryCoordinator(intentQueue, deadLetters, outcomes,
				cfg.App.Worker.MaxAttempts, cfg.App.Worker.RetryBackoff.Std())
			pool = application.NewWorkerPool(intentQueue, service, retry, cancels, outcomes,
				cfg.App.Worker.Count, tracer)

			if err := service.WarmStock(runCtx); err != nil {
				log.Warn().Err(err).Msg("Stock warm-up failed, counters will be seeded lazily")
			}

			durable.Start(runCtx)
			reconciler.Start(runCtx)
			pool.Start(runCtx)

			if kafkaEnabled {
				dltConsumer = interfaces.NewDltConsumer(cfg.Infra.Kafka.Brokers,
					cfg.Infra.Kafka.GroupID+"-dlt", cfg.Infra.Kafka.DeadLetterTopic)
				go dltConsumer.Start(runCtx)
			}

			// --- HTTP 与 WebSocket 入口 ---
			handler := interfaces.NewPurchaseHandler(service, cancels, cfg.App.SyncTimeout.Std())
			handler.RegisterRoutes(appCtx.Mux)

			if cfg.App.FeatureFlags.EnablePushGateway {
				var outcomeCh <-chan *domain.ReservationOutcome
				outcomeCh, unsubscribe = hub.Subscribe()
				pushHub := interfaces.NewPushHub(outcomeCh)
				go pushHub.Run(runCtx)
				appCtx.Mux.HandleFunc("/ws", pushHub.ServeWs)
				log.Info().Msg("✅ Outcome push gateway enabled at /ws")
			}
		},
		OnShutdown: []func(ctx context.Context){
			func(ctx context.Context) {
				// 先停工作池，让在途意向处理完再收队列
				if pool != nil {
					pool.Stop(ctx)
				}
				switch q := intentQueue.(type) {
				case *adapter.KafkaIntentQueue:
					_ = q.Close()
				case *infrastructure.MemoryQueue:
					q.Close()
				}
				if dltConsumer != nil {
					_ = dltConsumer.Stop()
				}
				if reconciler != nil {
					reconciler.Stop(ctx)
				}
				if durable != nil {
					durable.Stop(ctx)
				}
				if unsubscribe != nil {
					unsubscribe()
				}
				if zkConn != nil {
					zkConn.Close()
				}
				if redisClient != nil {
					_ = redisClient.Close()
				}
				stopAll()
			},
		},
	})
}
