package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"cian-pipeline/internal/adapters/cianfetcher"
	"cian-pipeline/internal/adapters/filestorage"
	postgres_adapter "cian-pipeline/internal/adapters/postgres"
	rabbitmq_adapter "cian-pipeline/internal/adapters/rabbitmq"
	"cian-pipeline/internal/adapters/redislock"
	"cian-pipeline/internal/configs"
	"cian-pipeline/internal/constants"
	"cian-pipeline/internal/core/domain"
	"cian-pipeline/internal/core/filter"
	"cian-pipeline/internal/core/port"
	"cian-pipeline/internal/core/usecase"
	"cian-pipeline/pkg/postgres"
	pkgredis "cian-pipeline/pkg/redis"
	"cian-pipeline/pkg/rabbitmq/rabbitmq_common"
	"cian-pipeline/pkg/rabbitmq/rabbitmq_consumer"
	"cian-pipeline/pkg/rabbitmq/rabbitmq_producer"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App – структура приложения
type App struct {
	config        *configs.AppConfig
	dbPool        *pgxpool.Pool
	redisClient   *redis.Client
	eventProducer *rabbitmq_producer.Publisher

	// Use cases, которые запускаются самим приложением
	collectUseCase *usecase.CollectListingsUseCase
	filterUseCase  *usecase.FilterPendingUseCase
	bucketsUseCase *usecase.RecomputeBucketsUseCase
	scoresUseCase  *usecase.RecomputeScoresUseCase
	exportUseCase  *usecase.ExportProductionUseCase

	// Входящие порты (слушатели событий)
	detailEventsListener port.EventListenerPort
}

// NewApp создает новый экземпляр приложения.
// Это "Composition Root", где все зависимости создаются и связываются.
func NewApp() (*App, error) {
	appConfig, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading application configuration: %w", err)
	}

	// 1. Инициализация низкоуровневых зависимостей
	dbPool, err := postgres.NewClient(context.Background(), postgres.Config{DatabaseURL: appConfig.Database.URL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	log.Println("Successfully connected to PostgreSQL pool!")

	redisClient, err := pkgredis.NewClient(pkgredis.Config{
		Addr:     appConfig.Redis.Addr,
		Password: appConfig.Redis.Password,
		DB:       appConfig.Redis.DB,
	})
	if err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("Successfully connected to Redis!")

	producerCfg := rabbitmq_producer.PublisherConfig{
		Config:                   rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		ExchangeName:             constants.ExchangeCianTasks,
		ExchangeType:             "direct",
		DurableExchange:          true,
		DeclareExchangeIfMissing: true,
	}
	eventProducer, err := rabbitmq_producer.NewPublisher(producerCfg)
	if err != nil {
		_ = redisClient.Close()
		dbPool.Close()
		return nil, fmt.Errorf("failed to create event producer: %w", err)
	}
	log.Println("RabbitMQ Event Producer initialized.")

	// 2. Инициализация исходящих адаптеров
	cianAdapter := cianfetcher.NewCianFetcherAdapter(
		[]string{"www.cian.ru", "cian.ru"},
		appConfig.Collector.RandomDelay,
	)
	log.Println("Cian Fetcher Adapter initialized.")

	// Закрывает уже открытые соединения при сбое дальнейшей инициализации.
	closeOnInitError := func() {
		_ = eventProducer.Close()
		_ = redisClient.Close()
		dbPool.Close()
	}

	detailQueueAdapter, err := rabbitmq_adapter.NewDetailQueueAdapter(eventProducer, constants.RoutingKeyDetailTasks)
	if err != nil {
		closeOnInitError()
		return nil, fmt.Errorf("failed to create detail queue adapter: %w", err)
	}
	recordLockAdapter, err := redislock.NewRecordLockAdapter(redisClient, appConfig.Enricher.LockTTL)
	if err != nil {
		closeOnInitError()
		return nil, fmt.Errorf("failed to create record lock adapter: %w", err)
	}
	exportAdapter, err := filestorage.NewProductionExportAdapter(appConfig.Analyzer.ExportFile)
	if err != nil {
		closeOnInitError()
		return nil, fmt.Errorf("failed to create production export adapter: %w", err)
	}

	storageAdapter, err := postgres_adapter.NewListingStorageAdapter(dbPool)
	if err != nil {
		closeOnInitError()
		return nil, fmt.Errorf("failed to create listing storage adapter: %w", err)
	}
	sourceRepo, err := postgres_adapter.NewSourceRepository(dbPool)
	if err != nil {
		closeOnInitError()
		return nil, fmt.Errorf("failed to create source repository: %w", err)
	}
	bucketRepo, err := postgres_adapter.NewBucketRepository(dbPool)
	if err != nil {
		closeOnInitError()
		return nil, fmt.Errorf("failed to create bucket repository: %w", err)
	}
	log.Println("All outgoing adapters initialized.")

	// Первичное наполнение таблицы источников предопределенными URL.
	for _, src := range constants.GetPredefinedSources() {
		if err := sourceRepo.EnsureSource(context.Background(), src.Name, src.URL); err != nil {
			log.Printf("App: failed to seed source '%s': %v", src.Name, err)
		}
	}

	// 3. ИНИЦИАЛИЗАЦИЯ USE CASES (ядра бизнес-логики)
	collectUseCase := usecase.NewCollectListingsUseCase(
		cianAdapter, storageAdapter, sourceRepo, detailQueueAdapter,
		appConfig.Collector.MaxPages, appConfig.Collector.StaleAfter,
	)
	enrichUseCase := usecase.NewEnrichListingUseCase(
		cianAdapter, storageAdapter, recordLockAdapter,
		usecase.RetryPolicy{
			MaxAttempts: appConfig.Enricher.MaxRetries,
			BaseDelay:   appConfig.Enricher.RetryBaseDelay,
		},
	)
	chain := filter.NewChain(configs.FilterProfile(appConfig.Analyzer.FilterProfile))
	filterUseCase := usecase.NewFilterPendingUseCase(
		storageAdapter, sourceRepo, bucketRepo, chain, appConfig.Analyzer.MinBucketSamples,
	)
	bucketsUseCase := usecase.NewRecomputeBucketsUseCase(bucketRepo, appConfig.Analyzer.RetainOnEmpty)
	scoresUseCase := usecase.NewRecomputeScoresUseCase(storageAdapter, bucketRepo, appConfig.Analyzer.MinBucketSamples)
	exportUseCase := usecase.NewExportProductionUseCase(storageAdapter, exportAdapter, appConfig.Analyzer.ExportLimit)
	log.Println("All use cases initialized.")

	// 4. ИНИЦИАЛИЗАЦИЯ ВХОДЯЩИХ АДАПТЕРОВ (те, которые ВЫЗЫВАЮТ наше ядро)
	detailConsumerCfg := rabbitmq_consumer.ConsumerConfig{
		Config:              rabbitmq_common.Config{URL: appConfig.RabbitMQ.URL},
		QueueName:           constants.QueueDetailTasks,
		RoutingKeyForBind:   constants.RoutingKeyDetailTasks,
		ExchangeNameForBind: constants.ExchangeCianTasks,
		PrefetchCount:       appConfig.RabbitMQ.PrefetchCount,
		DurableQueue:        true,
		ConsumerTag:         "detail-enricher-adapter",
		DeclareQueue:        true,
	}
	detailListener, err := rabbitmq_adapter.NewDetailConsumerAdapter(detailConsumerCfg, enrichUseCase)
	if err != nil {
		closeOnInitError()
		return nil, err
	}
	log.Println("Detail Events Listener initialized.")

	// 5. Собираем приложение
	application := &App{
		config:               appConfig,
		dbPool:               dbPool,
		redisClient:          redisClient,
		eventProducer:        eventProducer,
		collectUseCase:       collectUseCase,
		filterUseCase:        filterUseCase,
		bucketsUseCase:       bucketsUseCase,
		scoresUseCase:        scoresUseCase,
		exportUseCase:        exportUseCase,
		detailEventsListener: detailListener,
	}

	return application, nil
}

// StartCollectorLoop запускает периодический сбор кандидатов по источникам.
func (a *App) StartCollectorLoop(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("App: Collector loop started.")

		for {
			stats, err := a.collectUseCase.Execute(ctx)
			if err != nil {
				log.Printf("App: Collection cycle failed: %v\n", err)
			} else {
				log.Printf("App: Collection cycle done: %d source(s), %d page(s), %d created, %d enqueued, %d skipped.\n",
					stats.Sources, stats.Pages, stats.Created, stats.Enqueued, stats.Skipped)
			}

			select {
			case <-ctx.Done():
				log.Println("App: Collector loop stopped.")
				return
			case <-time.After(a.config.Collector.CycleInterval):
			}
		}
	}()
}

// StartAnalyzerLoop запускает периодическую фильтрацию, пересчет корзин
// и оценок, и выгрузку витрины. Когда работа была, пауза укорачивается.
func (a *App) StartAnalyzerLoop(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("App: Analyzer loop started.")

		for {
			processed := a.runAnalyzerCycle(ctx)

			delay := a.config.Analyzer.Interval
			if processed > 0 {
				delay = a.config.Analyzer.BusyInterval
			}

			select {
			case <-ctx.Done():
				log.Println("App: Analyzer loop stopped.")
				return
			case <-time.After(delay):
			}
		}
	}()
}

// runAnalyzerCycle выполняет один проход анализа и возвращает число
// обработанных pending-объявлений.
func (a *App) runAnalyzerCycle(ctx context.Context) int {
	stats, err := a.filterUseCase.Execute(ctx, a.config.Analyzer.FilterBatchLimit)
	if err != nil {
		log.Printf("App: Filter pass failed: %v\n", err)
	} else if stats.Processed > 0 {
		log.Printf("App: Filter pass done: %d processed, %d approved, %d rejected.\n",
			stats.Processed, stats.Approved, stats.Rejected)
	}

	if _, err := a.bucketsUseCase.Execute(ctx); err != nil && !errors.Is(err, domain.ErrBaselineUnavailable) {
		log.Printf("App: Bucket recompute failed: %v\n", err)
	}
	if _, err := a.scoresUseCase.Execute(ctx); err != nil {
		log.Printf("App: Score recompute failed: %v\n", err)
	}
	if _, err := a.exportUseCase.Execute(ctx); err != nil {
		log.Printf("App: Production export failed: %v\n", err)
	}

	return stats.Processed
}

// Run запускает все компоненты приложения и управляет их жизненным циклом.
func (a *App) Run() error {
	// Единый контекст приложения для graceful shutdown
	appCtx, cancelApp := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	defer func() {
		log.Println("App: Shutdown sequence initiated...")

		log.Println("App: Waiting for background processes to finish...")
		wg.Wait()
		log.Println("App: All background processes finished.")

		if a.detailEventsListener != nil {
			if err := a.detailEventsListener.Close(); err != nil {
				log.Printf("App: Error closing detail events listener: %v\n", err)
			}
		}
		if a.eventProducer != nil {
			if err := a.eventProducer.Close(); err != nil {
				log.Printf("App: Error closing event producer: %v\n", err)
			}
		}
		if a.redisClient != nil {
			if err := a.redisClient.Close(); err != nil {
				log.Printf("App: Error closing Redis client: %v\n", err)
			}
		}
		if a.dbPool != nil {
			a.dbPool.Close()
			log.Println("App: PostgreSQL pool closed.")
		}
		log.Println("Application shut down gracefully.")
	}()

	log.Println("Application is starting...")

	a.StartCollectorLoop(appCtx, &wg)
	a.StartAnalyzerLoop(appCtx, &wg)

	consumerErrors := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("App: Starting Detail Events Listener...")
		if err := a.detailEventsListener.Start(appCtx); err != nil && appCtx.Err() == nil {
			log.Printf("App: Detail Events Listener stopped with an unexpected error: %v", err)
			consumerErrors <- fmt.Errorf("detail events listener error: %w", err)
		} else {
			log.Println("App: Detail Events Listener stopped gracefully.")
		}
	}()

	// Ожидание сигнала на завершение или ошибки от одного из компонентов
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("Application running. Waiting for signals or consumer error...")
	select {
	case receivedSignal := <-quit:
		log.Printf("App: Received signal: %s. Shutting down...\n", receivedSignal)
	case err := <-consumerErrors:
		log.Printf("App: A critical component failed: %v. Shutting down...\n", err)
	case <-appCtx.Done():
		log.Println("App: Context was cancelled unexpectedly. Shutting down...")
	}

	cancelApp()

	return nil
}
