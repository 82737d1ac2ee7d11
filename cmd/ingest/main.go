// Package main (in ingest-subfolder) provides launch of the HTTP batch-ingest service
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rapidphoto/pipeline/internal/dispatcher"
	"github.com/rapidphoto/pipeline/internal/mwlogger"
	"github.com/rapidphoto/pipeline/internal/notifier"
	"github.com/rapidphoto/pipeline/internal/pipeline"
	"github.com/rapidphoto/pipeline/internal/repository"
	"github.com/rapidphoto/pipeline/internal/storage"
	"github.com/rapidphoto/pipeline/internal/transport"
	"github.com/rapidphoto/pipeline/internal/vision/httpvision"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключиться к базе и накатить миграции
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)
	repo := repository.NewPostgresPhotoRepo(dbConn)

	// подключиться к хранилищу
	strg := storage.NewBlobStorage(appConfig, 10*time.Second)

	// клиенты внешних сервисов
	det := httpvision.NewClient(appConfig.GetString("VISION_URL"), 10*time.Second)
	ntf := notifier.NewHTTPNotifier(appConfig.GetString("BACKEND_URL"), appConfig.GetString("PIPELINE_SECRET"), 10*time.Second)

	// собираем пайплайн и диспетчер
	pipe, err := pipeline.New(pipeline.ConfigFromEnv(appConfig), repo, strg, det, ntf)
	if err != nil {
		log.Fatalf("Invalid pipeline configuration: %v", err)
	}
	disp := dispatcher.New(pipe, workerCount(appConfig))

	// cоздаем экземпляр хендлера HTTP и сетапим сервер
	handlers := transport.NewBatchHandler(disp)
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.POST("/v1/process", handlers.ProcessBatch) // батч записей на обработку
	engine.GET("/metrics", func(c *ginext.Context) {
		promhttp.Handler().ServeHTTP(c.Writer, c.Request)
	})

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия
	<-ctx.Done()

	shutdown(srv, dbConn)
	log.Println("Exiting ingest service...")
}

func workerCount(appConfig *config.Config) int {
	count, err := strconv.Atoi(appConfig.GetString("BATCH_WORKERS"))
	if err != nil || count <= 0 {
		count = 4
	}
	return count
}

func shutdown(srv *http.Server, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(closeCtx); err != nil {
		log.Println("Failed to stop HTTP-server correctly:", err)
	}
	log.Println("HTTP-server closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
