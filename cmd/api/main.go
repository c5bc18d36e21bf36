package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hamedAligholizade/sefareshgiri-bot/internal/checkout"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/config"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/httpx"
	kafkax "github.com/hamedAligholizade/sefareshgiri-bot/internal/kafka"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/notify"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/orders"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/postgres"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/redisx"
	"github.com/hamedAligholizade/sefareshgiri-bot/internal/zarinpal"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer utk notifikasi
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicNotifications, 1024)
	prod.Start()
	notifier := &notify.Kafka{Producer: prod, Service: cfg.ServiceName}

	// Gateway
	gateway := zarinpal.New(cfg.MerchantID, cfg.CallbackURL, cfg.Sandbox)

	// Core
	store := &orders.Store{DB: db}
	ledger := &orders.InventoryLedger{DB: db}
	coordinator := &checkout.Coordinator{
		Ledger:   ledger,
		Store:    store,
		Gateway:  gateway,
		Notifier: notifier,
	}
	reconciler := &checkout.Reconciler{
		Store:            store,
		Ledger:           ledger,
		Gateway:          gateway,
		Notifier:         notifier,
		RestockOnFailure: cfg.RestockOnPaymentFailure,
	}

	router := httpx.NewRouter()
	sh := &httpx.ShopHandler{
		Coordinator: coordinator,
		Reconciler:  reconciler,
		Catalog:     &orders.Catalog{DB: db},
		Store:       store,
		Lister:      store,
		Redis:       rdb,
		Service:     cfg.ServiceName,
	}
	sh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sig:
		case <-gctx.Done():
		}
		log.Println("shutting down...")

		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("exit: %v", err)
	}
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
