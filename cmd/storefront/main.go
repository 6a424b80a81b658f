package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/celenkdiyari/storefront/config"
	"github.com/celenkdiyari/storefront/internal/adminapi"
	"github.com/celenkdiyari/storefront/internal/app"
	"github.com/celenkdiyari/storefront/internal/shopapi"
	"github.com/celenkdiyari/storefront/internal/webserver"
)

var (
	version  = "develop"
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate every table, then exit")
	showVer  = flag.Bool("v", false, "show version")
)

func main() {
	flag.Parse()
	if *showVer {
		fmt.Println("storefront " + version)
		return
	}

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	zap.S().Infof("storefront %s starting", version)
	webserver.Init(application)
	adminapi.Init()
	shopapi.Init()

	go func() {
		if err := webserver.Listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalf("web server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := webserver.Shutdown(ctx); err != nil {
		zap.S().Errorf("web server shutdown: %v", err)
	}
	zap.S().Info("storefront stopped")
}
