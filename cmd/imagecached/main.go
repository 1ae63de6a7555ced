// Command imagecached runs a minimal HTTP server exercising the image
// cache engine end to end: GET /image?url=... loads (and caches) an
// image, GET /metrics exposes the Prometheus registry.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdguardTeam/golibs/log"
	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bboehmke/imagecached/imagecache/codec"
	"github.com/bboehmke/imagecached/imagecache/config"
	"github.com/bboehmke/imagecached/imagecache/diskcache"
	"github.com/bboehmke/imagecached/imagecache/downloader"
	"github.com/bboehmke/imagecached/imagecache/manager"
	"github.com/bboehmke/imagecached/imagecache/memcache"
)

func main() {
	log.Info("Starting imagecached...")

	cfg := env.Must(env.ParseAs[config.Config]())
	cfg.Print()

	memCache := memcache.New(memcache.Config{
		MaxCost:  int64(cfg.Memory.MaxCost),
		MaxCount: cfg.Memory.MaxCount,
	})

	diskCache, err := diskcache.New(diskcache.Config{
		Directory:     cfg.Disk.Directory,
		MaxBytes:      int64(cfg.Disk.MaxBytes),
		MaxAge:        cfg.Disk.MaxAge,
		Quality:       cfg.Disk.Quality,
		EnableLogging: cfg.Disk.EnableLogging,
	})
	if err != nil {
		log.Fatal(err)
	}

	dl := downloader.New(downloader.Config{
		MaxRetries:    cfg.Download.MaxRetries,
		RetryDelay:    cfg.Download.RetryDelay,
		Timeout:       cfg.Download.Timeout,
		Headers:       cfg.Download.Headers,
		MaxConcurrent: cfg.Limiter.MaxConcurrent,
		RPS:           cfg.Limiter.RPS,
		EnableLogging: cfg.Download.EnableLogging,
	})

	mgr := manager.New(memCache, diskCache, dl)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/image", handleImage(mgr))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
	log.Info("Listening on %s", cfg.ListenAddr)

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)
	<-signalChannel

	// Clean up.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Info("shutdown: %v", err)
	}
}

// handleImage serves GET /image?url=<source>, loading through the cache
// manager and re-encoding at codec.DefaultQuality.
func handleImage(mgr *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := r.URL.Query().Get("url")
		if url == "" {
			http.Error(w, "missing url parameter", http.StatusBadRequest)
			return
		}

		img, err := mgr.Load(r.Context(), url, nil)
		if err != nil {
			log.Info("load %s: %v", url, err)
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}

		data, err := img.Encode(codec.DefaultQuality)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(data)
	}
}
