package main

import (
	"context"
	"net/http"
	"os"
	"pilotage/audit"
	"pilotage/bizerror"
	"pilotage/common"
	"pilotage/domain"
	"pilotage/domain/bordereau"
	"pilotage/domain/client"
	"pilotage/domain/closure"
	"pilotage/domain/dashboard"
	"pilotage/domain/deliverable"
	"pilotage/domain/lock"
	"pilotage/domain/project"
	"pilotage/domain/snapshot"
	"pilotage/domain/timeentry"
	"pilotage/esign"
	"pilotage/export"
	"pilotage/indices"
	"pilotage/infra/tracing"
	"pilotage/locker"
	"pilotage/persistence"
	"pilotage/render"
	"pilotage/servehttp"
	"pilotage/session"
	"pilotage/storage"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	addr := pflag.String("addr", ":80", "http listen address")
	migrateOnly := pflag.Bool("migrate-only", false, "migrate the database schema and exit")
	pflag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("load .env failed: %v", err)
	}
	logrus.Info("service start")

	closer := tracing.InitGlobalTracer(common.GetServiceName())
	defer closer.Close()

	dbConfig, err := persistence.ParseDatabaseConfigFromEnv()
	if err != nil {
		logrus.Fatalf("parse database config failed %v", err)
	}

	// create database (no conflict)
	if dbConfig.DriverType == "mysql" {
		if err := persistence.PrepareMysqlDatabase(dbConfig.DriverArgs); err != nil {
			logrus.Fatalf("failed to prepare database %v", err)
		}
	}

	// connect database
	ds := &persistence.DataSourceManager{DatabaseConfig: dbConfig}
	if err := ds.Start(); err != nil {
		logrus.Fatalf("database connection failed %v", err)
	}
	defer ds.Stop()

	if err := migrateDatabase(ds); err != nil {
		logrus.Fatalf("database migration failed %v", err)
	}
	if *migrateOnly {
		return
	}

	l := locker.FromEnv(os.Getenv("REDIS_ADDR"), os.Getenv("REDIS_PASSWORD"))
	store, err := storage.StoreFromEnv(context.Background())
	if err != nil {
		logrus.Fatalf("file storage init failed %v", err)
	}
	logrus.Infof("file storage backend: %s", store.BackendName())

	var renderer bordereau.DocumentRenderer
	if cfg := render.ConfigFromEnv(); cfg.Enabled() {
		renderer = render.NewClient(cfg)
	} else {
		logrus.Warn("RENDERER_URL is not set, document generation is disabled")
	}

	esClient, err := indices.CreateClientFromEnv()
	if err != nil {
		logrus.Fatalf("elasticsearch client init failed %v", err)
	}
	if esClient != nil {
		audit.Handlers = append(audit.Handlers, indices.IndexAuditHandle)
	}

	projects := project.NewProjectManager(ds)
	deliverables := deliverable.NewDeliverableManager(ds)
	entries := timeentry.NewTimeEntryManager(ds, l)
	locks := lock.NewLockManager(ds, l)
	closures := closure.NewClosureManager(ds, l)
	snapshots := snapshot.NewSnapshotManager(ds)
	bordereaux := bordereau.NewBordereauManager(ds, l, store, renderer)
	exports := export.NewExportManager(ds)

	signConfig := esign.ConfigFromEnv()
	var provider esign.Provider
	if signConfig.Enabled {
		provider = esign.NewClient(signConfig)
	}
	signatures := esign.NewSignatureManager(ds, bordereaux, store, provider, signConfig.ClientID)

	engine := gin.New()
	engine.Use(gin.Logger(), cors.New(corsConfig()), tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.GetServiceName())
	})

	auth := session.SimpleAuthFilter()
	servehttp.RegisterProjectHandler(engine, projects, deliverables, exports, auth)
	servehttp.RegisterClientHandler(engine, client.NewClientManager(ds), auth)
	servehttp.RegisterTimeEntryHandler(engine, entries, exports, auth)
	servehttp.RegisterCommentHandler(engine, timeentry.NewCommentManager(ds, l), auth)
	servehttp.RegisterDashboardHandler(engine, dashboard.NewDashboardManager(ds), auth)
	servehttp.RegisterPeriodHandler(engine, locks, closures, auth)
	servehttp.RegisterSnapshotHandler(engine, snapshots, auth)
	servehttp.RegisterBordereauHandler(engine, bordereaux, signatures, auth)
	servehttp.RegisterAuditHandler(engine, audit.NewAuditManager(ds), auth)
	servehttp.RegisterSignatureWebhook(engine, signatures)
	indices.RegisterIndicesRestAPI(engine, indices.NewAuditIndexer(ds), auth)

	servehttp.StartHTTPServer(engine, *addr)
}

func migrateDatabase(ds *persistence.DataSourceManager) error {
	// database migration (race condition)
	return ds.GormDB().AutoMigrate(
		&domain.Project{}, &domain.Deliverable{}, &domain.Client{}, &domain.Contact{},
		&timeentry.TimeEntry{}, &timeentry.BordereauComment{}, &lock.PeriodLock{}, &snapshot.Snapshot{},
		&storage.FileObject{}, &bordereau.Bordereau{}, &bordereau.BordereauVersion{},
		&esign.SignatureAgreement{}, &audit.AuditRecord{},
	).Error
}

// corsConfig allows the origins listed in CORS_ALLOW_ORIGINS, every origin when unset.
func corsConfig() cors.Config {
	config := cors.DefaultConfig()
	config.AllowCredentials = true
	config.AllowHeaders = append(config.AllowHeaders, "Authorization", servehttp.HeaderAdobeSignClientID)
	config.ExposeHeaders = []string{"Content-Disposition", servehttp.HeaderAdobeSignClientID}
	config.MaxAge = 12 * time.Hour
	if origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS")); origins != "" {
		config.AllowOrigins = strings.Split(origins, ",")
	} else {
		config.AllowOriginFunc = func(origin string) bool { return true }
	}
	return config
}
