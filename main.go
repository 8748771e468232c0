package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"pix-remittance/internal/audit"
	"pix-remittance/internal/auth"
	"pix-remittance/internal/observability/metrics"
	remittanceapp "pix-remittance/internal/remittance/application"
	remittance "pix-remittance/internal/remittance/domain"
	"pix-remittance/internal/remittance/infrastructure/file"
	"pix-remittance/internal/remittance/infrastructure/memory"
	remittancerepo "pix-remittance/internal/remittance/infrastructure/postgres"
	remittancehttp "pix-remittance/internal/remittance/interfaces"
	"pix-remittance/internal/remittance/notify"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	remCfg, err := remittanceapp.LoadConfig()
	if err != nil {
		logger.Fatalf("remittance config error: %v", err)
	}
	loc, err := remCfg.Location()
	if err != nil {
		logger.Fatalf("remittance timezone error: %v", err)
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	} else if remCfg.Counter == remittanceapp.CounterPostgres {
		logger.Fatal("DATABASE_URL or PG_DSN is required for the postgres counter")
	}

	metrics.Init(db, logger)

	var counter remittance.SequenceCounter
	switch remCfg.Counter {
	case remittanceapp.CounterPostgres:
		counter = remittancerepo.NewSequenceCounter(db, remittancerepo.WithSequenceName(cfg.SequenceName))
	case remittanceapp.CounterMemory:
		logger.Printf("remittance counter: in-memory, sequence resets on restart")
		counter = memory.NewSequenceCounter(0)
	default:
		fileCounter, err := file.NewSequenceCounter(remCfg.CounterPath)
		if err != nil {
			logger.Fatalf("sequence counter error: %v", err)
		}
		counter = fileCounter
	}

	encoder, err := remittance.NewEncoder(counter, remittance.WithLocation(loc))
	if err != nil {
		logger.Fatalf("encoder error: %v", err)
	}
	archive, err := file.NewArchive(remCfg.ArchiveRoot)
	if err != nil {
		logger.Fatalf("archive error: %v", err)
	}

	var repo remittance.Repository
	var auditLogger audit.Logger
	if db != nil {
		repo = remittancerepo.NewRemittanceRepository(db)
		auditLogger = audit.NewRepository(db)
	} else {
		repo = memory.NewRemittanceRepository()
		auditLogger = audit.NewLogWriter(logger)
	}

	opts := []remittanceapp.ServiceOption{
		remittanceapp.WithLogger(logger),
		remittanceapp.WithPublicBaseURL(remCfg.PublicBaseURL),
	}
	if remCfg.WebhookURL != "" {
		opts = append(opts, remittanceapp.WithNotifier(notify.NewWebhookNotifier(remCfg.WebhookURL)))
	}
	service, err := remittanceapp.NewService(encoder, repo, archive, opts...)
	if err != nil {
		logger.Fatalf("remittance service error: %v", err)
	}

	handler, err := remittancehttp.NewRemittanceHandler(service, remCfg.Originator, cfg.TenantID, auth.NewRemittanceChecker(repo), auditLogger, logger)
	if err != nil {
		logger.Fatalf("remittance handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/remittances", handler)
	mux.Handle("/api/v1/remittances/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "db unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
	}
	logger.Printf("remittance counter=%s originator=%q timezone=%s", remCfg.Counter, remCfg.Originator.Name, loc)
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL              string
	HTTPAddr                 string
	TenantID                 string
	SequenceName             string
	JWTSecret                string
	ReadHeaderTimeoutSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:              getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:                 getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:                 getenvDefault("TENANT_ID", "tenant-demo"),
		SequenceName:             getenvDefault("REMITTANCE_SEQUENCE_NAME", "nsa"),
		JWTSecret:                getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		ReadHeaderTimeoutSeconds: getenvIntDefault("HTTP_READ_HEADER_TIMEOUT_SECONDS", 10),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
