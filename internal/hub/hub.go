// Package hub je kontextový objekt aplikace. Vlastní spojení na broker, úložiště
// a všechny komponenty nad nimi. Nic z toho není globální.
package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/RadouaneGaroiaz/mqtt-project/internal/advice"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/api"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/command"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/config"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/ingest"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/live"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/query"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/store"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/store/influxstore"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/store/mongostore"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/store/pgstore"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/store/redislatest"
	"github.com/RadouaneGaroiaz/mqtt-project/internal/transport"
)

// Hub drží všechny komponenty jednoho běžícího procesu. Exportovaná pole jsou
// pro testy a cmd/, za běhu se nemění.
type Hub struct {
	cfg    config.Config
	logger *slog.Logger

	Catalog  *config.Catalog
	Store    store.Store
	Adapter  *transport.Adapter
	Ingest   *ingest.Handler
	Engine   *query.Engine
	Commands *command.Service
	Live     *live.Hub
	Registry *prometheus.Registry
}

type options struct {
	store      store.Store
	catalog    *config.Catalog
	journal    command.Journal
	logService string
}

// Option mění sestavení hubu v New.
type Option func(*options)

// WithStore přeskočí STORE_BACKEND a použije dodané úložiště.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithCatalog přeskočí načtení SENSORS_FILE.
func WithCatalog(c *config.Catalog) Option {
	return func(o *options) { o.catalog = c }
}

// WithJournal přeskočí COMMAND_TABLE a použije dodaný deník příkazů.
func WithJournal(j command.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithLogMirror posílá logy i do MQTT na logs/<service>, vedle stdout.
func WithLogMirror(service string) Option {
	return func(o *options) { o.logService = service }
}

// New sestaví všechny komponenty. Na broker se ještě nepřipojuje, to dělá Run.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Hub, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	catalog := o.catalog
	if catalog == nil {
		var err error
		if catalog, err = config.LoadCatalog(cfg.SensorsFile); err != nil {
			return nil, err
		}
	}

	// Adapter musí vzniknout dřív než logger, pokud logujeme do MQTT.
	adapter := transport.New(transport.Options{
		Broker:       cfg.MQTTBroker,
		ClientID:     cfg.MQTTClientID,
		Topics:       catalog.Topics(),
		QoS:          cfg.MQTTQoS,
		ConnectRetry: cfg.MQTTConnectRetry,
		MaxReconnect: cfg.MQTTMaxReconnect,
		Buffer:       cfg.MQTTBuffer,
	}, logger)

	if o.logService != "" {
		multi := io.MultiWriter(os.Stdout, adapter.LogWriter(o.logService))
		logger = slog.New(slog.NewJSONHandler(multi, &slog.HandlerOptions{Level: cfg.Level()}))
	}

	s := o.store
	if s == nil {
		var err error
		if s, err = openStore(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}

	journal := o.journal
	if journal == nil {
		var err error
		if journal, err = openJournal(ctx, cfg, logger); err != nil {
			s.Close()
			return nil, err
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	liveHub := live.NewHub(logger)

	h := &Hub{
		cfg:      cfg,
		logger:   logger,
		Catalog:  catalog,
		Store:    s,
		Adapter:  adapter,
		Live:     liveHub,
		Registry: reg,
	}
	h.Ingest = ingest.NewHandler(s, logger,
		ingest.WithObserver(liveHub),
		ingest.WithMetrics(ingest.NewMetrics(reg)),
		ingest.WithRetry(cfg.IngestMaxRetries, cfg.IngestRetryBackoff),
	)
	h.Engine = query.NewEngine(s, catalog, query.WithAdvisor(advice.Evaluate))
	h.Commands = command.NewService(adapter, catalog, logger,
		command.WithJournal(journal),
		command.WithMetrics(command.NewMetrics(reg)),
	)

	logger.Info("Hub sestaven", "backend", cfg.StoreBackend, "sensors", catalog.IDs(), "redis", cfg.RedisAddr != "")
	return h, nil
}

// Logger vrací logger hubu (případně zrcadlený do MQTT).
func (h *Hub) Logger() *slog.Logger {
	return h.logger
}

// Handler vrací HTTP rozhraní nad tímto hubem.
func (h *Hub) Handler() http.Handler {
	a := api.NewAPIHandler(h.Engine, h.Commands, h.Catalog, h.logger)
	metrics := promhttp.HandlerFor(h.Registry, promhttp.HandlerOpts{})
	return api.NewRouter(a, h.Live, metrics, h.Adapter.Connected, h.cfg.AllowedOrigins(), h.logger)
}

// Run spustí transport, ingestor a websocket hub. Blokuje do zrušení contextu.
func (h *Hub) Run(ctx context.Context) error {
	go h.Live.Run(ctx)
	go h.Ingest.Run(ctx, h.Adapter.Messages())

	return h.Adapter.Run(ctx)
}

// Close zavře úložiště. Broker odpojuje Run při zrušení contextu.
func (h *Hub) Close() error {
	return h.Store.Close()
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch cfg.StoreBackend {
	case "mongo":
		s, err = mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case "postgres":
		s, err = pgstore.Connect(ctx, cfg.PostgresURL)
	case "influx":
		s, err = influxstore.Connect(ctx, cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	case "memory":
		s = store.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q (mongo, postgres, influx, memory)", cfg.StoreBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}

	if cfg.RedisAddr == "" {
		return s, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		s.Close()
		rdb.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("Cache posledního čtení zapnuta", "redis", cfg.RedisAddr)
	return redislatest.New(s, rdb, logger), nil
}

func openJournal(ctx context.Context, cfg config.Config, logger *slog.Logger) (command.Journal, error) {
	if cfg.CommandTable == "" {
		return command.NopJournal{}, nil
	}

	// Přihlašovací údaje z prostředí (AWS_REGION, AWS_PROFILE, role ...).
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	logger.Info("Deník příkazů v DynamoDB", "table", cfg.CommandTable)
	return command.NewDynamoJournal(dynamodb.NewFromConfig(awsCfg), cfg.CommandTable), nil
}
