// Package config loads the settings of the indexer worker from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ulroy-ai/ulroy-go"
	"github.com/ulroy-ai/ulroy-go/internal/events"
	"github.com/ulroy-ai/ulroy-go/internal/storage"

	"github.com/hashicorp/go-multierror"
)

const (
	MirrorNone      = ""
	MirrorTypesense = "typesense"
)

type Worker struct {
	Env   string
	Port  string
	Debug bool

	DatabaseURL string
	DBMaxConns  int32

	NatsURL string
	Events  *events.EventConfig

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool
	S3Bucket    storage.Bucket

	UlroyAPIKey    string
	UlroyBaseURL   string
	RequestTimeout time.Duration
	PollInterval   time.Duration
	WaitTimeout    time.Duration
	TaskTTL        time.Duration

	IndexMirror     string
	TypesenseURL    string
	TypesenseKey    string
	TypesensePrefix string

	OTELCollectorURL string
}

// HandlerTimeout bounds one event: a submit request, the wait and the status
// request that ends it.
func (w Worker) HandlerTimeout() time.Duration {
	return w.WaitTimeout + 2*w.RequestTimeout + 10*time.Second
}

func (w Worker) WaitOptions() ulroy.WaitOptions {
	return ulroy.WaitOptions{
		Wait:         true,
		PollInterval: w.PollInterval,
		Timeout:      w.WaitTimeout,
	}
}

// LoadWorker reads the worker settings through getenv, normally os.Getenv.
// Every problem found is reported, not only the first.
func LoadWorker(getenv func(string) string) (Worker, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(key, fallback string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fallback
	}

	var errs *multierror.Error
	duration := func(key string, fallback time.Duration) time.Duration {
		raw := getenv(key)
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return d
	}
	integer := func(key string, fallback int) int {
		raw := getenv(key)
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", key, err))
			return fallback
		}
		return n
	}
	required := func(key string) string {
		v := getenv(key)
		if v == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s is required", key))
		}
		return v
	}

	cfg := Worker{
		Env:   get("INDEX_WORKER_ENV", "production"),
		Port:  get("INDEX_WORKER_PORT", "8081"),
		Debug: get("INDEX_WORKER_DEBUG", "false") == "true",

		DatabaseURL: required("DATABASE_URL"),
		DBMaxConns:  int32(integer("DATABASE_MAX_CONNS", 10)),

		NatsURL: required("NATS_URL"),
		Events: &events.EventConfig{
			IndexDocument:   required("EVENT_INDEX_DOCUMENT"),
			DeleteDocument:  required("EVENT_DELETE_DOCUMENT"),
			DocumentIndexed: getenv("EVENT_DOCUMENT_INDEXED"),
		},

		RedisAddr:     getenv("REDIS_ADDR"),
		RedisPassword: getenv("REDIS_PASSWORD"),
		RedisDB:       integer("REDIS_DB", 0),

		S3Endpoint:  getenv("S3_ENDPOINT"),
		S3AccessKey: getenv("S3_ACCESS_KEY_ID"),
		S3SecretKey: getenv("S3_SECRET_ACCESS_KEY"),
		S3UseSSL:    get("S3_USE_SSL", "false") == "true",
		S3Bucket:    storage.Bucket(get("S3_DOCUMENTS_BUCKET", string(storage.BucketDocuments))),

		UlroyAPIKey:    required("ULROY_API_KEY"),
		UlroyBaseURL:   get("ULROY_BASE_URL", ulroy.DefaultBaseURL),
		RequestTimeout: duration("ULROY_REQUEST_TIMEOUT", ulroy.DefaultRequestTimeout),
		PollInterval:   duration("ULROY_POLL_INTERVAL", ulroy.DefaultPollInterval),
		WaitTimeout:    duration("ULROY_WAIT_TIMEOUT", ulroy.DefaultWaitTimeout),
		TaskTTL:        duration("TASK_STORE_TTL", 24*time.Hour),

		IndexMirror:     getenv("INDEX_MIRROR"),
		TypesenseURL:    getenv("TYPESENSE_URL"),
		TypesenseKey:    getenv("TYPESENSE_API_KEY"),
		TypesensePrefix: get("TYPESENSE_COLLECTION_PREFIX", "ulroy_"),

		OTELCollectorURL: getenv("OTEL_COLLECTOR_URL"),
	}

	if cfg.PollInterval <= 0 || cfg.WaitTimeout < 0 {
		errs = multierror.Append(errs, errors.New("ULROY_POLL_INTERVAL must be positive and ULROY_WAIT_TIMEOUT not negative"))
	}
	switch cfg.IndexMirror {
	case MirrorNone:
	case MirrorTypesense:
		if cfg.TypesenseURL == "" || cfg.TypesenseKey == "" {
			errs = multierror.Append(errs, errors.New("INDEX_MIRROR=typesense needs TYPESENSE_URL and TYPESENSE_API_KEY"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("INDEX_MIRROR: unknown mirror %q", cfg.IndexMirror))
	}

	return cfg, errs.ErrorOrNil()
}
