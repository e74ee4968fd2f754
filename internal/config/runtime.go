package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Runtime holds process options read from JHUNT_* environment variables.
type Runtime struct {
	DataDir  string `envconfig:"DATA_DIR" default:"."`
	Addr     string `envconfig:"ADDR" default:"127.0.0.1:38471"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Concurrency        int           `envconfig:"CONCURRENCY" default:"4"`
	SourceTimeout      time.Duration `envconfig:"SOURCE_TIMEOUT" default:"2m"`
	StopOnSeenRatio    float64       `envconfig:"STOP_ON_SEEN_RATIO" default:"0.8"`
	MaxPages           int           `envconfig:"MAX_PAGES" default:"3"`
	MaxJobsPerSource   int           `envconfig:"MAX_JOBS_PER_SOURCE" default:"50"`
	MaxQueries         int           `envconfig:"MAX_QUERIES" default:"6"`
	QueryVariants      int           `envconfig:"QUERY_VARIANTS" default:"2"`
	LookbackDays       int           `envconfig:"LOOKBACK_DAYS" default:"14"`
	LookbackBufferDays int           `envconfig:"LOOKBACK_BUFFER_DAYS" default:"2"`

	HostRPS        float64       `envconfig:"HOST_RPS" default:"1"`
	HostBurst      int           `envconfig:"HOST_BURST" default:"2"`
	RequestRetries int           `envconfig:"REQUEST_RETRIES" default:"2"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"20s"`

	RedisURL    string   `envconfig:"REDIS_URL" default:""`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"tauri://localhost,http://localhost:3000"`
}

// LoadRuntime reads an optional .env file and then the environment.
func LoadRuntime() (Runtime, error) {
	_ = godotenv.Load()

	var rt Runtime
	if err := envconfig.Process("jhunt", &rt); err != nil {
		return rt, err
	}
	if rt.Concurrency <= 0 {
		rt.Concurrency = 1
	}
	return rt, nil
}
