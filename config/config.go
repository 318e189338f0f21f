package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all settings read from the environment.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"sleuth_ingest"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`
	LogMode      string `envconfig:"LOG_MODE" default:"production"`

	// Bibliographic lookup
	LookupProvider string `envconfig:"LOOKUP_PROVIDER" default:"pubmed"`
	PubMedBaseURL  string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey   string `envconfig:"PUBMED_API_KEY"`
	PubMedEmail    string `envconfig:"PUBMED_EMAIL"`
	PubMedTool     string `envconfig:"PUBMED_TOOL" default:"sleuth-ingest"`
	EuropePMCURL   string `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest/search"`

	// NCBI allows 10 requests/s with a key and 3 without.
	LookupRateLimitWithKey int           `envconfig:"LOOKUP_RATE_LIMIT_WITH_KEY" default:"10"`
	LookupRateLimitNoKey   int           `envconfig:"LOOKUP_RATE_LIMIT_NO_KEY" default:"3"`
	LookupNoKeyDelay       time.Duration `envconfig:"LOOKUP_NO_KEY_DELAY" default:"1s"`
	DetailsPageSize        int           `envconfig:"DETAILS_PAGE_SIZE" default:"200"`

	// Storage and project services
	NeurostoreBaseURL string `envconfig:"NEUROSTORE_BASE_URL" default:"https://neurostore.org/api"`
	ComposeBaseURL    string `envconfig:"COMPOSE_BASE_URL" default:"https://compose.neurosynth.org/api"`
	NeurostoreToken   string `envconfig:"NEUROSTORE_TOKEN"`
	NeurostoreUserID  string `envconfig:"NEUROSTORE_USER_ID"`
	StoreRateLimit    int    `envconfig:"STORE_RATE_LIMIT" default:"5"`

	HTTPMaxRetries int           `envconfig:"HTTP_MAX_RETRIES" default:"3"`
	HTTPTimeout    time.Duration `envconfig:"HTTP_TIMEOUT" default:"60s"`

	// Upload archive, disabled when S3Bucket is empty.
	S3URL    string `envconfig:"S3_URL"`
	S3Key    string `envconfig:"S3_KEY"`
	S3Secret string `envconfig:"S3_SECRET"`
	S3Region string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"sleuth-uploads"`

	CronSchedule string        `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`
	RunRetention time.Duration `envconfig:"RUN_RETENTION" default:"720h"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled reports whether uploaded files should be copied to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

// LookupLimits returns the batch size and inter-batch delay for bibliographic
// lookups. Without an API key the delay is mandatory. The PubMed key only
// lifts the limits when PubMed is the selected provider; Europe PMC takes
// no key and always runs at the keyless rate.
func (c *Config) LookupLimits() (int, time.Duration) {
	if c.PubMedAPIKey != "" && c.usesPubMed() {
		return c.LookupRateLimitWithKey, 0
	}
	delay := c.LookupNoKeyDelay
	if delay <= 0 {
		delay = time.Second
	}
	return c.LookupRateLimitNoKey, delay
}

func (c *Config) usesPubMed() bool {
	p := strings.ToLower(strings.TrimSpace(c.LookupProvider))
	return p == "" || p == "pubmed"
}

// Load reads the configuration from the environment, after loading an
// optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
