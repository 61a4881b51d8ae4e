package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"outreach/pkg/mq"
)

type Config struct {
	MetadataDB     MySQL             `json:"metadata_db"`
	DiscoveryStore Elasticsearch     `json:"discovery_store"`
	Brevo          Brevo             `json:"brevo"`
	ContentService ContentService    `json:"content_service"`
	EventProducer  mq.ProducerConfig `json:"event_producer"`
	EventConsumer  mq.ConsumerConfig `json:"event_consumer"`
	Pipeline       Pipeline          `json:"pipeline"`
	Compliance     Compliance        `json:"compliance"`
	Channels       []Channel         `json:"channels"`
}

type Compliance struct {
	DeniedIndustries []string `json:"denied_industries"`
	DeniedDomains    []string `json:"denied_domains"`
}

type MySQL struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
}

func (mysql *MySQL) ToDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", mysql.Username, mysql.Password, mysql.Host, mysql.Port, mysql.Database)
}

type Elasticsearch struct {
	Addr     []string `json:"addr"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Index    string   `json:"index"`
}

type Brevo struct {
	APIKey      string `json:"api_key"`
	SenderEmail string `json:"sender_email"`
	SenderName  string `json:"sender_name"`
}

type ContentService struct {
	BaseUrl        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Pipeline holds the knobs of the campaign execution pipeline.
type Pipeline struct {
	DiscoveryBatchSize uint32  `json:"discovery_batch_size"`
	DispatchFanOut     int     `json:"dispatch_fan_out"`
	MaxRetries         uint32  `json:"max_retries"`
	BaseDelayMs        uint64  `json:"base_delay_ms"`
	MaxDelayMs         uint64  `json:"max_delay_ms"`
	Epsilon            float64 `json:"epsilon"`
	MinSampleSize      uint64  `json:"min_sample_size"`
	EwmaWeight         float64 `json:"ewma_weight"`
	TrendWindow        int     `json:"trend_window"`
	// a campaign completes once it has converted at least this many recipients
	CompletionConversions uint64 `json:"completion_conversions"`
}

type Channel struct {
	ID            uint64  `json:"id"`
	Name          string  `json:"name"`
	Priority      uint32  `json:"priority"`
	DailyCap      uint64  `json:"daily_cap"`
	RatePerSecond float64 `json:"rate_per_second"`
}

func NewConfig() *Config {
	return &Config{
		MetadataDB: MySQL{
			Username: "",
			Password: "",
			Host:     "127.0.0.1",
			Port:     3306,
			Database: "outreach_db",
		},
		DiscoveryStore: Elasticsearch{
			Addr:  []string{"http://127.0.0.1:9200"},
			Index: "contacts",
		},
		Brevo: Brevo{
			APIKey:      "",
			SenderEmail: "",
			SenderName:  "",
		},
		ContentService: ContentService{
			BaseUrl:        "http://127.0.0.1:9091",
			TimeoutSeconds: 30,
		},
		EventProducer: mq.ProducerConfig{
			Brokers: []string{"127.0.0.1:9092"},
			Topics: map[uint32]string{
				uint32(mq.PayloadEmailOpened):     "outreach_events",
				uint32(mq.PayloadEmailClicked):    "outreach_events",
				uint32(mq.PayloadDispatchOutcome): "outreach_events",
			},
		},
		EventConsumer: mq.ConsumerConfig{
			Brokers:       []string{"127.0.0.1:9092"},
			Topic:         "outreach_events",
			ConsumerGroup: "outreach_tracker",
		},
		Pipeline: Pipeline{
			DiscoveryBatchSize:    100,
			DispatchFanOut:        10,
			MaxRetries:            3,
			BaseDelayMs:           500,
			MaxDelayMs:            30_000,
			Epsilon:               0.1,
			MinSampleSize:         20,
			EwmaWeight:            0.5,
			TrendWindow:           5,
			CompletionConversions: 100,
		},
		Channels: []Channel{
			{ID: 1, Name: "primary", Priority: 1, DailyCap: 1000, RatePerSecond: 10},
			{ID: 2, Name: "secondary", Priority: 2, DailyCap: 500, RatePerSecond: 5},
		},
	}
}

func (c *Config) Load(ctx context.Context, path string) error {
	if path == "" {
		log.Ctx(ctx).Warn().Msgf("empty config file")
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Ctx(ctx).Warn().Msgf("config file does not exist, file path: %s", path)
			return nil
		}
		return err
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			log.Ctx(ctx).Error().Msgf("config file close failed, file path: %s", path)
		}
	}(f)

	p := json.NewDecoder(f)
	if err := p.Decode(&c); err != nil {
		return err
	}

	return nil
}
