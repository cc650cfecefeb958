package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/voltwatch/backend/internal/config"
	"github.com/voltwatch/backend/internal/kafka"
	"github.com/voltwatch/backend/internal/utils"
	"go.uber.org/zap"
)

// sender delivers one reading
type sender interface {
	Send(ctx context.Context, sample kafka.SampleMessage) error
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "./config", "Path to the configuration directory")
	mode := flag.String("mode", "http", "Delivery mode: http or kafka")
	baseURL := flag.String("url", "http://localhost:8080/api/v1", "API base URL for http mode")
	deviceID := flag.Uint("device", 0, "Device ID")
	deviceKey := flag.String("key", "", "Device key")
	interval := flag.Duration("interval", 5*time.Second, "Interval between readings")
	count := flag.Int("count", 0, "Number of readings to send, 0 runs until interrupted")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *deviceID == 0 {
		logger.Fatal("A device ID is required")
	}

	runID := uuid.NewString()
	logger = logger.Named("simulator").With(zap.String("run_id", runID), zap.Uint("device_id", *deviceID))

	var out sender
	switch *mode {
	case "http":
		out = &httpSender{
			client:  &http.Client{Timeout: 10 * time.Second},
			baseURL: *baseURL,
		}
	case "kafka":
		manager, err := kafka.NewManager(&cfg.Kafka, logger)
		if err != nil {
			logger.Fatal("Failed to create Kafka manager", zap.Error(err))
		}
		defer manager.Stop()
		out = &kafkaSender{manager: manager}
	default:
		logger.Fatal("Unknown mode", zap.String("mode", *mode))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gen := newGenerator(rand.New(rand.NewSource(time.Now().UnixNano())))
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info("Simulator started", zap.String("mode", *mode), zap.Duration("interval", *interval))

	sent := 0
	for {
		sample := gen.next(uint(*deviceID), *deviceKey, time.Now())
		if err := out.Send(ctx, sample); err != nil {
			logger.Warn("Failed to send reading", zap.Error(err))
		} else {
			sent++
			logger.Debug("Reading sent",
				zap.Float64("current", sample.Current),
				zap.Float64("voltage", sample.Voltage),
			)
		}

		if *count > 0 && sent >= *count {
			break
		}

		select {
		case <-ctx.Done():
			logger.Info("Simulator stopped", zap.Int("sent", sent))
			return
		case <-ticker.C:
		}
	}

	logger.Info("Simulator finished", zap.Int("sent", sent))
}

// generator produces readings in the range of a small household load
type generator struct {
	rng *rand.Rand
}

func newGenerator(rng *rand.Rand) *generator {
	return &generator{rng: rng}
}

// next returns a reading with voltage in [215, 230] and current in
// [1, 5.99], both rounded to two decimals
func (g *generator) next(deviceID uint, key string, at time.Time) kafka.SampleMessage {
	voltage := float64(215 + g.rng.Intn(16))
	current := round2(1 + float64(g.rng.Intn(500))/100)
	createdAt := at.UnixMilli()

	return kafka.SampleMessage{
		DeviceID:  deviceID,
		Key:       key,
		Current:   current,
		Voltage:   voltage,
		CreatedAt: &createdAt,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type httpSender struct {
	client  *http.Client
	baseURL string
}

func (s *httpSender) Send(ctx context.Context, sample kafka.SampleMessage) error {
	body, err := json.Marshal(sample)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/samples", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-Key", sample.Key)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

type kafkaSender struct {
	manager *kafka.Manager
}

func (s *kafkaSender) Send(_ context.Context, sample kafka.SampleMessage) error {
	return s.manager.ProduceSample(sample)
}
