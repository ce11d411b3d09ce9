package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/foodorders/internal/domain"
)

type loadMode string

const (
	modeCreate           loadMode = "create"
	modeCreateRead       loadMode = "create-read"
	modeCreateReadDelete loadMode = "create-read-delete"
)

const outcomeTransportError = "transport_error"

type config struct {
	baseURL      string
	total        int
	totalSet     bool
	duration     time.Duration
	concurrency  int
	timeout      time.Duration
	mode         loadMode
	orderType    domain.OrderType
	restaurantID int64
	lines        int
	subtotal     decimal.Decimal
	outputPath   string
}

func parseConfig(args []string) (config, error) {
	var (
		cfg          config
		modeValue    string
		typeValue    string
		subtotalText string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "order API base URL")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only used when set explicitly")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-read | create-read-delete")
	fs.StringVar(&typeValue, "type", string(domain.OrderTypeDelivery), "order type: dine-in | delivery | takeout")
	fs.Int64Var(&cfg.restaurantID, "restaurant", 1, "restaurant id")
	fs.IntVar(&cfg.lines, "lines", 2, "lines per order")
	fs.StringVar(&subtotalText, "subtotal", "9.90", "subtotal of each line")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	cfg.orderType = domain.OrderType(strings.TrimSpace(typeValue))
	if !cfg.orderType.Valid() {
		return cfg, fmt.Errorf("unsupported order type: %s", typeValue)
	}

	cfg.subtotal, err = decimal.NewFromString(strings.TrimSpace(subtotalText))
	if err != nil {
		return cfg, fmt.Errorf("parse subtotal: %w", err)
	}

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	switch {
	case cfg.baseURL == "":
		return cfg, errors.New("url is required")
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.restaurantID <= 0:
		return cfg, errors.New("restaurant must be > 0")
	case cfg.lines <= 0:
		return cfg, errors.New("lines must be > 0")
	case cfg.subtotal.IsNegative():
		return cfg, errors.New("subtotal must be >= 0")
	}
	return cfg, nil
}

func parseMode(value string) (loadMode, error) {
	switch mode := loadMode(strings.TrimSpace(value)); mode {
	case modeCreate, modeCreateRead, modeCreateReadDelete:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

// orderClient ходит в HTTP API заказов и пишет результаты шагов в collector.
type orderClient struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
	col     *collector
}

func (c *orderClient) do(ctx context.Context, step, method, path string, body any, want int, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	outcome, err := c.send(ctx, method, path, body, want, out)
	c.col.record(step, time.Since(start), outcome, err == nil)
	return err
}

func (c *orderClient) send(ctx context.Context, method, path string, body any, want int, out any) (string, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return outcomeTransportError, err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return outcomeTransportError, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return outcomeTransportError, err
	}
	defer resp.Body.Close()

	outcome := strconv.Itoa(resp.StatusCode)
	if resp.StatusCode != want {
		_, _ = io.Copy(io.Discard, resp.Body)
		return outcome, fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return outcome, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return outcome, nil
}

func newOrderInput(cfg config, index int) domain.NewOrder {
	in := domain.NewOrder{
		UserID:       int64(index) + 1,
		RestaurantID: cfg.restaurantID,
		Status:       domain.OrderStatusPending,
		Type:         cfg.orderType,
		Lines:        make([]domain.NewOrderLine, 0, cfg.lines),
	}
	for i := 0; i < cfg.lines; i++ {
		in.Lines = append(in.Lines, domain.NewOrderLine{
			ProductID: int64(i) + 1,
			Quantity:  1,
			Subtotal:  cfg.subtotal,
		})
	}
	return in
}

func runScenario(ctx context.Context, c *orderClient, cfg config, index int) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "failed"
		}
		c.col.record(scenarioStep, time.Since(start), outcome, err == nil)
	}()

	var created domain.Order
	if err := c.do(ctx, "CreateOrder", http.MethodPost, "/orders", newOrderInput(cfg, index), http.StatusCreated, &created); err != nil {
		return err
	}
	if created.ID <= 0 {
		return errors.New("create response returned empty order id")
	}
	if cfg.mode == modeCreate {
		return nil
	}

	path := "/orders/" + strconv.FormatInt(created.ID, 10)
	var found domain.Order
	if err := c.do(ctx, "FindOrder", http.MethodGet, path, nil, http.StatusOK, &found); err != nil {
		return err
	}
	if found.ID != created.ID || len(found.Lines) != len(created.Lines) {
		return fmt.Errorf("order %d read back with id %d and %d lines", created.ID, found.ID, len(found.Lines))
	}
	if cfg.mode == modeCreateRead {
		return nil
	}

	return c.do(ctx, "DeleteOrder", http.MethodDelete, path, nil, http.StatusOK, nil)
}

func dispatchJobs(ctx context.Context, jobs chan<- int, cfg config) {
	defer close(jobs)

	var deadline <-chan time.Time
	if cfg.duration > 0 {
		timer := time.NewTimer(cfg.duration)
		defer timer.Stop()
		deadline = timer.C
	}

	for i := 0; ; i++ {
		if (cfg.duration <= 0 || cfg.totalSet) && i >= cfg.total {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case jobs <- i:
		}
	}
}

func runLoad(ctx context.Context, cfg config, httpClient *http.Client) report {
	col := newCollector()
	client := &orderClient{http: httpClient, baseURL: cfg.baseURL, timeout: cfg.timeout, col: col}

	startedAt := time.Now()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				_ = runScenario(ctx, client, cfg, index)
			}
		}()
	}

	dispatchJobs(ctx, jobs, cfg)
	wg.Wait()
	return col.buildReport(startedAt, time.Since(startedAt))
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Transport: &http.Transport{
		MaxIdleConns:        cfg.concurrency,
		MaxIdleConnsPerHost: cfg.concurrency,
		IdleConnTimeout:     90 * time.Second,
	}}

	result := runLoad(ctx, cfg, httpClient)
	printReport(os.Stdout, result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.FailedScenarios > 0 {
		os.Exit(1)
	}
}
