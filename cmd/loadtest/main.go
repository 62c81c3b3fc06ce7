// Команда loadtest нагружает gRPC-витрину сценариями покупателя: просмотр
// каталога, корзина и оформление с подтверждением.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcsvc "github.com/vladislavdragonenkov/petshop/internal/service/grpc"
	"github.com/vladislavdragonenkov/petshop/internal/storage/memory"
)

type config struct {
	addr        string
	total       int
	totalSet    bool
	duration    time.Duration
	concurrency int
	connections int
	timeout     time.Duration
	scenario    scenarioKind
	pages       int
	species     string
	sort        string
	customerID  string
	outputPath  string
}

func parseConfig(args []string, output io.Writer) (config, error) {
	var (
		cfg           config
		scenarioValue string
	)

	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total scenarios in count mode; with -duration only when set explicitly")
	fs.DurationVar(&cfg.duration, "duration", 0, "optional time-based run duration (e.g. 10m)")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent shoppers")
	fs.IntVar(&cfg.connections, "connections", 20, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.StringVar(&scenarioValue, "scenario", string(scenarioBrowse), "scenario: browse | cart | checkout")
	fs.IntVar(&cfg.pages, "pages", 2, "catalog pages to load per session")
	fs.StringVar(&cfg.species, "species", "", "species filter for ListPets")
	fs.StringVar(&cfg.sort, "sort", "", "sort order for ListPets")
	fs.StringVar(&cfg.customerID, "customer", memory.DemoCustomerID, "customer that signs in for checkout")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "total" {
			cfg.totalSet = true
		}
	})

	kind, err := parseScenario(strings.TrimSpace(scenarioValue))
	if err != nil {
		return cfg, err
	}
	cfg.scenario = kind

	switch {
	case cfg.duration < 0:
		return cfg, errors.New("duration must be >= 0")
	case cfg.duration == 0 && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when duration is not set")
	case cfg.duration > 0 && cfg.totalSet && cfg.total <= 0:
		return cfg, errors.New("total must be > 0 when explicitly set with duration")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return cfg, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	case cfg.pages <= 0:
		return cfg, errors.New("pages must be > 0")
	case cfg.scenario == scenarioCheckout && strings.TrimSpace(cfg.customerID) == "":
		return cfg, errors.New("customer is required for checkout scenario")
	}

	return cfg, nil
}

func main() {
	cfg, err := parseConfig(os.Args[1:], os.Stderr)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]storefrontAPI, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, grpcsvc.NewStorefrontClient(conn))
	}

	result := execute(cfg, clients)
	for _, conn := range conns {
		_ = conn.Close()
	}

	printReport(os.Stdout, result, runTarget(cfg))
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

// execute раздаёт сценарии воркерам по кругу клиентов и собирает отчёт.
func execute(cfg config, clients []storefrontAPI) report {
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())
	col := newCollector()

	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		r := &runner{client: clients[workerID%len(clients)], cfg: cfg, runID: runID, col: col}
		go func() {
			defer wg.Done()
			for index := range jobs {
				_ = r.run(index)
			}
		}()
	}

	dispatchJobs(jobs, cfg)
	wg.Wait()

	return col.buildReport(cfg.scenario, startedAt, time.Since(startedAt))
}

func dispatchJobs(jobs chan<- int, cfg config) {
	defer close(jobs)

	if cfg.duration <= 0 {
		for i := 0; i < cfg.total; i++ {
			jobs <- i
		}
		return
	}

	timer := time.NewTimer(cfg.duration)
	defer timer.Stop()

	for i := 0; ; i++ {
		if cfg.totalSet && i >= cfg.total {
			return
		}

		select {
		case <-timer.C:
			return
		case jobs <- i:
		}
	}
}

func runTarget(cfg config) string {
	if cfg.duration <= 0 {
		return fmt.Sprintf("count:%d", cfg.total)
	}
	if cfg.totalSet {
		return fmt.Sprintf("duration:%s,max-total:%d", cfg.duration, cfg.total)
	}
	return fmt.Sprintf("duration:%s", cfg.duration)
}
