package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
)

// loadtest конкурентно покупает один товар с ограниченным остатком и
// проверяет, что продано не больше, чем было на складе.

type loadMode string

const (
	modeCreate        loadMode = "create"
	modeCreateConfirm loadMode = "create-confirm"
)

const scenarioMethod = "scenario"

type config struct {
	addr        string
	total       int
	concurrency int
	connections int
	timeout     time.Duration
	mode        loadMode
	productID   string
	stock       int
	priceMinor  int64
	quantity    int
	actorID     string
	actorRole   string
	outputPath  string
}

// storefrontClient: часть клиента, которой пользуется нагрузочный тест.
type storefrontClient interface {
	CreateOrder(ctx context.Context, in *storefrontv1.CreateOrderRequest, opts ...grpc.CallOption) (*storefrontv1.CreateOrderResponse, error)
	UpdateOrderStatus(ctx context.Context, in *storefrontv1.UpdateOrderStatusRequest, opts ...grpc.CallOption) (*storefrontv1.UpdateOrderStatusResponse, error)
	CreateProduct(ctx context.Context, in *storefrontv1.CreateProductRequest, opts ...grpc.CallOption) (*storefrontv1.ProductResponse, error)
	GetProduct(ctx context.Context, in *storefrontv1.GetProductRequest, opts ...grpc.CallOption) (*storefrontv1.ProductResponse, error)
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type methodReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt       time.Time               `json:"started_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	ProductID       string                  `json:"product_id"`
	InitialStock    int64                   `json:"initial_stock"`
	FinalStock      int64                   `json:"final_stock"`
	Attempts        int64                   `json:"attempts"`
	Sold            int64                   `json:"sold"`
	SoldOut         int64                   `json:"sold_out"`
	Errors          int64                   `json:"errors"`
	Oversold        bool                    `json:"oversold"`
	StockMismatch   bool                    `json:"stock_mismatch"`
	RPS             float64                 `json:"rps"`
	Methods         map[string]methodReport `json:"methods"`
}

type methodStats struct {
	calls     int64
	success   int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

// collector копит вызовы по методам. Отказ по остатку для покупателя
// ожидаем, поэтому считается отдельно от ошибок.
type collector struct {
	mu      sync.Mutex
	methods map[string]*methodStats
	sold    int64
	soldOut int64
	errors  int64
}

func newCollector() *collector {
	return &collector{methods: make(map[string]*methodStats)}
}

func (c *collector) record(method string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.methods[method]
	if !ok {
		stats = &methodStats{codes: make(map[string]int64)}
		c.methods[method] = stats
	}
	stats.calls++
	if code == codes.OK {
		stats.success++
	} else {
		stats.failed++
	}
	stats.codes[code.String()]++
	stats.latencies = append(stats.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) outcome(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch grpcCode(err) {
	case codes.OK:
		c.sold++
	case codes.FailedPrecondition, codes.Aborted:
		c.soldOut++
	default:
		c.errors++
	}
}

func (c *collector) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Sold:            c.sold,
		SoldOut:         c.soldOut,
		Errors:          c.errors,
		Attempts:        c.sold + c.soldOut,
		Methods:         make(map[string]methodReport, len(c.methods)),
	}
	if duration > 0 {
		result.RPS = float64(result.Attempts) / duration.Seconds()
	}
	for name, stats := range c.methods {
		codesCopy := make(map[string]int64, len(stats.codes))
		for code, count := range stats.codes {
			codesCopy[code] = count
		}
		result.Methods[name] = methodReport{
			Calls:     stats.calls,
			Success:   stats.success,
			Failed:    stats.failed,
			Codes:     codesCopy,
			LatencyMs: buildLatencySummary(stats.latencies),
		}
	}
	return result
}

func parseConfig() (config, error) {
	var (
		cfg       config
		modeValue string
	)

	flag.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	flag.IntVar(&cfg.total, "total", 200, "number of purchase attempts")
	flag.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent buyers")
	flag.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	flag.StringVar(&modeValue, "mode", string(modeCreate), "load mode: create | create-confirm")
	flag.StringVar(&cfg.productID, "product-id", "", "existing simple product to buy; empty seeds a new one")
	flag.IntVar(&cfg.stock, "stock", 50, "stock of the seeded product")
	flag.Int64Var(&cfg.priceMinor, "price-minor", 1000, "price of the seeded product in minor units")
	flag.IntVar(&cfg.quantity, "quantity", 1, "units per order")
	flag.StringVar(&cfg.actorID, "actor-id", "", "admin actor used to seed, confirm and verify (fallback: STOREFRONT_BOOTSTRAP_ADMIN_ID)")
	flag.StringVar(&cfg.actorRole, "actor-role", "superAdmin", "role of the admin actor")
	flag.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	flag.Parse()

	mode, err := parseMode(modeValue)
	if err != nil {
		return cfg, err
	}
	cfg.mode = mode

	if strings.TrimSpace(cfg.actorID) == "" {
		cfg.actorID = strings.TrimSpace(os.Getenv("STOREFRONT_BOOTSTRAP_ADMIN_ID"))
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg config) validate() error {
	switch {
	case cfg.total <= 0:
		return errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return errors.New("timeout must be > 0")
	case cfg.quantity <= 0 || cfg.quantity > math.MaxInt32:
		return errors.New("quantity must be a positive int32")
	case cfg.productID == "" && (cfg.stock < 0 || cfg.stock > math.MaxInt32):
		return errors.New("stock must be a non-negative int32")
	case cfg.productID == "" && cfg.priceMinor < 0:
		return errors.New("price-minor must be >= 0")
	case cfg.actorID == "":
		return errors.New("actor-id is required")
	}
	return nil
}

func parseMode(value string) (loadMode, error) {
	switch loadMode(strings.TrimSpace(value)) {
	case modeCreate:
		return modeCreate, nil
	case modeCreateConfirm:
		return modeCreateConfirm, nil
	default:
		return "", fmt.Errorf("unsupported mode: %s", value)
	}
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]storefrontClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, storefrontv1.NewStorefrontClient(conn))
	}
	defer func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}()

	result, err := run(context.Background(), cfg, clients)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(result, cfg)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if result.Oversold || result.StockMismatch || result.Errors > 0 {
		os.Exit(1)
	}
}

// run готовит товар, запускает покупателей и сверяет итоговый остаток.
func run(ctx context.Context, cfg config, clients []storefrontClient) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("at least one client is required")
	}
	admin := clients[0]

	productID, initial, err := prepareProduct(ctx, admin, cfg)
	if err != nil {
		return report{}, err
	}

	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup
	startedAt := time.Now()
	runID := fmt.Sprintf("%d-%d", startedAt.UnixNano(), os.Getpid())

	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		go func(cli storefrontClient) {
			defer wg.Done()
			for id := range jobs {
				_ = runScenario(ctx, cli, cfg, productID, runID, id, col)
			}
		}(clients[workerID%len(clients)])
	}
	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	result.ProductID = productID
	result.InitialStock = int64(initial)

	final, err := productStock(ctx, admin, cfg, productID)
	if err != nil {
		return result, fmt.Errorf("read final stock: %w", err)
	}
	result.FinalStock = int64(final)
	sold := result.Sold * int64(cfg.quantity)
	result.Oversold = sold > result.InitialStock
	result.StockMismatch = result.InitialStock-sold != result.FinalStock
	return result, nil
}

func prepareProduct(ctx context.Context, client storefrontClient, cfg config) (string, int32, error) {
	if cfg.productID != "" {
		stock, err := productStock(ctx, client, cfg, cfg.productID)
		return cfg.productID, stock, err
	}

	callCtx, cancel := adminContext(ctx, cfg)
	defer cancel()
	resp, err := client.CreateProduct(callCtx, &storefrontv1.CreateProductRequest{
		Shape:          "simple",
		Name:           "load test product " + time.Now().UTC().Format(time.RFC3339),
		BasePriceMinor: cfg.priceMinor,
		Quantity:       int32(cfg.stock), //nolint:gosec // validated in config.
	})
	if err != nil {
		return "", 0, fmt.Errorf("seed product: %w", err)
	}
	if resp.Product == nil || resp.Product.ID == "" {
		return "", 0, errors.New("seed product: empty response")
	}
	return resp.Product.ID, resp.Product.Quantity, nil
}

func productStock(ctx context.Context, client storefrontClient, cfg config, productID string) (int32, error) {
	callCtx, cancel := adminContext(ctx, cfg)
	defer cancel()
	resp, err := client.GetProduct(callCtx, &storefrontv1.GetProductRequest{ProductID: productID})
	if err != nil {
		return 0, err
	}
	if resp.Product == nil {
		return 0, errors.New("empty product response")
	}
	return resp.Product.Quantity, nil
}

func adminContext(ctx context.Context, cfg config) (context.Context, context.CancelFunc) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	return storefrontv1.WithPrincipal(callCtx, cfg.actorID, cfg.actorRole), cancel
}

// runScenario выполняет одну покупку и, в режиме create-confirm, подтверждает заказ.
func runScenario(ctx context.Context, client storefrontClient, cfg config, productID, runID string, index int, col *collector) (err error) {
	scenarioStart := time.Now()
	defer func() {
		col.record(scenarioMethod, time.Since(scenarioStart), grpcCode(err))
	}()

	orderID, err := callCreateOrder(ctx, client, cfg, productID, fmt.Sprintf("lt-%s-%d", runID, index), index, col)
	if err != nil || cfg.mode == modeCreate {
		return err
	}
	if err = callConfirm(ctx, client, cfg, orderID, col); err != nil {
		col.fail()
	}
	return err
}

func callCreateOrder(ctx context.Context, client storefrontClient, cfg config, productID, key string, index int, col *collector) (string, error) {
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()
	callCtx = storefrontv1.WithIdempotencyKey(callCtx, key)

	resp, err := client.CreateOrder(callCtx, &storefrontv1.CreateOrderRequest{
		Customer: storefrontv1.Customer{
			FirstName: "Load",
			LastName:  fmt.Sprintf("Buyer %d", index),
			Phone:     fmt.Sprintf("+222%08d", index),
		},
		ShippingAddress: storefrontv1.ShippingAddress{Address: "1 Test street", City: "Nouakchott"},
		Items:           []storefrontv1.CartItem{{ProductID: productID, Quantity: int32(cfg.quantity)}}, //nolint:gosec // validated in config.
	})
	col.record("CreateOrder", time.Since(start), grpcCode(err))
	col.outcome(err)
	if err != nil {
		return "", err
	}
	if resp.Order == nil || resp.Order.ID == "" {
		return "", status.Error(codes.Internal, "create response returned empty order id")
	}
	return resp.Order.ID, nil
}

func callConfirm(ctx context.Context, client storefrontClient, cfg config, orderID string, col *collector) error {
	start := time.Now()
	callCtx, cancel := adminContext(ctx, cfg)
	defer cancel()

	_, err := client.UpdateOrderStatus(callCtx, &storefrontv1.UpdateOrderStatusRequest{
		OrderID: orderID,
		Status:  "confirmed",
		Comment: "load-confirm",
	})
	col.record("UpdateOrderStatus", time.Since(start), grpcCode(err))
	return err
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func printReport(result report, cfg config) {
	fmt.Println("Stock contention summary")
	fmt.Printf("mode=%s product=%s attempts=%d sold=%d sold_out=%d errors=%d\n",
		cfg.mode, result.ProductID, result.Attempts, result.Sold, result.SoldOut, result.Errors)
	fmt.Printf("stock: initial=%d final=%d oversold=%t mismatch=%t\n",
		result.InitialStock, result.FinalStock, result.Oversold, result.StockMismatch)
	fmt.Printf("duration=%.2fs rps=%.2f\n", result.DurationSeconds, result.RPS)

	methodNames := make([]string, 0, len(result.Methods))
	for name := range result.Methods {
		methodNames = append(methodNames, name)
	}
	sort.Strings(methodNames)
	for _, name := range methodNames {
		stats := result.Methods[name]
		fmt.Printf("%s: calls=%d success=%d failed=%d p50=%.2fms p95=%.2fms p99=%.2fms\n",
			name, stats.Calls, stats.Success, stats.Failed,
			stats.LatencyMs.P50, stats.LatencyMs.P95, stats.LatencyMs.P99)
	}
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
