// README: Smoke cases for the order lifecycle API plus DB, Redis, race and load checks.
package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"wali/internal/infra"
)

const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
	StatusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// filled by the create case, read by later ones
	orderID     string
	orderNumber string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
	return results
}

var (
	treichville = map[string]any{"latitude": 5.3364, "longitude": -4.0267, "address": "Treichville"}
	marcory     = map[string]any{"latitude": 5.3030, "longitude": -3.9870, "address": "Marcory"}
	lome        = map[string]any{"latitude": 6.1319, "longitude": 1.2228}
)

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: StatusFail, Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: StatusSkip, Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				if err := infra.ApplyMigrations(ctx, r.db, r.cfg.MigrationsDir); err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				return Result{Status: StatusPass}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: StatusFail, Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationsDir)
				if err != nil {
					return Result{Status: StatusFail, Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: StatusFail, Note: err.Error()}
					}
					if !exists {
						return Result{Status: StatusFail, Note: "missing table: " + t}
					}
				}
				return Result{Status: StatusPass, Note: fmt.Sprintf("tables=%d", len(tables))}
			},
		},
		httpCase("API: health", http.MethodGet, base+"/health", nil, http.StatusOK),
		httpCase("Pricing: quote inside Abidjan", http.MethodPost, base+"/api/quotes",
			map[string]any{"type": "DELIVERY", "pickup": treichville, "delivery": marcory}, http.StatusOK),
		httpCase("Pricing: quote outside service area", http.MethodPost, base+"/api/quotes",
			map[string]any{"type": "DELIVERY", "pickup": treichville, "delivery": lome}, http.StatusBadRequest),
		httpCase("Pricing: FOOD quote without items", http.MethodPost, base+"/api/quotes",
			map[string]any{"type": "FOOD", "pickup": treichville, "delivery": marcory}, http.StatusBadRequest),
		{
			Name: "Order: create",
			Run: func(ctx context.Context, r *Runner) Result {
				o, res := r.createOrder(ctx)
				if res.Status != StatusPass {
					return res
				}
				r.orderID, r.orderNumber = o.ID, o.Number
				res.Note = fmt.Sprintf("number=%s total=%d", o.Number, o.Total)
				return res
			},
		},
		{
			Name: "Order: get by number",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.orderNumber == "" {
					return Result{Status: StatusSkip, Note: "no order created"}
				}
				status, _, latency, err := r.do(ctx, http.MethodGet, base+"/api/orders/"+r.orderNumber, nil, nil)
				return expectStatus(status, latency, err, http.StatusOK)
			},
		},
		{
			Name: "Payment: Paystack success confirms once",
			Run:  paystackCase,
		},
		{
			Name: "Order: concurrent confirms have one winner",
			Run:  confirmRace,
		},
		{
			Name: "Perf: quote load",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, base+"/api/quotes", map[string]any{
					"type": "DELIVERY", "pickup": treichville, "delivery": marcory,
				})
			},
		},
	}
}

type createdOrder struct {
	ID     string `json:"id"`
	Number string `json:"order_number"`
	Status string `json:"status"`
	Total  int64  `json:"-"`
	Price  struct {
		TotalAmount int64 `json:"total_amount"`
	} `json:"price"`
}

func (r *Runner) createOrder(ctx context.Context) (createdOrder, Result) {
	var o createdOrder
	status, body, latency, err := r.do(ctx, http.MethodPost, r.cfg.BaseURL+"/api/orders", map[string]any{
		"customer_id": "bench-customer",
		"type":        "DELIVERY",
		"pickup":      treichville,
		"delivery":    marcory,
	}, nil)
	if res := expectStatus(status, latency, err, http.StatusCreated); res.Status != StatusPass {
		return o, res
	}
	if err := json.Unmarshal(body, &o); err != nil {
		return o, Result{Status: StatusFail, Note: err.Error()}
	}
	o.Total = o.Price.TotalAmount
	return o, Result{Status: StatusPass, Latency: latency}
}

func (r *Runner) orderStatus(ctx context.Context, id string) (string, error) {
	_, body, _, err := r.do(ctx, http.MethodGet, r.cfg.BaseURL+"/api/orders/"+id, nil, nil)
	if err != nil {
		return "", err
	}
	var o createdOrder
	if err := json.Unmarshal(body, &o); err != nil {
		return "", err
	}
	return o.Status, nil
}

func paystackCase(ctx context.Context, r *Runner) Result {
	if r.cfg.PaystackSecret == "" {
		return Result{Status: StatusSkip, Note: "no paystack secret"}
	}
	o, res := r.createOrder(ctx)
	if res.Status != StatusPass {
		return res
	}
	payload := []byte(fmt.Sprintf(`{"event":"charge.success","data":{"id":1,"reference":%q,"status":"success","amount":%d,"currency":"XOF"}}`,
		o.Number, o.Total*100))
	mac := hmac.New(sha512.New, []byte(r.cfg.PaystackSecret))
	mac.Write(payload)
	headers := map[string]string{"x-paystack-signature": hex.EncodeToString(mac.Sum(nil))}

	start := time.Now()
	for i := 0; i < 3; i++ {
		status, _, _, err := r.do(ctx, http.MethodPost, r.cfg.BaseURL+"/webhooks/payments/paystack", payload, headers)
		if err != nil || status != http.StatusOK {
			return Result{Status: StatusFail, Note: fmt.Sprintf("delivery %d: status=%d err=%v", i, status, err)}
		}
	}
	latency := time.Since(start)
	st, err := r.orderStatus(ctx, o.ID)
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	if st != "CONFIRMED" {
		return Result{Status: StatusFail, Latency: latency, Note: "status=" + st}
	}
	return Result{Status: StatusPass, Latency: latency}
}

// confirmRace fires concurrent confirms at one PENDING order; exactly one may
// succeed, the rest see a conflict.
func confirmRace(ctx context.Context, r *Runner) Result {
	o, res := r.createOrder(ctx)
	if res.Status != StatusPass {
		return res
	}
	url := r.cfg.BaseURL + "/api/orders/" + o.ID + "/transitions"
	body := map[string]any{"target_status": "CONFIRMED", "actor_type": "admin"}
	start := make(chan struct{})
	var wg sync.WaitGroup
	var succ, conflicts int64
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, _, _, err := r.do(ctx, http.MethodPost, url, body, nil)
			if err != nil {
				return
			}
			switch {
			case status >= 200 && status < 300:
				atomic.AddInt64(&succ, 1)
			case status == http.StatusConflict:
				atomic.AddInt64(&conflicts, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	note := fmt.Sprintf("success=%d conflicts=%d", succ, conflicts)
	if succ != 1 {
		return Result{Status: StatusFail, Note: note}
	}
	return Result{Status: StatusPass, Note: note}
}

func httpCase(name, method, url string, body any, okStatuses ...int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			status, _, latency, err := r.do(ctx, method, url, body, nil)
			return expectStatus(status, latency, err, okStatuses...)
		},
	}
}

func expectStatus(status int, latency time.Duration, err error, ok ...int) Result {
	if err != nil {
		return Result{Status: StatusFail, Note: err.Error()}
	}
	note := fmt.Sprintf("status=%d", status)
	for _, s := range ok {
		if s == status {
			return Result{Status: StatusPass, Latency: latency, Note: note}
		}
	}
	return Result{Status: StatusFail, Latency: latency, Note: note}
}

// do sends body as JSON, or verbatim when it is already []byte.
func (r *Runner) do(ctx context.Context, method, url string, body any, headers map[string]string) (int, []byte, time.Duration, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, time.Since(start), err
}

func perfLoad(ctx context.Context, r *Runner, url string, payload any) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.do(ctx, http.MethodPost, url, payload, nil)
				if err != nil || status >= 500 {
					atomic.AddInt64(&errCount, 1)
					continue
				}
				atomic.AddInt64(&count, 1)
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: StatusFail, Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: StatusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	var tables []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	return tables, nil
}
