// README: Replay cases: environment checks, signed gateway deliveries, duplicate storms and throughput.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"carryhub/internal/gateway"
	"carryhub/internal/http/handlers"
	"carryhub/internal/modules/webhook"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
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

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	gatewayURL := base + "/webhooks/gateway"
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "FAIL", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: apply (optional)",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Migration: tables exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)", t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS", Note: fmt.Sprintf("%d tables", len(tables))}
			},
		},
		{
			Name: "API: health",
			Run: func(ctx context.Context, r *Runner) Result {
				status, body, latency, err := r.do(ctx, http.MethodGet, base+"/health", nil, nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return expect(status, body, latency, http.StatusOK, "")
			},
		},

		// Signature and envelope checks
		r.deliveryCase("Webhook: unsigned delivery -> 400", gatewayURL, paymentEvent(webhook.EventPaymentCaptured, "order_replay_unsigned", "pay_x"), false, http.StatusBadRequest, ""),
		r.deliveryCase("Webhook: signed malformed body -> 400", gatewayURL, []byte(`{"payload":{}}`), true, http.StatusBadRequest, ""),
		r.deliveryCase("Webhook: failed event for unknown order -> ignored", gatewayURL, paymentEvent(webhook.EventPaymentFailed, "order_replay_missing", "pay_missing"), true, http.StatusOK, string(webhook.Ignored)),
		r.deliveryCase("Webhook: captured event for unknown order -> 500", gatewayURL, paymentEvent(webhook.EventPaymentCaptured, "order_replay_missing", "pay_missing"), true, http.StatusInternalServerError, ""),
		r.deliveryCase("Webhook: unhandled event -> ignored", gatewayURL, []byte(`{"event":"order.paid","payload":{}}`), true, http.StatusOK, string(webhook.Ignored)),
		r.deliveryCase("Refunds: unknown payment -> 500", base+"/webhooks/gateway/refunds", refundEvent("rfnd_replay", "pay_missing"), true, http.StatusInternalServerError, ""),
		{
			Name: "KYC: callback without token -> 401",
			Run: func(ctx context.Context, r *Runner) Result {
				body := []byte(`{"request_id":"req_replay","status":"completed"}`)
				status, resp, latency, err := r.do(ctx, http.MethodPost, base+"/webhooks/kyc", body, nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return expect(status, resp, latency, http.StatusUnauthorized, "")
			},
		},

		{
			Name: "Replay: events from file",
			Run: func(ctx context.Context, r *Runner) Result {
				return replayFile(ctx, r, gatewayURL)
			},
		},
		{
			Name: "Concurrency: duplicate captured deliveries apply once",
			Run: func(ctx context.Context, r *Runner) Result {
				return duplicateStorm(ctx, r, gatewayURL)
			},
		},
		{
			Name: "Perf: signed webhook throughput",
			Run: func(ctx context.Context, r *Runner) Result {
				return perfLoad(ctx, r, gatewayURL, paymentEvent(webhook.EventPaymentFailed, "order_replay_perf", "pay_perf"))
			},
		},
	}
}

func (r *Runner) deliveryCase(name, url string, body []byte, signed bool, want int, wantBody string) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			if signed && r.cfg.Secret == "" {
				return Result{Status: "SKIP", Note: "no webhook secret"}
			}
			status, resp, latency, err := r.deliver(ctx, url, body, signed)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			return expect(status, resp, latency, want, wantBody)
		},
	}
}

func (r *Runner) deliver(ctx context.Context, url string, body []byte, signed bool) (int, string, time.Duration, error) {
	headers := map[string]string{}
	if signed {
		headers[handlers.SignatureHeader] = gateway.Sign(r.cfg.Secret, body)
	}
	return r.do(ctx, http.MethodPost, url, body, headers)
}

func (r *Runner) do(ctx context.Context, method, url string, body []byte, headers map[string]string) (int, string, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, "", 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, strings.TrimSpace(string(b)), time.Since(start), nil
}

func expect(status int, body string, latency time.Duration, want int, wantBody string) Result {
	note := fmt.Sprintf("status=%d", status)
	if status != want {
		return Result{Status: "FAIL", Latency: latency, Note: note + " body=" + body}
	}
	if wantBody != "" && body != wantBody {
		return Result{Status: "FAIL", Latency: latency, Note: note + " body=" + body}
	}
	return Result{Status: "PASS", Latency: latency, Note: note}
}

func replayFile(ctx context.Context, r *Runner, url string) Result {
	if r.cfg.ReplayFile == "" {
		return Result{Status: "SKIP", Note: "no -replay file"}
	}
	if r.cfg.Secret == "" {
		return Result{Status: "SKIP", Note: "no webhook secret"}
	}
	f, err := os.Open(r.cfg.ReplayFile)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	defer f.Close()

	counts := map[string]int{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if !json.Valid(line) {
			counts["invalid"]++
			continue
		}
		status, body, _, err := r.deliver(ctx, url, line, true)
		switch {
		case err != nil:
			counts["error"]++
		case status == http.StatusOK:
			counts[body]++
		default:
			counts[fmt.Sprintf("http_%d", status)]++
		}
	}
	if err := sc.Err(); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	status := "PASS"
	if counts["error"] > 0 || counts["invalid"] > 0 {
		status = "FAIL"
	}
	return Result{Status: status, Note: fmt.Sprintf("%v", counts)}
}

// duplicateStorm sends the same captured event for -order concurrently. Exactly one delivery
// may report applied; the rest must be duplicates.
func duplicateStorm(ctx context.Context, r *Runner, url string) Result {
	if r.cfg.OrderID == "" {
		return Result{Status: "SKIP", Note: "no -order given"}
	}
	if r.cfg.Secret == "" {
		return Result{Status: "SKIP", Note: "no webhook secret"}
	}
	body := paymentEvent(webhook.EventPaymentCaptured, r.cfg.OrderID, "pay_"+r.cfg.OrderID)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[string]int{}
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, resp, _, err := r.deliver(ctx, url, body, true)
			key := resp
			if err != nil {
				key = "error"
			} else if status != http.StatusOK {
				key = fmt.Sprintf("http_%d", status)
			}
			mu.Lock()
			counts[key]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counts[string(webhook.Applied)] > 1 {
		return Result{Status: "FAIL", Note: fmt.Sprintf("%v", counts)}
	}
	if r.db != nil {
		var n int
		err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM travel_consignments tc
			JOIN payments p ON p.consignment_id = tc.consignment_id AND p.travel_id = tc.travel_id
			WHERE p.gateway_order_id = $1`, r.cfg.OrderID).Scan(&n)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if n > 1 {
			return Result{Status: "FAIL", Note: fmt.Sprintf("%d travel consignments provisioned", n)}
		}
	}
	return Result{Status: "PASS", Note: fmt.Sprintf("%v", counts)}
}

func perfLoad(ctx context.Context, r *Runner, url string, body []byte) Result {
	if r.cfg.Secret == "" {
		return Result{Status: "SKIP", Note: "no webhook secret"}
	}
	end := time.Now().Add(r.cfg.Duration)
	var (
		count, errCount int64
		mu              sync.Mutex
		wg              sync.WaitGroup
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, _, err := r.deliver(ctx, url, body, true)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no deliveries completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func paymentEvent(event, orderID, paymentID string) []byte {
	return envelope(event, "payment", webhook.PaymentEntity{
		ID: paymentID, OrderID: orderID, Status: strings.TrimPrefix(event, "payment."),
	})
}

func refundEvent(refundID, paymentID string) []byte {
	return envelope(webhook.EventRefundProcessed, "refund", webhook.RefundEntity{
		ID: refundID, PaymentID: paymentID, Status: "processed",
	})
}

func envelope(event, kind string, entity any) []byte {
	b, _ := json.Marshal(map[string]any{
		"event":   event,
		"payload": map[string]any{kind: map[string]any{"entity": entity}},
	})
	return b
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
