package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"storefront_checkout/internal/pkg/config"
	"storefront_checkout/pkg/response"
	"storefront_checkout/pkg/utils"
)

// 同一个用户对同一批购物车商品并发提交订单，验证只会创建一笔订单
var (
	baseURL     = flag.String("base", "http://localhost:8080", "checkout service base url")
	secret      = flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret shared with the storefront")
	userID      = flag.String("user", "stress-user", "user id carried in the token")
	cartItems   = flag.String("items", "", "comma separated cart item ids")
	concurrency = flag.Int("n", 50, "concurrent submits")
)

var httpClient *http.Client

func init() {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 500
	t.MaxIdleConnsPerHost = 500
	httpClient = &http.Client{
		Transport: t,
		Timeout:   60 * time.Second, // 提交会等待订单异步创建完成
	}
}

type result struct {
	status  int
	code    int
	orderSn string
}

func main() {
	flag.Parse()
	if *cartItems == "" || *secret == "" {
		fmt.Println("用法: stress_tool -items 101,102 -secret <jwt secret> [-n 50]")
		os.Exit(2)
	}

	config.GlobalConfig.JWT.Secret = *secret
	token, err := utils.GenerateToken(*userID, 0, time.Hour)
	if err != nil {
		fmt.Printf("生成 token 失败: %v\n", err)
		os.Exit(1)
	}

	body, _ := json.Marshal(map[string]interface{}{
		"cartItemIds": strings.Split(*cartItems, ","),
		"shipping": map[string]string{
			"receiverName":  "压测用户",
			"receiverPhone": "0912345678",
			"address":       "测试地址 1 号",
		},
	})

	fmt.Printf("开始压测：用户 %s 并发提交 %d 次...\n", *userID, *concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]result, 0, *concurrency)
	start := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := submit(token, body)
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}()
	}
	wg.Wait()
	duration := time.Since(start)

	created := map[string]bool{}
	rejected, limited, other := 0, 0, 0
	for _, r := range results {
		switch {
		case r.code == response.CodeSuccess && r.status == http.StatusOK:
			created[r.orderSn] = true
		case r.code == response.ErrSubmitInProgress || r.code == response.ErrTokenConflict:
			rejected++
		case r.status == http.StatusTooManyRequests:
			limited++
		default:
			other++
		}
	}

	fmt.Println("--------------------------------------------------")
	fmt.Printf("压测结束，耗时: %v\n", duration)
	fmt.Printf("总请求数: %d\n", len(results))
	fmt.Printf("创建订单: %d (预期: 1)\n", len(created))
	fmt.Printf("重复提交被拒: %d\n", rejected)
	fmt.Printf("被限流: %d\n", limited)
	fmt.Printf("其他失败: %d\n", other)
	fmt.Println("--------------------------------------------------")

	if len(created) > 1 {
		fmt.Println("检测到重复下单!")
		os.Exit(1)
	}
}

func submit(token string, body []byte) result {
	req, err := http.NewRequest(http.MethodPost, *baseURL+"/checkout/orders", bytes.NewReader(body))
	if err != nil {
		return result{code: -1}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := httpClient.Do(req)
	if err != nil {
		return result{code: -1}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return result{status: resp.StatusCode, code: -1}
	}

	var env struct {
		Code int `json:"code"`
		Data struct {
			OrderSn string `json:"orderSn"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &env); err != nil {
		return result{status: resp.StatusCode, code: -1}
	}
	return result{status: resp.StatusCode, code: env.Code, orderSn: env.Data.OrderSn}
}
