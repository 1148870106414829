package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// HTTPError 非 2xx 响应
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// httpClient 封装两个 resty 客户端：
// info 为只读查询，允许重试；exchange 会改变账户状态，不重试。
type httpClient struct {
	info     *resty.Client
	exchange *resty.Client
}

// newHTTPClient infoTimeout<=0 时默认 10s；exchangeTimeout<=0 表示不设超时，
// 下单与撤单的截止时间完全由调用方 ctx 决定。
func newHTTPClient(host string, infoTimeout, exchangeTimeout time.Duration) *httpClient {
	host = strings.TrimSuffix(host, "/")
	if infoTimeout <= 0 {
		infoTimeout = 10 * time.Second
	}

	info := resty.New().
		SetBaseURL(host).
		SetTimeout(infoTimeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			code := resp.StatusCode()
			return code == 429 || code >= 500
		}).
		SetRetryAfter(func(_ *resty.Client, resp *resty.Response) (time.Duration, error) {
			// 429 限流时参考 Retry-After
			if resp != nil && resp.StatusCode() == 429 {
				if ra := resp.Header().Get("Retry-After"); ra != "" {
					if d, err := time.ParseDuration(ra + "s"); err == nil {
						return d, nil
					}
				}
				return 2 * time.Second, nil
			}
			return 0, nil
		})

	exchange := resty.New().
		SetBaseURL(host)
	if exchangeTimeout > 0 {
		exchange.SetTimeout(exchangeTimeout)
	}

	for _, c := range []*resty.Client{info, exchange} {
		c.SetHeader("Content-Type", "application/json")
		c.SetHeader("Accept", "application/json")
		c.SetHeader("User-Agent", "hlarb/1.0")
	}

	return &httpClient{info: info, exchange: exchange}
}

// postJSON 发送 JSON POST，2xx 时将响应体解析进 out
func postJSON(ctx context.Context, rc *resty.Client, endpoint string, body, out any) error {
	req := rc.R().SetBody(body)
	if ctx != nil {
		req.SetContext(ctx)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post(endpoint)
	if err != nil {
		return errors.Wrapf(err, "请求 %s 失败", endpoint)
	}
	if resp.IsError() {
		return errors.WithStack(&HTTPError{StatusCode: resp.StatusCode(), Body: resp.String()})
	}
	return nil
}

func (h *httpClient) postInfo(ctx context.Context, body, out any) error {
	return postJSON(ctx, h.info, EndpointInfo, body, out)
}

func (h *httpClient) postExchange(ctx context.Context, body, out any) error {
	return postJSON(ctx, h.exchange, EndpointExchange, body, out)
}
