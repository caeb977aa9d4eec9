package http

import "context"

type IHttpClient interface {
	Request(ctx context.Context, method, path string, params []KeyValue, body interface{}, header []KeyValue) (int, []byte, error)
	Get(ctx context.Context, path string, params []KeyValue) (int, []byte, error)
	Post(ctx context.Context, path string, body interface{}) (int, []byte, error)
}
