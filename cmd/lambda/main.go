// Command lambda wraps the same handler cmd/gateway serves over HTTP behind
// an API Gateway proxy integration, so the gateway can run serverless
// without a second routing implementation.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/apresai/ttsgateway/internal/cli"
	"github.com/apresai/ttsgateway/internal/observability"
)

var handlerFunc http.Handler

func init() {
	log := observability.InitLogger(os.Getenv("LOG_LEVEL"), nil)
	server, _, err := cli.Build(context.Background(), log)
	if err != nil {
		log.Error("lambda: failed to build gateway", "error", err)
		os.Exit(1)
	}
	handlerFunc = server.Handler()
}

func main() {
	lambda.Start(handleRequest)
}

// handleRequest adapts a REST API Gateway proxy event into the gateway's
// http.Handler and captures the response through httptest.ResponseRecorder.
func handleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	httpReq, err := toHTTPRequest(ctx, req)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusBadRequest,
			Body:       "bad request: " + err.Error(),
		}, nil
	}

	rec := httptest.NewRecorder()
	handlerFunc.ServeHTTP(rec, httpReq)

	return toProxyResponse(rec), nil
}

func toHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	path := req.Path

	var body []byte
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, err
		}
		body = decoded
	} else {
		body = []byte(req.Body)
	}

	query := make([]string, 0, len(req.QueryStringParameters))
	for k, v := range req.QueryStringParameters {
		query = append(query, k+"="+v)
	}
	url := path
	if len(query) > 0 {
		url += "?" + strings.Join(query, "&")
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, values := range req.MultiValueHeaders {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	for k, v := range req.PathParameters {
		httpReq.SetPathValue(k, v)
	}
	if httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	return httpReq, nil
}

func toProxyResponse(rec *httptest.ResponseRecorder) events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(rec.Header()))
	for k, values := range rec.Header() {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}

	body := rec.Body.Bytes()
	contentType := rec.Header().Get("Content-Type")
	if isBinaryContentType(contentType) {
		return events.APIGatewayProxyResponse{
			StatusCode:      rec.Code,
			Headers:         headers,
			Body:            base64.StdEncoding.EncodeToString(body),
			IsBase64Encoded: true,
		}
	}

	return events.APIGatewayProxyResponse{
		StatusCode: rec.Code,
		Headers:    headers,
		Body:       string(body),
	}
}

func isBinaryContentType(ct string) bool {
	return strings.HasPrefix(ct, "audio/") || ct == "application/octet-stream"
}
