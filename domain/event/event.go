// Package event adapts HTTP requests into the Lambda proxy invocation
// contract and invocation results back into HTTP responses. Handlers depend
// on this shape byte for byte, so both directions carry single-value and
// multi-value maps and honor the base64 flag for binary payloads.
package event

import (
	"encoding/base64"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

// BuildInput carries the matched-route metadata the proxy event needs
// beyond the raw request. The body is read by the caller so that size
// limiting stays outside this package.
type BuildInput struct {
	Request          *http.Request
	Body             []byte
	PathParams       map[string]string
	ResourcePath     string
	Stage            string
	APIID            string
	RequestID        string
	RequestTime      time.Time
	BinaryMediaTypes []string
	Authorizer       map[string]any
}

// Build translates one HTTP request into the provider's proxy event.
func Build(in BuildInput) events.APIGatewayProxyRequest {
	r := in.Request
	now := in.RequestTime
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	headers := make(map[string][]string, len(r.Header)+1)
	for k, vs := range r.Header {
		headers[k] = vs
	}
	if r.Host != "" {
		headers["Host"] = []string{r.Host}
	}

	body := string(in.Body)
	encoded := false
	if isBinary(r.Header.Get("Content-Type"), in.BinaryMediaTypes) {
		body = base64.StdEncoding.EncodeToString(in.Body)
		encoded = true
	}

	query := r.URL.Query()

	return events.APIGatewayProxyRequest{
		Resource:                        in.ResourcePath,
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		Headers:                         singleValued(headers),
		MultiValueHeaders:               multiValued(headers),
		QueryStringParameters:           singleValued(query),
		MultiValueQueryStringParameters: multiValued(query),
		PathParameters:                  in.PathParams,
		Body:                            body,
		IsBase64Encoded:                 encoded,
		RequestContext: events.APIGatewayProxyRequestContext{
			Stage:            in.Stage,
			RequestID:        in.RequestID,
			ResourcePath:     in.ResourcePath,
			Path:             r.URL.Path,
			HTTPMethod:       r.Method,
			Protocol:         r.Proto,
			APIID:            in.APIID,
			RequestTime:      now.Format("02/Jan/2006:15:04:05 -0700"),
			RequestTimeEpoch: now.UnixMilli(),
			Authorizer:       in.Authorizer,
			Identity: events.APIGatewayRequestIdentity{
				SourceIP:  sourceIP(r.RemoteAddr),
				UserAgent: r.UserAgent(),
			},
		},
	}
}

// singleValued keeps the last occurrence per key, mirroring how the
// provider collapses repeated headers and query parameters.
func singleValued(values map[string][]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) > 0 {
			out[k] = vs[len(vs)-1]
		}
	}
	return out
}

func multiValued(values map[string][]string) map[string][]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string][]string, len(values))
	for k, vs := range values {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// isBinary reports whether the content type falls under the configured
// binary media types. Entries may be exact ("image/png"), subtype
// wildcards ("image/*") or the catch-all "*/*".
func isBinary(contentType string, binaryTypes []string) bool {
	if contentType == "" || len(binaryTypes) == 0 {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)
	for _, bt := range binaryTypes {
		bt = strings.ToLower(strings.TrimSpace(bt))
		switch {
		case bt == "*/*":
			return true
		case strings.HasSuffix(bt, "/*"):
			if strings.HasPrefix(mediaType, strings.TrimSuffix(bt, "*")) {
				return true
			}
		case bt == mediaType:
			return true
		}
	}
	return false
}

func sourceIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
