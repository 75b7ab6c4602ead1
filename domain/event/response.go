package event

import (
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

// HTTPResponse is the wire form of a validated invocation result.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// FromResult validates an invocation result and translates it to its HTTP
// form. A zero status code is malformed, never defaulted: silently serving
// 200 would mask handler bugs.
func FromResult(result events.APIGatewayProxyResponse) (HTTPResponse, error) {
	if result.StatusCode == 0 {
		return HTTPResponse{}, &InvalidInvocationResultError{Reason: "missing statusCode"}
	}
	if result.StatusCode < 100 || result.StatusCode > 599 {
		return HTTPResponse{}, &InvalidInvocationResultError{Reason: "statusCode out of range"}
	}

	body := []byte(result.Body)
	if result.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(result.Body)
		if err != nil {
			return HTTPResponse{}, &InvalidInvocationResultError{Reason: "body is not valid base64: " + err.Error()}
		}
		body = decoded
	}

	header := make(http.Header, len(result.Headers)+len(result.MultiValueHeaders))
	for k, vs := range result.MultiValueHeaders {
		for _, v := range vs {
			header.Add(k, v)
		}
	}
	// single-value headers fill in keys the multi-value map did not claim
	for k, v := range result.Headers {
		if _, ok := header[http.CanonicalHeaderKey(k)]; !ok {
			header.Set(k, v)
		}
	}

	return HTTPResponse{StatusCode: result.StatusCode, Header: header, Body: body}, nil
}

func canned(status int, message string) HTTPResponse {
	return HTTPResponse{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"message":"` + message + `"}`),
	}
}

// RouteNotFound is the response for paths outside the route table. Not an
// error of table construction; a miss at request time is a normal outcome.
func RouteNotFound() HTTPResponse {
	return canned(http.StatusNotFound, "Not Found")
}

// InternalError is the opaque response covering handler faults and
// malformed invocation results.
func InternalError() HTTPResponse {
	return canned(http.StatusInternalServerError, "Internal Server Error")
}

// Unauthorized is the response for requests rejected by the identity
// provider before any handler runs.
func Unauthorized() HTTPResponse {
	return canned(http.StatusUnauthorized, "Unauthorized")
}
