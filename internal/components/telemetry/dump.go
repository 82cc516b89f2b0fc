package telemetry

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"
)

// HttpDump receives a rendered request/response exchange for every response seen by an instrumented
// resty client.
type HttpDump interface {
	Write(id string, contents string) error
}

var dumpMu sync.RWMutex
var dump HttpDump

// SetHttpDump makes every client instrumented with InstrumentResty write its exchanges to d. A nil d
// turns dumping off.
func SetHttpDump(d HttpDump) {
	dumpMu.Lock()
	defer dumpMu.Unlock()
	dump = d
}

func currentDump() HttpDump {
	dumpMu.RLock()
	defer dumpMu.RUnlock()
	return dump
}

// DirDump writes each exchange to its own file in a directory.
type DirDump struct {
	directory string
}

// NewDirDump empties (or creates) dir and returns a dump writing into it.
func NewDirDump(dir string) (DirDump, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return DirDump{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return DirDump{}, err
	}
	return DirDump{directory: dir}, nil
}

func (d DirDump) Write(id string, contents string) error {
	return os.WriteFile(filepath.Join(d.directory, id), []byte(contents), 0600)
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			out.WriteString(fmt.Sprintf("%s: %s\n", k, v))
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func formatRequestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	readBody, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	return string(readBody)
}

// 1: request method
// 2: request url
// 3: request headers in ("Key: Value" format)
// 4: request body
// 5: response status
// 6: response location (the request url unless redirected)
// 7: response headers in ("Key: Value" format)
// 8: response body
const exchangeTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%d %s

%s

%s`

func formatExchange(res *resty.Response) string {
	var requestHeaders string
	if res.Request.RawRequest != nil {
		requestHeaders = formatHeaders(res.Request.RawRequest.Header)
	}

	location := res.Request.URL
	if res.RawResponse != nil {
		redirected, err := res.RawResponse.Location()
		if err == nil {
			location = redirected.String()
		}
	}

	return fmt.Sprintf(
		exchangeTemplate,

		res.Request.Method, res.Request.URL,
		requestHeaders,
		formatRequestBody(res.Request.RawRequest),

		res.StatusCode(), location,
		formatHeaders(res.Header()),
		res.String(),
	)
}
