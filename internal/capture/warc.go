package capture

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// warcDateLayout is the WARC-Date timestamp format from the WARC 1.0 spec.
const warcDateLayout = "2006-01-02T15:04:05Z"

// BuildWARC renders an uncompressed WARC 1.0 file holding a warcinfo
// record and one response record reconstructing the main document fetch.
func BuildWARC(targetURL string, status int, headers map[string]string, body []byte, at time.Time) []byte {
	date := at.UTC().Format(warcDateLayout)

	var buf bytes.Buffer
	writeRecord(&buf, map[string]string{
		"WARC-Type":      "warcinfo",
		"WARC-Record-ID": recordID(),
		"WARC-Date":      date,
		"Content-Type":   "application/warc-fields",
	}, []byte("software: national-treasure\r\nformat: WARC File Format 1.0\r\n"))

	httpBlock := buildHTTPResponse(status, headers, body)
	writeRecord(&buf, map[string]string{
		"WARC-Type":       "response",
		"WARC-Record-ID":  recordID(),
		"WARC-Date":       date,
		"WARC-Target-URI": targetURL,
		"Content-Type":    "application/http;msgtype=response",
	}, httpBlock)

	return buf.Bytes()
}

func recordID() string {
	return fmt.Sprintf("<urn:uuid:%s>", uuid.NewString())
}

// writeRecord emits one WARC record: version line, ordered headers,
// content length, then the block and the record separator.
func writeRecord(buf *bytes.Buffer, headers map[string]string, block []byte) {
	buf.WriteString("WARC/1.0\r\n")

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s: %s\r\n", k, headers[k])
	}
	fmt.Fprintf(buf, "Content-Length: %d\r\n", len(block))
	buf.WriteString("\r\n")
	buf.Write(block)
	buf.WriteString("\r\n\r\n")
}

// buildHTTPResponse reconstructs an HTTP/1.1 response block from the
// observed metadata and body.
func buildHTTPResponse(status int, headers map[string]string, body []byte) []byte {
	if status == 0 {
		status = 200
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", status, statusText(status))

	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, "%s: %s\r\n", k, headers[k])
	}
	buf.WriteString("\r\n")
	buf.Write(body)
	return buf.Bytes()
}

func statusText(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "OK"
	case status >= 300 && status < 400:
		return "Redirect"
	case status >= 400 && status < 500:
		return "Client Error"
	default:
		return "Server Error"
	}
}
