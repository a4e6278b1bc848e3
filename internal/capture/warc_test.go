package capture

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildWARCStructure(t *testing.T) {
	t.Parallel()

	at := time.Date(2026, 8, 24, 10, 30, 0, 0, time.UTC)
	headers := map[string]string{"content-type": "text/html", "server": "nginx"}
	body := []byte("<html><body>hi</body></html>")

	out := string(BuildWARC("https://example.com/", 200, headers, body, at))

	records := strings.Split(out, "\r\n\r\n")
	require.GreaterOrEqual(t, len(records), 2)

	// Two records, each opening with the version line.
	require.Equal(t, 2, strings.Count(out, "WARC/1.0\r\n"))
	require.Contains(t, out, "WARC-Type: warcinfo\r\n")
	require.Contains(t, out, "WARC-Type: response\r\n")
	require.Contains(t, out, "WARC-Target-URI: https://example.com/\r\n")
	require.Contains(t, out, "WARC-Date: 2026-08-24T10:30:00Z\r\n")
	require.Contains(t, out, "Content-Type: application/http;msgtype=response\r\n")

	// The response block is an HTTP/1.1 message with the observed headers.
	require.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	require.Contains(t, out, "content-type: text/html\r\n")
	require.Contains(t, out, string(body))
}

func TestBuildWARCContentLength(t *testing.T) {
	t.Parallel()

	body := []byte("payload")
	out := string(BuildWARC("https://example.com/", 404, nil, body, time.Now()))

	// The response record's Content-Length covers the whole HTTP block.
	idx := strings.Index(out, "WARC-Type: response")
	require.Greater(t, idx, 0)
	record := out[idx:]

	lenIdx := strings.Index(record, "Content-Length: ")
	require.Greater(t, lenIdx, 0)
	rest := record[lenIdx+len("Content-Length: "):]
	n, err := strconv.Atoi(rest[:strings.Index(rest, "\r\n")])
	require.NoError(t, err)

	blockStart := strings.Index(record, "\r\n\r\n") + 4
	block := record[blockStart : blockStart+n]
	require.True(t, strings.HasPrefix(block, "HTTP/1.1 404 Client Error\r\n"))
	require.True(t, strings.HasSuffix(block, "payload"))
}

func TestBuildWARCDefaultsStatus(t *testing.T) {
	t.Parallel()

	out := string(BuildWARC("https://example.com/", 0, nil, nil, time.Now()))
	require.Contains(t, out, "HTTP/1.1 200 OK\r\n")
}

func TestBuildWARCRecordIDsUnique(t *testing.T) {
	t.Parallel()

	out := string(BuildWARC("https://example.com/", 200, nil, nil, time.Now()))
	var ids []string
	for _, line := range strings.Split(out, "\r\n") {
		if strings.HasPrefix(line, "WARC-Record-ID: ") {
			ids = append(ids, line)
		}
	}
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
}
