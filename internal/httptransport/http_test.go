package httptransport

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppg-community/ppg-go/internal/wire"
)

func TestTransport_StatementRoundTrip(t *testing.T) {
	t.Parallel()

	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		assert.Equal(t, "/db/query_v2", r.URL.Path)
		assert.Equal(t, "mydb", r.URL.Query().Get("db"))

		// Drain the multipart body so the client's pipe goroutine completes.
		_, params, err := mime.ParseMediaType(gotContentType)
		require.NoError(t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			_, _ = io.ReadAll(part)
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"columns":[{"name":"id","typeOid":23}]}` + "\n"))
		w.Write([]byte(`{"values":["1"]}` + "\n"))
		w.Write([]byte(`{"complete":true}` + "\n"))
	}))
	defer srv.Close()

	endpoint, err := url.Parse(srv.URL)
	require.NoError(t, err)

	tr := New(Config{Endpoint: endpoint, Database: "mydb", User: "alice", Password: "secret"})
	columns, rows, err := tr.Statement(context.Background(), wire.Query, "SELECT id FROM t", nil)
	require.NoError(t, err)
	defer rows.Close()

	require.Len(t, columns, 1)
	assert.Equal(t, "id", columns[0].Name)

	all, err := rows.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "1", *all[0][0])

	assert.True(t, strings.HasPrefix(gotAuth, "Basic "))
	assert.Contains(t, gotContentType, "multipart/form-data")
	assert.Contains(t, gotContentType, `profile="urn:prisma:query"`)
}

func TestTransport_NonSuccessStatusProducesHTTPResponseError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid credentials"))
	}))
	defer srv.Close()

	endpoint, err := url.Parse(srv.URL)
	require.NoError(t, err)

	tr := New(Config{Endpoint: endpoint, Database: "mydb", User: "alice", Password: "wrong"})
	_, _, err = tr.Statement(context.Background(), wire.Query, "SELECT 1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestTransport_MultipartPartsCarryExtendedParameters(t *testing.T) {
	t.Parallel()

	var partNames []string
	var partTypes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			require.NoError(t, err)
			partNames = append(partNames, part.FormName())
			partTypes = append(partTypes, part.Header.Get("Content-Type"))
			_, _ = io.ReadAll(part)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"complete":true}` + "\n"))
	}))
	defer srv.Close()

	endpoint, err := url.Parse(srv.URL)
	require.NoError(t, err)

	tr := New(Config{Endpoint: endpoint, Database: "mydb", User: "alice", Password: "secret"})
	bigText := strings.Repeat("x", wire.InlineThreshold+1)
	_, rows, err := tr.Statement(context.Background(), wire.Query, "SELECT $1", []wire.RawParameter{wire.TextParam(bigText)})
	require.NoError(t, err)
	defer rows.Close()
	_, _ = rows.Collect(context.Background())

	require.Len(t, partNames, 2)
	assert.Equal(t, string(wire.URNQueryDescriptor), partNames[0])
	assert.Equal(t, string(wire.URNParamText), partNames[1])
	assert.Contains(t, partTypes[1], "text/plain")
}

func TestTransport_NilBodyIsFatal(t *testing.T) {
	t.Parallel()

	endpoint, err := url.Parse("http://127.0.0.1:0")
	require.NoError(t, err)

	tr := New(Config{
		Endpoint: endpoint,
		User:     "alice",
		Password: "secret",
		Client: &http.Client{
			Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: 200, Body: nil}, nil
			}),
		},
	})

	_, _, err = tr.Statement(context.Background(), wire.Query, "SELECT 1", nil)
	require.Error(t, err)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestTransport_BasicAuthHeaderEncoding(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "YWxpY2U6c2VjcmV0", basicAuth("alice", "secret"))
}
