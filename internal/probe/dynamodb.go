package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Probe modes.
const (
	ModeScan       = "scan"
	ModeListTables = "list-tables"
)

// LimitFor returns the read limit a mode probes with.
func LimitFor(mode string) int {
	if mode == ModeListTables {
		return 1
	}
	return 10
}

type AWSOptions struct {
	Region         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// NewHTTPClient bounds connection establishment (dial and TLS handshake) by
// connect. read bounds every socket read, so a response that stalls in the
// headers or halfway through the body fails with an i/o timeout.
func NewHTTPClient(connect, read time.Duration) *awshttp.BuildableClient {
	return awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = connect
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.TLSHandshakeTimeout = connect
			tr.ResponseHeaderTimeout = read

			dial := tr.DialContext
			if dial == nil {
				dial = (&net.Dialer{Timeout: connect}).DialContext
			}
			tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
				c, err := dial(ctx, network, addr)
				if err != nil || read <= 0 {
					return c, err
				}
				return &readDeadlineConn{Conn: c, timeout: read}, nil
			}
		})
}

// readDeadlineConn arms a fresh read deadline before every Read.
type readDeadlineConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readDeadlineConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

// LoadAWSConfig loads the default credential chain with the probe's
// timeouts and with retries switched off.
func LoadAWSConfig(ctx context.Context, o AWSOptions) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(o.Region),
		awsconfig.WithHTTPClient(NewHTTPClient(o.ConnectTimeout, o.ReadTimeout)),
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}

// NewDynamoDBClient builds a client; endpoint overrides the regional one
// (e.g. DynamoDB Local) when non-empty.
func NewDynamoDBClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// DynamoDBAPI is the subset of *dynamodb.Client the readers call.
type DynamoDBAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	ListTables(ctx context.Context, in *dynamodb.ListTablesInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error)
}

// ScanReader scans up to limit items of one table.
type ScanReader struct {
	Client DynamoDBAPI
	Table  string
}

func (r *ScanReader) Read(ctx context.Context, limit int) (int, int, error) {
	out, err := r.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName: aws.String(r.Table),
		Limit:     aws.Int32(int32(limit)),
	})
	if err != nil {
		return 0, 0, err
	}
	return int(out.Count), int(out.ScannedCount), nil
}

// ListTablesReader lists table names; both counts are the number returned.
type ListTablesReader struct {
	Client DynamoDBAPI
}

func (r *ListTablesReader) Read(ctx context.Context, limit int) (int, int, error) {
	out, err := r.Client.ListTables(ctx, &dynamodb.ListTablesInput{
		Limit: aws.Int32(int32(limit)),
	})
	if err != nil {
		return 0, 0, err
	}
	n := len(out.TableNames)
	return n, n, nil
}

// NewReader picks the reader for mode.
func NewReader(mode string, client DynamoDBAPI, table string) (Reader, error) {
	switch mode {
	case ModeScan:
		return &ScanReader{Client: client, Table: table}, nil
	case ModeListTables:
		return &ListTablesReader{Client: client}, nil
	default:
		return nil, fmt.Errorf("unknown probe mode %q", mode)
	}
}
