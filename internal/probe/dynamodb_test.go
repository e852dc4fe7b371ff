package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hamed0406/dynaprobe/internal/domain"
)

func testClient(endpoint string, connect, read time.Duration) *dynamodb.Client {
	cfg := aws.Config{
		Region:      "us-east-1",
		Credentials: aws.AnonymousCredentials{},
		HTTPClient:  NewHTTPClient(connect, read),
		Retryer:     func() aws.Retryer { return aws.NopRetryer{} },
	}
	return NewDynamoDBClient(cfg, endpoint)
}

func TestScanReader_OK(t *testing.T) {
	var target string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target = r.Header.Get("X-Amz-Target")
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.WriteHeader(200)
		w.Write([]byte(`{"Count":3,"ScannedCount":10,"Items":[]}`))
	}))
	defer s.Close()

	p := NewProber(&ScanReader{Client: testClient(s.URL, 2*time.Second, 2*time.Second), Table: "MyTestTable"})
	out := p.Attempt(context.Background(), 10)
	if !out.Success {
		t.Fatalf("want success, got %+v", out)
	}
	if target != "DynamoDB_20120810.Scan" {
		t.Fatalf("want Scan call, got target %q", target)
	}
	if *out.ItemsReturned != 3 || *out.ItemsScanned != 10 {
		t.Fatalf("counts wrong: %d/%d", *out.ItemsReturned, *out.ItemsScanned)
	}
}

func TestListTablesReader_OK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.WriteHeader(200)
		w.Write([]byte(`{"TableNames":["MyTestTable"]}`))
	}))
	defer s.Close()

	p := NewProber(&ListTablesReader{Client: testClient(s.URL, 2*time.Second, 2*time.Second)})
	out := p.Attempt(context.Background(), 1)
	if !out.Success || *out.ItemsReturned != 1 || *out.ItemsScanned != 1 {
		t.Fatalf("want one table, got %+v", out)
	}
}

func TestScanReader_ReadTimeoutClassified(t *testing.T) {
	// Server stalls longer than the read timeout.
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer s.Close()

	p := NewProber(&ScanReader{Client: testClient(s.URL, time.Second, 50*time.Millisecond), Table: "MyTestTable"})
	out := p.Attempt(context.Background(), 10)
	if out.Success {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.ErrorKind != domain.ErrorTimeout {
		t.Fatalf("want Timeout, got %q (%s)", out.ErrorKind, out.ErrorMessage)
	}
	if out.RoundTripMS < 50 {
		t.Fatalf("round trip should cover the stall, got %v", out.RoundTripMS)
	}
}

func TestScanReader_StalledBodyTimesOut(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-amz-json-1.0")
		w.WriteHeader(200)
		w.Write([]byte(`{"Count":3,`))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer s.Close()
	defer close(release)

	p := NewProber(&ScanReader{Client: testClient(s.URL, time.Second, 100*time.Millisecond), Table: "MyTestTable"})
	out := p.Attempt(context.Background(), 10)
	if out.Success {
		t.Fatalf("want failure on a stalled body, got %+v", out)
	}
	if out.ErrorKind != domain.ErrorTimeout {
		t.Fatalf("want Timeout, got %q (%s)", out.ErrorKind, out.ErrorMessage)
	}
	if out.RoundTripMS >= 2000 {
		t.Fatalf("read timeout should end the attempt early, took %vms", out.RoundTripMS)
	}
}

func TestScanReader_ConnectionRefusedIsOther(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	p := NewProber(&ScanReader{Client: testClient("http://"+addr, time.Second, time.Second), Table: "MyTestTable"})
	out := p.Attempt(context.Background(), 10)
	if out.Success || out.ErrorKind != domain.ErrorOther {
		t.Fatalf("want Other failure, got %+v", out)
	}
}

type fakeDynamo struct {
	scanIn *dynamodb.ScanInput
	err    error
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scanIn = in
	if f.err != nil {
		return nil, f.err
	}
	return &dynamodb.ScanOutput{Count: 2, ScannedCount: 4}, nil
}

func (f *fakeDynamo) ListTables(context.Context, *dynamodb.ListTablesInput, ...func(*dynamodb.Options)) (*dynamodb.ListTablesOutput, error) {
	return &dynamodb.ListTablesOutput{TableNames: []string{"a"}}, f.err
}

func TestNewReader(t *testing.T) {
	f := &fakeDynamo{}
	r, err := NewReader(ModeScan, f, "Orders")
	if err != nil {
		t.Fatalf("scan reader: %v", err)
	}
	items, scanned, err := r.Read(context.Background(), LimitFor(ModeScan))
	if err != nil || items != 2 || scanned != 4 {
		t.Fatalf("unexpected read: %d %d %v", items, scanned, err)
	}
	if aws.ToString(f.scanIn.TableName) != "Orders" || aws.ToInt32(f.scanIn.Limit) != 10 {
		t.Fatalf("scan input wrong: %+v", f.scanIn)
	}

	if _, err := NewReader(ModeListTables, f, ""); err != nil {
		t.Fatalf("list reader: %v", err)
	}
	if LimitFor(ModeListTables) != 1 {
		t.Fatalf("list-tables should probe with limit 1")
	}
	if _, err := NewReader("query", f, ""); err == nil {
		t.Fatalf("want error for unknown mode")
	}

	f.err = errors.New("AccessDeniedException: not authorized")
	if _, _, err := r.Read(context.Background(), 10); err == nil {
		t.Fatalf("want error passed through")
	}
}
