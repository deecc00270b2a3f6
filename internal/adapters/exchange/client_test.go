package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hxuan190/sor-engine/internal/domain"
)

var strkTicker = domain.TickerSpec{Pair: domain.TradedPair{Base: "STRK", Quote: "AUSDC"}, EcosystemBook: true}

func TestGetSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/book/snapshot" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("base") != "STRK" || q.Get("quote") != "AUSDC" || q.Get("to_ecosystem_book") != "true" || q.Get("levels") != "10" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"result":{
			"bids":[[100000000,"50000000000000000000",3],[99500000,20000000000000000000,1]],
			"asks":[["101000000","10000000000000000000",2],[102000000,0,0]],
			"msg_id":42,"time":1700000000000}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	snap, err := c.GetSnapshot(context.Background(), strkTicker, 10)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Pair != strkTicker.Pair || snap.MsgID != 42 {
		t.Errorf("pair = %s msg = %d", snap.Pair, snap.MsgID)
	}
	if len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("levels = %d bids, %d asks (empty levels must be dropped)", len(snap.Bids), len(snap.Asks))
	}
	if snap.Bids[0].Volume.Dec() != "50000000000000000000" || snap.Bids[0].Orders != 3 {
		t.Errorf("bid[0] = %s x %s", snap.Bids[0].Price, snap.Bids[0].Volume)
	}
	if !snap.Timestamp.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("timestamp = %s", snap.Timestamp)
	}
}

func TestGetSnapshotErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"http status", http.StatusBadGateway, `oops`, domain.ErrSnapshotUnavailable},
		{"api error", http.StatusOK, `{"error":"unknown pair","code":404}`, domain.ErrSnapshotUnavailable},
		{"no result", http.StatusOK, `{}`, ErrBadSnapshot},
		{"short level", http.StatusOK, `{"result":{"bids":[[1]],"asks":[]}}`, ErrBadSnapshot},
		{"negative price", http.StatusOK, `{"result":{"bids":[[-1,1]],"asks":[]}}`, ErrBadSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			_, err := NewClient(srv.URL, time.Second).GetSnapshot(context.Background(), strkTicker, 5)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
